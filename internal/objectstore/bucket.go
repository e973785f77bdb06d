package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"posturesync/internal/services"
)

// BucketOptions configure the S3-compatible provider.
type BucketOptions struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	Secret    string
	Region    string
	TTL       time.Duration
	Client    *http.Client
}

// Bucket issues presigned URLs against an S3-compatible endpoint. Uploads
// and downloads go straight from the browser to the bucket; only Delete is
// performed server side.
type Bucket struct {
	endpoint  *url.URL
	bucket    string
	accessKey string
	secret    string
	region    string
	ttl       time.Duration
	client    *http.Client
	now       func() time.Time
}

// NewBucket constructs the bucket provider.
func NewBucket(opts BucketOptions) (*Bucket, error) {
	if opts.Endpoint == "" || opts.Bucket == "" || opts.AccessKey == "" || opts.Secret == "" {
		return nil, services.Wrap(services.ErrValidation, "objectstore", "bucket", "endpoint, bucket and credentials required", nil)
	}
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "objectstore", "bucket", fmt.Sprintf("malformed endpoint %q", opts.Endpoint), err)
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Bucket{
		endpoint:  endpoint,
		bucket:    opts.Bucket,
		accessKey: opts.AccessKey,
		secret:    opts.Secret,
		region:    region,
		ttl:       ttl,
		client:    client,
		now:       time.Now,
	}, nil
}

// IssueUploadCredential presigns a PUT for the storage path.
func (b *Bucket) IssueUploadCredential(_ context.Context, storagePath, contentType string) (*Credential, error) {
	cred := b.presign(http.MethodPut, storagePath)
	if contentType != "" {
		cred.Headers = map[string]string{"Content-Type": contentType}
	}
	return cred, nil
}

// IssueDownloadCredential presigns a GET for the storage path.
func (b *Bucket) IssueDownloadCredential(_ context.Context, storagePath string) (*Credential, error) {
	return b.presign(http.MethodGet, storagePath), nil
}

// Delete removes the object through a presigned DELETE issued server side.
func (b *Bucket) Delete(ctx context.Context, storagePath string) error {
	cred := b.presign(http.MethodDelete, storagePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, cred.URL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "objectstore", "delete", storagePath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return services.Wrap(services.ErrTransient, "objectstore", "delete", fmt.Sprintf("%s: unexpected status %d", storagePath, resp.StatusCode), nil)
	}
	return nil
}

// presign implements AWS signature v4 query presigning for a single object.
func (b *Bucket) presign(method, storagePath string) *Credential {
	issued := b.now().UTC()
	amzDate := issued.Format("20060102T150405Z")
	dateScope := issued.Format("20060102")
	scope := dateScope + "/" + b.region + "/s3/aws4_request"
	objectPath := "/" + b.bucket + "/" + storagePath

	query := url.Values{}
	query.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	query.Set("X-Amz-Credential", b.accessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.Itoa(int(b.ttl.Seconds())))
	query.Set("X-Amz-SignedHeaders", "host")

	canonical := strings.Join([]string{
		method,
		canonicalURI(objectPath),
		canonicalQuery(query),
		"host:" + b.endpoint.Host + "\n",
		"host",
		"UNSIGNED-PAYLOAD",
	}, "\n")

	digest := sha256.Sum256([]byte(canonical))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(digest[:]),
	}, "\n")

	signingKey := hmacSHA256(hmacSHA256(hmacSHA256(hmacSHA256(
		[]byte("AWS4"+b.secret), dateScope), b.region), "s3"), "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))
	query.Set("X-Amz-Signature", signature)

	signed := *b.endpoint
	signed.Path = objectPath
	signed.RawQuery = query.Encode()
	return &Credential{
		Method:      method,
		URL:         signed.String(),
		StoragePath: storagePath,
		ExpiresAt:   issued.Add(b.ttl),
	}
}

func hmacSHA256(key []byte, value string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func canonicalURI(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = strings.ReplaceAll(url.QueryEscape(segment), "+", "%20")
	}
	return strings.Join(segments, "/")
}

func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, strings.ReplaceAll(url.QueryEscape(key), "+", "%20")+"="+strings.ReplaceAll(url.QueryEscape(values.Get(key)), "+", "%20"))
	}
	return strings.Join(pairs, "&")
}
