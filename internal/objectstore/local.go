package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"posturesync/internal/services"
)

// Local stores objects under a directory on the daemon host and signs its
// own upload and download URLs with an HMAC key minted at startup. The
// daemon's HTTP layer serves the /storage endpoints and calls VerifyToken
// before touching a file.
type Local struct {
	root string
	key  []byte
	ttl  time.Duration
}

// NewLocal constructs the local provider rooted at dir.
func NewLocal(dir string, ttl time.Duration) (*Local, error) {
	if dir == "" {
		return nil, services.Wrap(services.ErrValidation, "objectstore", "local", "storage directory required", nil)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("mint signing key: %w", err)
	}
	return &Local{root: dir, key: key, ttl: ttl}, nil
}

// IssueUploadCredential signs a PUT grant for the storage path.
func (l *Local) IssueUploadCredential(_ context.Context, storagePath, contentType string) (*Credential, error) {
	cred, err := l.sign("PUT", storagePath)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		cred.Headers = map[string]string{"Content-Type": contentType}
	}
	return cred, nil
}

// IssueDownloadCredential signs a GET grant for the storage path.
func (l *Local) IssueDownloadCredential(_ context.Context, storagePath string) (*Credential, error) {
	return l.sign("GET", storagePath)
}

// Delete removes the object. A missing object is not an error.
func (l *Local) Delete(_ context.Context, storagePath string) error {
	target, err := l.resolve(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *Local) sign(method, storagePath string) (*Credential, error) {
	if _, err := l.resolve(storagePath); err != nil {
		return nil, err
	}
	expires := time.Now().Add(l.ttl).UTC()
	sig := l.signature(method, storagePath, expires.Unix())
	values := url.Values{}
	values.Set("exp", strconv.FormatInt(expires.Unix(), 10))
	values.Set("sig", sig)
	return &Credential{
		Method:      method,
		URL:         "/storage/" + storagePath + "?" + values.Encode(),
		StoragePath: storagePath,
		ExpiresAt:   expires,
	}, nil
}

func (l *Local) signature(method, storagePath string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, l.key)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, storagePath, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToken checks an exp/sig pair against the method and storage path.
func (l *Local) VerifyToken(method, storagePath, expRaw, sig string) error {
	expiresUnix, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return services.Wrap(services.ErrValidation, "objectstore", "token", "malformed expiry", err)
	}
	if time.Now().Unix() > expiresUnix {
		return services.Wrap(services.ErrValidation, "objectstore", "token", "credential expired", nil)
	}
	expected := l.signature(method, storagePath, expiresUnix)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return services.Wrap(services.ErrValidation, "objectstore", "token", "signature mismatch", nil)
	}
	return nil
}

// Store writes the object body to disk and returns the byte count.
func (l *Local) Store(storagePath string, body io.Reader) (int64, error) {
	target, err := l.resolve(storagePath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create object: %w", err)
	}
	defer f.Close()
	written, err := io.Copy(f, body)
	if err != nil {
		return 0, fmt.Errorf("write object: %w", err)
	}
	return written, nil
}

// Open returns a reader over the stored object.
func (l *Local) Open(storagePath string) (io.ReadCloser, error) {
	target, err := l.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "objectstore", "object", storagePath, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// resolve maps a storage path onto the root, refusing traversal outside it.
func (l *Local) resolve(storagePath string) (string, error) {
	cleaned := path.Clean("/" + storagePath)
	if cleaned == "/" || strings.Contains(storagePath, "..") {
		return "", services.Wrap(services.ErrValidation, "objectstore", "path", fmt.Sprintf("invalid storage path %q", storagePath), nil)
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}
