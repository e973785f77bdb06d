package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"posturesync/internal/config"
	"posturesync/internal/services"
	"posturesync/internal/session"
)

// Credential is a time-limited grant for one object operation. Clients use
// the URL as-is; nothing else about the storage backend leaks to them.
type Credential struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	StoragePath string            `json:"storage_path"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Provider issues scoped credentials for recording objects.
type Provider interface {
	IssueUploadCredential(ctx context.Context, storagePath, contentType string) (*Credential, error)
	IssueDownloadCredential(ctx context.Context, storagePath string) (*Credential, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewFromConfig selects the configured provider. The choice is made once at
// startup; handlers never branch on provider names.
func NewFromConfig(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case config.ProviderLocal:
		return NewLocal(cfg.Paths.StorageDir, time.Duration(cfg.Storage.URLTTLSeconds)*time.Second)
	case config.ProviderBucket:
		return NewBucket(BucketOptions{
			Endpoint:  cfg.Storage.Endpoint,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			Secret:    cfg.Storage.Secret,
			TTL:       time.Duration(cfg.Storage.URLTTLSeconds) * time.Second,
			Client:    &http.Client{Timeout: 30 * time.Second},
		})
	default:
		return nil, services.Wrap(services.ErrValidation, "objectstore", "provider", fmt.Sprintf("unknown provider %q", cfg.Storage.Provider), nil)
	}
}

// ObjectPath builds the canonical storage path for one recording object.
func ObjectPath(sessionID, stepLabel, distance string, role session.Role) string {
	return fmt.Sprintf("sessions/%s/%s_%s_%s.webm", sessionID, stepLabel, distance, session.ViewForRole(role))
}
