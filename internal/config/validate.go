package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.JoinCodeLength < 4 || c.Session.JoinCodeLength > 12 {
		return errors.New("session.join_code_length must be between 4 and 12")
	}
	if c.Session.RolesPerSession < 1 {
		return errors.New("session.roles_per_session must be at least 1")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.DefaultCountdownSeconds < 0 {
		return errors.New("recording.default_countdown_seconds must not be negative")
	}
	if c.Recording.DefaultDurationMillis <= 0 {
		return errors.New("recording.default_duration_ms must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Paths.StorageDir == "" {
			return errors.New("paths.storage_dir must be set for the local storage provider")
		}
	case ProviderBucket:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set for the bucket storage provider")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the bucket storage provider")
		}
		if c.Storage.AccessKey == "" || c.Storage.Secret == "" {
			return errors.New("storage.access_key and storage.secret must be set for the bucket storage provider")
		}
	default:
		return fmt.Errorf("storage.provider: unsupported value %q (expected %q or %q)", c.Storage.Provider, ProviderLocal, ProviderBucket)
	}
	if c.Storage.URLTTLSeconds <= 0 {
		return errors.New("storage.url_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
