package config

// Object storage provider names accepted by storage.provider.
const (
	ProviderLocal  = "local"
	ProviderBucket = "bucket"
)

const (
	defaultDataDir                 = "~/.local/share/posturesync/data"
	defaultLogDir                  = "~/.local/share/posturesync/logs"
	defaultStorageDir              = "~/.local/share/posturesync/recordings"
	defaultAPIBind                 = "127.0.0.1:7643"
	defaultJoinCodeLength          = 6
	defaultRolesPerSession         = 2
	defaultCountdownSeconds        = 5
	defaultRecordingDurationMillis = 10000
	defaultStorageProvider         = ProviderLocal
	defaultStorageURLTTLSeconds    = 900
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			StorageDir: defaultStorageDir,
			APIBind:    defaultAPIBind,
		},
		Session: Session{
			JoinCodeLength:  defaultJoinCodeLength,
			RolesPerSession: defaultRolesPerSession,
		},
		Recording: Recording{
			DefaultCountdownSeconds: defaultCountdownSeconds,
			DefaultDurationMillis:   defaultRecordingDurationMillis,
		},
		Storage: Storage{
			Provider:      defaultStorageProvider,
			URLTTLSeconds: defaultStorageURLTTLSeconds,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			SessionStarted:   true,
			SessionCompleted: true,
			Errors:           true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
