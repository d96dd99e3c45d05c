package config

import "time"

// Config holds application configuration settings
type Config struct {
	Tel                  string        `yaml:"tel"` // Our telephone number
	UUID                 string        `yaml:"uuid" default:"notset"`
	Password             string        `yaml:"password"`             // HTTP basic auth password generated at install time
	Server               string        `yaml:"server"`               // The TextSecure server URL
	RootCA               string        `yaml:"rootCA"`               // The TLS signing certificate of the server we connect to
	ProxyServer          string        `yaml:"proxy"`                // HTTP Proxy URL if one is being used
	UserAgent            string        `yaml:"userAgent"`            // Override for the default HTTP User Agent header field
	LogLevel             string        `yaml:"loglevel"`             // Verbosity of the logging messages
	StorageDir           string        `yaml:"storageDir"`           // Directory for the persistent storage
	Debug                bool          `yaml:"debug"`                // Disables profile fetch throttling
	PushTokenTimeout     time.Duration `yaml:"pushTokenTimeout"`     // Bounded wait for the standard push token
	ProfileFetchInterval time.Duration `yaml:"profileFetchInterval"` // Minimum time between two fetches of the same profile
	ProfileFetchRetries  int           `yaml:"profileFetchRetries"`  // Retries of a best effort profile refresh
	RepairInterval       time.Duration `yaml:"repairInterval"`       // Period of the profile completeness repair job
	PushBridge           string        `yaml:"pushBridge"`           // Websocket URL of the local push distributor
	Redis                string        `yaml:"redis"`                // Optional redis address shared by profile fetchers
	MetricsAddr          string        `yaml:"metricsAddr"`          // Listen address of the prometheus endpoint
	Registered           bool          `yaml:"registered"`           // Set once registration completed
	FetchesMessages      bool          `yaml:"fetchesMessages"`      // Set when the account fell back to manual message fetching
	PushToken            string        `yaml:"pushToken"`            // Last uploaded standard push token
	VoipToken            string        `yaml:"voipToken"`            // Last uploaded voice push token
	RegistrationID       uint32        `yaml:"registrationId"`
	SignalingKey         []byte        `yaml:"signalingKey"`
	ProfileKey           []byte        `yaml:"profileKey"` // The profile key is used to encrypt the avatar, name etc
	Name                 string        `yaml:"name"`
}

const (
	DefaultServer               = "https://chat.signal.org:443"
	DefaultStorageDir           = ".storage"
	DefaultPushBridge           = "ws://localhost:9082/push"
	DefaultPushTokenTimeout     = 10 * time.Second
	DefaultProfileFetchInterval = 5 * time.Minute
	DefaultProfileFetchRetries  = 3
	DefaultRepairInterval       = 5 * time.Minute
)

// ApplyDefaults makes sure that for unset values sane defaults are used
func (cfg *Config) ApplyDefaults() {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = DefaultStorageDir
	}
	if cfg.PushBridge == "" {
		cfg.PushBridge = DefaultPushBridge
	}
	if cfg.PushTokenTimeout <= 0 {
		cfg.PushTokenTimeout = DefaultPushTokenTimeout
	}
	if cfg.ProfileFetchInterval <= 0 {
		cfg.ProfileFetchInterval = DefaultProfileFetchInterval
	}
	if cfg.ProfileFetchRetries <= 0 {
		cfg.ProfileFetchRetries = DefaultProfileFetchRetries
	}
	if cfg.RepairInterval <= 0 {
		cfg.RepairInterval = DefaultRepairInterval
	}
}

// ThrottleWindow is the minimum time between two fetches of the same
// profile. Debug builds don't throttle.
func (cfg *Config) ThrottleWindow() time.Duration {
	if cfg.Debug {
		return 0
	}
	return cfg.ProfileFetchInterval
}
