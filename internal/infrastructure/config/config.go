package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for domofon-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	HTTP     HTTPConfig     `yaml:"http"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AccountConfig describes the intercom operator account this instance serves.
type AccountConfig struct {
	// Phone is the subscriber phone number used for confirmation login.
	Phone string `yaml:"phone"`

	// APIBaseURL is the mobile API host. CRMBaseURL is the CRM host that
	// issues the door-open credential.
	APIBaseURL string `yaml:"api_base_url"`
	CRMBaseURL string `yaml:"crm_base_url"`

	// BuyerID is the CRM-side tenant identifier. The CRM has been observed
	// to reject anything but the default; see relay.CoerceBuyerID.
	BuyerID int `yaml:"buyer_id"`

	// Device identity headers sent with every request. DeviceID is generated
	// once and persisted here so the cloud sees a stable synthetic device.
	DeviceID       string `yaml:"device_id"`
	AppVersion     string `yaml:"app_version"`
	Platform       string `yaml:"platform"`
	APISource      string `yaml:"api_source"`
	AcceptLanguage string `yaml:"accept_language"`
	UserAgent      string `yaml:"user_agent"`

	// MobileToken and CRMToken are raw token payloads from a previous login,
	// restored into the session at startup. The shape is whatever the cloud
	// returned; this package treats them as opaque.
	MobileToken map[string]any `yaml:"mobile_token"`
	CRMToken    map[string]any `yaml:"crm_token"`
}

// HTTPConfig contains outbound HTTP client settings.
type HTTPConfig struct {
	// TimeoutSeconds applies to every outbound cloud request.
	TimeoutSeconds int `yaml:"timeout"`
}

// WatcherConfig contains face-match background cycle settings.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`

	// IntervalSeconds is how often a cycle is requested.
	IntervalSeconds int `yaml:"interval"`

	// CooldownSeconds is the minimum time between automatic opens per door.
	CooldownSeconds int `yaml:"cooldown"`

	// MatchThreshold is the maximum encoder distance accepted as a match.
	MatchThreshold float64 `yaml:"match_threshold"`

	// Doors lists relay UIDs to watch. Empty means "pick a sensible default":
	// the main entrance with video, or the first video-capable relay.
	Doors []string `yaml:"doors"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// MQTT is the integration surface for home-automation hosts; it is optional.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains local control API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Token    string           `yaml:"token"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP server timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the YAML configuration file at path, applies environment
// variable overrides and validates the result.
//
// Environment variables follow the pattern DOMOFON_SECTION_KEY,
// for example: DOMOFON_DATABASE_PATH, DOMOFON_API_TOKEN.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			APIBaseURL:     "https://api.is74.ru",
			CRMBaseURL:     "https://crm.is74.ru",
			BuyerID:        1,
			AppVersion:     "6.5.0",
			Platform:       "ios",
			APISource:      "mobile",
			AcceptLanguage: "ru-RU",
			UserAgent:      "20250909164306",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
		},
		Watcher: WatcherConfig{
			Enabled:         true,
			IntervalSeconds: 5,
			CooldownSeconds: 30,
			MatchThreshold:  0.5,
		},
		Database: DatabaseConfig{
			Path:        "./data/domofon.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "domofon-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8123,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOMOFON_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("DOMOFON_ACCOUNT_PHONE"); v != "" {
		cfg.Account.Phone = v
	}
	if v := os.Getenv("DOMOFON_ACCOUNT_DEVICE_ID"); v != "" {
		cfg.Account.DeviceID = v
	}
	if v := os.Getenv("DOMOFON_ACCOUNT_BUYER_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Account.BuyerID = id
		}
	}

	// Database
	if v := os.Getenv("DOMOFON_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOMOFON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOMOFON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOMOFON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DOMOFON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Local API token. Always set in production: this token gates
	// door-open commands.
	if v := os.Getenv("DOMOFON_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Account validation
	if c.Account.APIBaseURL == "" {
		errs = append(errs, "account.api_base_url is required")
	}
	if c.Account.CRMBaseURL == "" {
		errs = append(errs, "account.crm_base_url is required")
	}
	if c.Account.BuyerID < 1 {
		errs = append(errs, "account.buyer_id must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// HTTP validation
	if c.HTTP.TimeoutSeconds < 1 {
		errs = append(errs, "http.timeout must be at least 1 second")
	}

	// Watcher validation
	if c.Watcher.IntervalSeconds < 1 {
		errs = append(errs, "watcher.interval must be at least 1 second")
	}
	if c.Watcher.CooldownSeconds < 1 {
		errs = append(errs, "watcher.cooldown must be at least 1 second")
	}
	if c.Watcher.MatchThreshold <= 0 || c.Watcher.MatchThreshold > 1 {
		errs = append(errs, "watcher.match_threshold must be in (0, 1]")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation - the control token is REQUIRED when the API is on.
	// An unauthenticated local API would let anything on the host network
	// open physical doors.
	const minAPITokenLength = 16
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.Token == "" {
			errs = append(errs, "api.token is required (set DOMOFON_API_TOKEN environment variable)")
		} else if len(c.API.Token) < minAPITokenLength {
			errs = append(errs, "api.token must be at least 16 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HTTPTimeout returns the outbound request timeout as a Duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// WatcherInterval returns the background cycle interval as a Duration.
func (c *Config) WatcherInterval() time.Duration {
	return time.Duration(c.Watcher.IntervalSeconds) * time.Second
}

// WatcherCooldown returns the per-door auto-open cooldown as a Duration.
func (c *Config) WatcherCooldown() time.Duration {
	return time.Duration(c.Watcher.CooldownSeconds) * time.Second
}

// ReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
