package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/errkind"
	"github.com/nerrad567/skyroute/internal/lifecycle"
	"github.com/nerrad567/skyroute/internal/topic"
	"github.com/nerrad567/skyroute/internal/transport"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = fmt.Errorf("%w: invalid configuration", errkind.ErrConfiguration)

// Config is the root configuration structure for SkyRoute.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Journal  JournalConfig  `yaml:"journal"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ClientConfig identifies this SkyRoute instance.
type ClientConfig struct {
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker       MQTTBrokerConfig    `yaml:"broker"`
	Auth         MQTTAuthConfig      `yaml:"auth"`
	QoS          int                 `yaml:"qos"`
	CleanSession bool                `yaml:"clean_session"`
	KeepAlive    time.Duration       `yaml:"keep_alive"`
	Timeout      time.Duration       `yaml:"connect_timeout"`
	Reconnect    MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic enables retained online/offline status messages and the
	// last will on skyroute/client/<client_id>/status.
	StatusTopic bool `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID is generated ("skyroute-" plus a random suffix) when empty.
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection backoff settings.
type MQTTReconnectConfig struct {
	Enabled      bool          `yaml:"enabled"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// DispatchConfig contains subscriber dispatch settings.
type DispatchConfig struct {
	Workers         int    `yaml:"workers"`
	InboxSize       int    `yaml:"inbox_size"`
	PropagateErrors bool   `yaml:"propagate_errors"`
	DefaultCodec    string `yaml:"default_codec"`
}

// JournalConfig contains delivery-failure journal settings (SQLite).
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention is how long entries are kept; 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the operations HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SKYROUTE_SECTION_KEY
// For example: SKYROUTE_MQTT_HOST, SKYROUTE_JOURNAL_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, with defaults and
// environment overrides applied, and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = GenerateClientID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// GenerateClientID returns "skyroute-" followed by 8 random hex characters.
func GenerateClientID() string {
	return "skyroute-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Name: "skyroute",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:          1,
			CleanSession: true,
			KeepAlive:    60 * time.Second,
			Timeout:      10 * time.Second,
			StatusTopic:  true,
			Reconnect: MQTTReconnectConfig{
				Enabled:      true,
				InitialDelay: lifecycle.DefaultBaseDelay,
				MaxDelay:     lifecycle.DefaultMaxDelay,
				Multiplier:   lifecycle.DefaultMultiplier,
			},
		},
		Dispatch: DispatchConfig{
			Workers:      8,
			InboxSize:    256,
			DefaultCodec: "json",
		},
		Journal: JournalConfig{
			Enabled:     false,
			Path:        "./data/skyroute.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   7 * 24 * time.Hour,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "skyroute",
			Bucket:        "skyroute",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
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
// Environment variables follow the pattern: SKYROUTE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("SKYROUTE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SKYROUTE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SKYROUTE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("SKYROUTE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SKYROUTE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Journal
	if v := os.Getenv("SKYROUTE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// API
	if v := os.Getenv("SKYROUTE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SKYROUTE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
//
// Returns:
//   - error: wrapping ErrInvalid, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if err := c.MQTT.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Enabled {
		if c.MQTT.Reconnect.InitialDelay <= 0 {
			errs = append(errs, "mqtt.reconnect.initial_delay must be positive")
		}
		if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
			errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
		}
		if c.MQTT.Reconnect.Multiplier < 1 {
			errs = append(errs, "mqtt.reconnect.multiplier must be at least 1")
		}
	}

	// Dispatch validation
	if c.Dispatch.Workers < 1 {
		errs = append(errs, "dispatch.workers must be at least 1")
	}
	if c.Dispatch.InboxSize < 1 {
		errs = append(errs, "dispatch.inbox_size must be at least 1")
	}
	if _, err := codec.ByName(c.Dispatch.DefaultCodec); err != nil {
		errs = append(errs, fmt.Sprintf("dispatch.default_codec %q is not supported", c.Dispatch.DefaultCodec))
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}
	if c.Journal.Retention < 0 {
		errs = append(errs, "journal.retention must not be negative")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	return nil
}

// Validate checks that the broker address is usable.
func (m MQTTConfig) Validate() error {
	if m.Broker.Host == "" {
		return fmt.Errorf("mqtt.broker.host is required")
	}
	if _, err := transport.ParseBrokerURL(m.BrokerURL()); err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	return nil
}

// BrokerURL returns the broker address as a URL (tcp:// or ssl://).
func (m MQTTConfig) BrokerURL() string {
	return transport.BrokerURL(m.Broker.Host, m.Broker.Port, m.Broker.TLS)
}

// TransportConfig converts the MQTT section to a transport configuration.
func (m MQTTConfig) TransportConfig() transport.Config {
	cfg := transport.Config{
		BrokerURL:      m.BrokerURL(),
		ClientID:       m.Broker.ClientID,
		Username:       m.Auth.Username,
		Password:       m.Auth.Password,
		CleanSession:   m.CleanSession,
		KeepAlive:      m.KeepAlive,
		ConnectTimeout: m.Timeout,
	}
	if m.StatusTopic && m.Broker.ClientID != "" {
		cfg.StatusTopic = topic.Topics{}.ClientStatus(m.Broker.ClientID)
	}
	return cfg
}

// LifecycleOptions converts the reconnect section to lifecycle options.
func (m MQTTConfig) LifecycleOptions() lifecycle.Options {
	return lifecycle.Options{
		AutoReconnect: m.Reconnect.Enabled,
		BaseDelay:     m.Reconnect.InitialDelay,
		MaxDelay:      m.Reconnect.MaxDelay,
		Multiplier:    m.Reconnect.Multiplier,
	}
}

// DefaultQoS returns the configured QoS as a byte.
func (m MQTTConfig) DefaultQoS() byte {
	return byte(m.QoS)
}

// ReadTimeout returns the read timeout as a Duration.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
