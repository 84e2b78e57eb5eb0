package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned by Validate when the SolisCloud key pair
// or the station id is not configured.
var ErrMissingCredentials = errors.New("missing keyId, keySecret, or stationId in config")

type Config struct {
	Solis    SolisConfig    `mapstructure:"solis"`
	Reporter ReporterConfig `mapstructure:"reporter"`
	Sensors  SensorsConfig  `mapstructure:"sensors"`
	API      APIConfig      `mapstructure:"api"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
}

type SolisConfig struct {
	KeyID     string        `mapstructure:"key_id"`
	KeySecret string        `mapstructure:"key_secret"`
	StationID string        `mapstructure:"station_id"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ReporterConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// SensorsConfig toggles each published sensor category.
type SensorsConfig struct {
	Battery bool `mapstructure:"battery"`
	Solar   bool `mapstructure:"solar"`
	Net     bool `mapstructure:"net"`
	Load    bool `mapstructure:"load"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Broker          string `mapstructure:"broker"`
	TopicPrefix     string `mapstructure:"topic_prefix"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

type DatabaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// Validate reports which of the required SolisCloud settings are missing.
func (c SolisConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.KeyID) == "" {
		missing = append(missing, "key_id")
	}
	if strings.TrimSpace(c.KeySecret) == "" {
		missing = append(missing, "key_secret")
	}
	if strings.TrimSpace(c.StationID) == "" {
		missing = append(missing, "station_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/solis-monitor")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("solis.key_id", "")
	v.SetDefault("solis.key_secret", "")
	v.SetDefault("solis.station_id", "")
	v.SetDefault("solis.base_url", "https://www.soliscloud.com:13333")
	v.SetDefault("solis.timeout", "0s")
	v.SetDefault("reporter.interval", "1m")
	v.SetDefault("sensors.battery", true)
	v.SetDefault("sensors.solar", true)
	v.SetDefault("sensors.net", true)
	v.SetDefault("sensors.load", true)
	v.SetDefault("api.port", 8046)
	v.SetDefault("api.enabled", true)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "solis")
	v.SetDefault("mqtt.client_id", "solis-monitor")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "./solis.db")
	v.SetDefault("database.retention", "0s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Reporter.Interval <= 0 {
		return nil, fmt.Errorf("reporter.interval must be positive, got %s", cfg.Reporter.Interval)
	}

	return &cfg, nil
}
