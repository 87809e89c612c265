package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "eleven"

type Config struct {
	LogLevel zapcore.Level
	Eleven   ElevenConfig `mapstructure:"eleven"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`
	Port     uint         `mapstructure:"port"`
	HttpLog  bool         `mapstructure:"http_log"`
}

type ElevenConfig struct {
	Token                 string
	BaseURL               string `mapstructure:"base_url"`
	PollIntervalSeconds   uint32 `mapstructure:"poll_interval_seconds"`
	RequestTimeoutMillis  uint32 `mapstructure:"request_timeout_millis"`
	RetryUnitMillis       uint32 `mapstructure:"retry_unit_millis"`
	DiscoveryRetrySeconds uint32 `mapstructure:"discovery_retry_seconds"`
	ValidateToken         bool   `mapstructure:"validate_token"`
}

func (c ElevenConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c ElevenConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

func (c ElevenConfig) RetryUnit() time.Duration {
	return time.Duration(c.RetryUnitMillis) * time.Millisecond
}

func (c ElevenConfig) DiscoveryRetry() time.Duration {
	return time.Duration(c.DiscoveryRetrySeconds) * time.Second
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("eleven.token", "")
	v.SetDefault("eleven.base_url", "https://portal.elevenenergy.co.uk/api/v1/")
	v.SetDefault("eleven.poll_interval_seconds", 60)
	v.SetDefault("eleven.request_timeout_millis", 10000)
	v.SetDefault("eleven.retry_unit_millis", 1000)
	v.SetDefault("eleven.discovery_retry_seconds", 30)
	v.SetDefault("eleven.validate_token", true)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.ha_discovery_enable", true)
	v.SetDefault("mqtt.base_topic", "eleven")
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
}

// Load reads the configuration from the environment (ELEVEN_ prefix) and,
// when CONFIG_FILE points to an existing file, from that file.
func Load(v *viper.Viper) (*Config, error) {

	// alias PORT => ELEVEN_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ELEVEN_PORT", port)
	}

	SetDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// short form of ELEVEN_ELEVEN_TOKEN
	_ = v.BindEnv("eleven.token", "ELEVEN_ELEVEN_TOKEN", "ELEVEN_TOKEN")

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks bounds and normalizes topics in place.
func (cfg *Config) Validate() error {

	if cfg.Eleven.Token == "" {
		return errors.New("config param eleven.token is required")
	}
	if cfg.Eleven.BaseURL == "" {
		return errors.New("config param eleven.base_url is required")
	}

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Eleven.PollIntervalSeconds < 10 {
		return errors.New("config param eleven.poll_interval_seconds should be >= 10")
	}
	if cfg.Eleven.RequestTimeoutMillis < 100 {
		return errors.New("config param eleven.request_timeout_millis should be >= 100")
	}
	if cfg.Eleven.RetryUnitMillis == 0 {
		return errors.New("config param eleven.retry_unit_millis should be > 0")
	}
	if cfg.Eleven.DiscoveryRetrySeconds == 0 {
		return errors.New("config param eleven.discovery_retry_seconds should be > 0")
	}
	if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
		return fmt.Errorf("config param mqtt.port out of range: %d", cfg.MQTT.Port)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (cfg Config) Redacted() Config {
	cfg.Eleven.Token = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	return cfg
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
