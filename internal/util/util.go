package util

import (
	"github.com/berfenger/eleven2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Eleven: config.ElevenConfig{
			Token:                 "test-token",
			BaseURL:               "http://localhost:1/api/v1/",
			PollIntervalSeconds:   60,
			RequestTimeoutMillis:  1000,
			RetryUnitMillis:       10,
			DiscoveryRetrySeconds: 1,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "eleven",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		Port: 8080,
	}
}
