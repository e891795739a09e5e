package util

import (
	"github.com/berfenger/hanchu2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Hanchu: config.HanchuConfig{
			Username:       "user@example.com",
			Password:       "secret",
			InverterSerial: "HESI30TEST001",
			BatterySerial:  "HESB10TEST001",
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "hanchu2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			InverterPollIntervalSeconds: 30,
			BatteryPollIntervalSeconds:  60,
			AvailabilityThreshold:       3,
		},
		Port: 8080,
	}
}
