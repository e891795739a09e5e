package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Hanchu   HanchuConfig `mapstructure:"hanchu"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type HanchuConfig struct {
	Username       string
	Password       string
	InverterSerial string `mapstructure:"inverter_serial"`
	BatterySerial  string `mapstructure:"battery_serial"`
	BaseURL        string `mapstructure:"base_url"`
}

type MonitorConfig struct {
	InverterPollIntervalSeconds uint32 `mapstructure:"inverter_poll_interval_seconds"`
	BatteryPollIntervalSeconds  uint32 `mapstructure:"battery_poll_interval_seconds"`
	AvailabilityThreshold       uint   `mapstructure:"availability_threshold"`
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
