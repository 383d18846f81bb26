// Package config loads process-level runtime settings — the listen
// port, log level, and optional MQTT broker for telemetry — as distinct
// from the station's own domain configuration
// (stationsems/internal/station.StationConfig), which is an operational
// document read from a JSON file, not an environment-tunable process
// setting.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the process needs to start besides the
// station's own domain configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads process settings from v, which the caller has already
// seeded with cobra flag bindings (flags take precedence). Environment
// variables prefixed STATIONSEMS_ (e.g. STATIONSEMS_MQTT_BROKER) fill in
// anything a flag didn't set, and the defaults below fill in the rest.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("log.level", "info")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetEnvPrefix("stationsems")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
