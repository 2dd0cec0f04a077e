// Package config loads the mcud daemon's YAML configuration file: canvas
// geometry, crop mode, per-band fps parameters, input capacity, and the
// MQTT control-plane listener's broker settings. The compositor core
// itself never reads configuration directly — only the daemon does.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete mcud daemon configuration.
type Config struct {
	InstanceID string       `yaml:"instance_id"`
	Canvas     CanvasConfig `yaml:"canvas"`
	MaxInput   int          `yaml:"max_input"`
	HighBand   FpsBand      `yaml:"high_band"`
	LowBand    FpsBand      `yaml:"low_band"`
	MQTT       MQTTConfig   `yaml:"mqtt"`
}

// CanvasConfig describes the fixed composite canvas.
type CanvasConfig struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	BgY       byte `yaml:"bg_y"`
	BgCb      byte `yaml:"bg_cb"`
	BgCr      byte `yaml:"bg_cr"`
	CropPlace bool `yaml:"crop"` // true = crop, false = letterbox
}

// FpsBand configures one FrameGenerator's dyadic fps chain.
type FpsBand struct {
	MaxFps int `yaml:"max_fps"`
	MinFps int `yaml:"min_fps"`
}

// MQTTConfig describes the optional control-plane listener's broker.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	ControlTopic string `yaml:"control_topic"`
	StatusTopic  string `yaml:"status_topic"`
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and fills in defaults: hard errors on
// missing identity/geometry, defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if cfg.Canvas.Width <= 0 || cfg.Canvas.Height <= 0 {
		return fmt.Errorf("canvas.width and canvas.height must be positive")
	}
	if cfg.Canvas.Width&1 != 0 || cfg.Canvas.Height&1 != 0 {
		return fmt.Errorf("canvas.width and canvas.height must be even")
	}
	if cfg.MaxInput <= 0 {
		return fmt.Errorf("max_input must be positive")
	}

	if cfg.HighBand.MaxFps == 0 {
		cfg.HighBand.MaxFps = 60
	}
	if cfg.HighBand.MinFps == 0 {
		cfg.HighBand.MinFps = 15
	}
	if cfg.LowBand.MaxFps == 0 {
		cfg.LowBand.MaxFps = 48
	}
	if cfg.LowBand.MinFps == 0 {
		cfg.LowBand.MinFps = 6
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = fmt.Sprintf("mcud-%s", cfg.InstanceID)
	}
	if cfg.MQTT.ControlTopic == "" {
		cfg.MQTT.ControlTopic = fmt.Sprintf("mcu/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.StatusTopic == "" {
		cfg.MQTT.StatusTopic = fmt.Sprintf("mcu/status/%s", cfg.InstanceID)
	}

	return nil
}
