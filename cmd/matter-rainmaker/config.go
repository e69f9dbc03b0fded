package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"matter-rainmaker/internal/app"
	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

type Config struct {
	Node struct {
		ID         string `yaml:"id"` // empty: persisted or generated
		Name       string `yaml:"name"`
		Type       string `yaml:"type"`
		Model      string `yaml:"model"`
		FWVersion  string `yaml:"fw_version"`
		DeviceName string `yaml:"device_name"`
	} `yaml:"node"`
	Light struct {
		On                     bool   `yaml:"on"`
		Level                  uint8  `yaml:"level"`
		ColorTemperatureMireds uint16 `yaml:"color_temperature_mireds"`
		HueSaturation          bool   `yaml:"hue_saturation"`
		Hue                    uint8  `yaml:"hue"`
		Saturation             uint8  `yaml:"saturation"`
		ButtonEndpoint         uint16 `yaml:"button_endpoint"`
	} `yaml:"light"`
	Store struct {
		Path string `yaml:"path"` // empty: no persistence
	} `yaml:"store"`
	MQTT struct {
		Enabled          bool   `yaml:"enabled"`
		Broker           string `yaml:"broker"`
		Username         string `yaml:"username"`
		Password         string `yaml:"password"`
		ClientID         string `yaml:"client_id"`
		Embedded         bool   `yaml:"embedded"` // run an in-process broker
		Listen           string `yaml:"listen"`
		ReportIntervalMS int    `yaml:"report_interval_ms"`
		DiscoveryPrefix  string `yaml:"discovery_prefix"`
	} `yaml:"mqtt"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		MDNS           bool     `yaml:"mdns"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

// defaultConfig holds the values that cannot be told apart from an explicit
// zero after unmarshalling.
func defaultConfig() *Config {
	var cfg Config
	light := matter.DefaultLightConfig()
	cfg.Light.On = light.OnOff
	cfg.Light.Level = light.CurrentLevel
	cfg.Light.ColorTemperatureMireds = light.ColorTemperatureMireds
	return &cfg
}

func (c *Config) validate() error {
	if c.Light.Level > 254 {
		return fmt.Errorf("light.level must be 0-254, got %d", c.Light.Level)
	}
	if c.Light.ColorTemperatureMireds == 0 || c.Light.ColorTemperatureMireds > 65279 {
		return fmt.Errorf("light.color_temperature_mireds must be 1-65279, got %d", c.Light.ColorTemperatureMireds)
	}
	if c.Light.Hue > 254 || c.Light.Saturation > 254 {
		return fmt.Errorf("light.hue and light.saturation must be 0-254")
	}
	if c.MQTT.Enabled && !c.MQTT.Embedded && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required unless mqtt.embedded is set")
	}
	if c.MQTT.ReportIntervalMS < 0 {
		return fmt.Errorf("mqtt.report_interval_ms must not be negative")
	}
	if c.Web.MDNS {
		if _, _, err := net.SplitHostPort(c.Web.Listen); err != nil {
			return fmt.Errorf("web.listen %q: %w", c.Web.Listen, err)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Node.Name == "" {
		cfg.Node.Name = "ESP RainMaker Device"
	}
	if cfg.Node.Type == "" {
		cfg.Node.Type = "Lightbulb"
	}
	if cfg.Node.FWVersion == "" {
		cfg.Node.FWVersion = version
	}
	if cfg.Node.DeviceName == "" {
		cfg.Node.DeviceName = "Matter Light"
	}
	if cfg.Light.ButtonEndpoint == 0 {
		cfg.Light.ButtonEndpoint = 1
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.MQTT.Listen == "" {
		cfg.MQTT.Listen = "127.0.0.1:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "matter-rainmaker"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return cfg, nil
}

// appConfig converts the file configuration for app.New.
func (c *Config) appConfig() app.Config {
	return app.Config{
		NodeID: c.Node.ID,
		Info: rainmaker.Info{
			Name:      c.Node.Name,
			Type:      c.Node.Type,
			Model:     c.Node.Model,
			FWVersion: c.Node.FWVersion,
		},
		DeviceName: c.Node.DeviceName,
		Light: matter.LightConfig{
			OnOff:                  c.Light.On,
			CurrentLevel:           c.Light.Level,
			ColorTemperatureMireds: c.Light.ColorTemperatureMireds,
			HueSaturation:          c.Light.HueSaturation,
			CurrentHue:             c.Light.Hue,
			CurrentSaturation:      c.Light.Saturation,
		},
	}
}

// redacted returns a copy safe to print.
func (c *Config) redacted() *Config {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "***"
	}
	if out.Web.APIKey != "" {
		out.Web.APIKey = "***"
	}
	return &out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newLogger writes to stdout, or to a rotated file when log.file is set.
// The returned closer releases the file.
func newLogger(cfg *Config, stdout io.Writer) (*slog.Logger, io.Closer) {
	w := stdout
	var closer io.Closer = nopCloser{}
	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
