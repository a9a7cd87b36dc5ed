// Package config loads the nightlight YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/output"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config represents the daemon configuration.
type Config struct {
	Log       LogConfig      `yaml:"log"`
	Tick      Duration       `yaml:"tick"`
	Heartbeat *Duration      `yaml:"heartbeat"`
	Timezone  string         `yaml:"timezone"`
	Resync    ResyncConfig   `yaml:"resync"`
	Fallback  ColorConfig    `yaml:"fallback"`
	GapPolicy string         `yaml:"gap_policy"`
	Alarms    []AlarmConfig  `yaml:"alarms"`
	Output    OutputConfig   `yaml:"output"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	HTTP      HTTPConfig     `yaml:"http"`
	Database  DatabaseConfig `yaml:"database"`

	windows  []logic.AlarmWindow
	fallback logic.Appearance
	loc      *time.Location
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// ResyncConfig controls the NTP clock source.
type ResyncConfig struct {
	Server   string   `yaml:"server"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	// MinYear is the earliest year accepted as real wall-clock time.
	MinYear int `yaml:"min_year"`
}

// ColorConfig is a hex color with an intensity ratio. A nil Ratio means 255.
type ColorConfig struct {
	Color string `yaml:"color"`
	Ratio *int   `yaml:"ratio"`
}

// AlarmConfig is one schedule window. A nil Enabled means true.
type AlarmConfig struct {
	Name        string `yaml:"name"`
	Enabled     *bool  `yaml:"enabled"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	ColorConfig `yaml:",inline"`
}

// IsEnabled reports whether the window is active.
func (a AlarmConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// OutputConfig selects and configures the fixture driver.
type OutputConfig struct {
	Driver string           `yaml:"driver"`
	GPIO   GPIOOutputConfig `yaml:"gpio"`
	MQTT   MQTTOutputConfig `yaml:"mqtt"`
	Hue    HueOutputConfig  `yaml:"hue"`
}

// GPIOOutputConfig drives an on/off RGB LED on three GPIO lines.
type GPIOOutputConfig struct {
	Chip      string `yaml:"chip"`
	Red       int    `yaml:"red"`
	Green     int    `yaml:"green"`
	Blue      int    `yaml:"blue"`
	ActiveLow bool   `yaml:"active_low"`
	// Threshold is the minimum channel value that lights a pin.
	Threshold int `yaml:"threshold"`
}

// MQTTOutputConfig drives a light that accepts JSON commands on a topic.
type MQTTOutputConfig struct {
	Topic string `yaml:"topic"`
}

// HueOutputConfig drives a single Hue bulb.
type HueOutputConfig struct {
	Bridge string `yaml:"bridge"`
	User   string `yaml:"user"`
	Light  int    `yaml:"light"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// HTTPConfig contains status server settings. An empty addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig contains event ledger settings. An empty path disables it.
type DatabaseConfig struct {
	Path            string   `yaml:"path"`
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, expands environment variables, applies defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tick == 0 {
		c.Tick = Duration(time.Second)
	}
	// An explicit 0 disables the heartbeat.
	if c.Heartbeat == nil {
		hb := Duration(15 * time.Minute)
		c.Heartbeat = &hb
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Resync.Server == "" {
		c.Resync.Server = "pool.ntp.org"
	}
	if c.Resync.Interval == 0 {
		c.Resync.Interval = Duration(time.Hour)
	}
	if c.Resync.Timeout == 0 {
		c.Resync.Timeout = Duration(5 * time.Second)
	}
	if c.Resync.MinYear == 0 {
		c.Resync.MinYear = 2024
	}
	if c.Fallback.Color == "" {
		c.Fallback.Color = "#000000"
	}
	if c.GapPolicy == "" {
		c.GapPolicy = string(logic.GapHold)
	}
	if c.Output.Driver == "" {
		c.Output.Driver = output.DriverGPIO
	}
	if c.Output.GPIO.Chip == "" {
		c.Output.GPIO.Chip = "gpiochip0"
	}
	if c.Output.GPIO.Red == 0 {
		c.Output.GPIO.Red = output.DefaultPinRed
	}
	if c.Output.GPIO.Green == 0 {
		c.Output.GPIO.Green = output.DefaultPinGreen
	}
	if c.Output.GPIO.Blue == 0 {
		c.Output.GPIO.Blue = output.DefaultPinBlue
	}
	if c.Output.GPIO.Threshold == 0 {
		c.Output.GPIO.Threshold = 1
	}
	if c.Output.MQTT.Topic == "" {
		c.Output.MQTT.Topic = "home/nightlight/light/set"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "nightlight"
	}
	if c.Database.Retention == 0 {
		c.Database.Retention = Duration(30 * 24 * time.Hour)
	}
	if c.Database.CleanupInterval == 0 {
		c.Database.CleanupInterval = Duration(24 * time.Hour)
	}
}

func (c *Config) validate() error {
	if c.Tick.Duration() < 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalid)
	}
	if c.Heartbeat.Duration() < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative", ErrInvalid)
	}
	if c.Resync.Interval.Duration() < 0 || c.Resync.Timeout.Duration() < 0 {
		return fmt.Errorf("%w: resync interval and timeout must be positive", ErrInvalid)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	c.loc = loc

	switch logic.GapPolicy(c.GapPolicy) {
	case logic.GapHold, logic.GapFallback:
	default:
		return fmt.Errorf("%w: gap_policy %q: want hold or fallback", ErrInvalid, c.GapPolicy)
	}

	switch c.Output.Driver {
	case output.DriverGPIO, output.DriverMQTT, output.DriverHue, output.DriverNone:
	default:
		return fmt.Errorf("%w: output.driver %q", ErrInvalid, c.Output.Driver)
	}
	if c.Output.Driver == output.DriverMQTT && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: output.driver mqtt needs mqtt.broker", ErrInvalid)
	}
	if c.Output.Driver == output.DriverHue && (c.Output.Hue.Bridge == "" || c.Output.Hue.User == "" || c.Output.Hue.Light <= 0) {
		return fmt.Errorf("%w: output.hue needs bridge, user and light", ErrInvalid)
	}
	if t := c.Output.GPIO.Threshold; t < 1 || t > 255 {
		return fmt.Errorf("%w: output.gpio.threshold %d out of range [1,255]", ErrInvalid, t)
	}

	c.fallback, err = c.Fallback.appearance()
	if err != nil {
		return fmt.Errorf("%w: fallback: %v", ErrInvalid, err)
	}

	c.windows = make([]logic.AlarmWindow, 0, len(c.Alarms))
	for i, a := range c.Alarms {
		w, err := a.window()
		if err != nil {
			return fmt.Errorf("%w: alarms[%d] %q: %v", ErrInvalid, i, a.Name, err)
		}
		if w.Name == "" {
			w.Name = fmt.Sprintf("alarm-%d", i)
		}
		c.windows = append(c.windows, w)
	}
	return nil
}

func (a AlarmConfig) window() (logic.AlarmWindow, error) {
	from, err := logic.ParseTimeOfDay(a.From)
	if err != nil {
		return logic.AlarmWindow{}, fmt.Errorf("from: %w", err)
	}
	to, err := logic.ParseTimeOfDay(a.To)
	if err != nil {
		return logic.AlarmWindow{}, fmt.Errorf("to: %w", err)
	}
	app, err := a.appearance()
	if err != nil {
		return logic.AlarmWindow{}, err
	}
	return logic.AlarmWindow{
		Name:       a.Name,
		Enabled:    a.IsEnabled(),
		From:       from,
		To:         to,
		Appearance: app,
	}, nil
}

func (c ColorConfig) appearance() (logic.Appearance, error) {
	color, err := ParseColor(c.Color)
	if err != nil {
		return logic.Appearance{}, err
	}
	ratio := 255
	if c.Ratio != nil {
		ratio = *c.Ratio
	}
	if ratio < 0 || ratio > 255 {
		return logic.Appearance{}, fmt.Errorf("ratio %d out of range [0,255]", ratio)
	}
	return logic.Appearance{Color: color, Ratio: uint8(ratio)}, nil
}

// ParseColor parses a #rrggbb (or #rgb) hex color.
func ParseColor(s string) (logic.Color, error) {
	s = strings.TrimSpace(s)
	c, err := colorful.Hex(s)
	if err != nil {
		return logic.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return logic.Color{R: r, G: g, B: b}, nil
}

// HeartbeatInterval returns the heartbeat period; 0 means disabled.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.Heartbeat == nil {
		return 0
	}
	return c.Heartbeat.Duration()
}

// Windows returns the parsed alarm table in file order.
func (c *Config) Windows() []logic.AlarmWindow {
	w := make([]logic.AlarmWindow, len(c.windows))
	copy(w, c.windows)
	return w
}

// FallbackAppearance returns the parsed fallback appearance.
func (c *Config) FallbackAppearance() logic.Appearance {
	return c.fallback
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	return c.loc
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
