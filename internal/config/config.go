package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Pin numbering schemes for GPIOConfig.Numbering.
const (
	NumberingBoard = "board" // physical header pin (RPi.GPIO BOARD mode)
	NumberingBCM   = "bcm"   // Broadcom channel number
)

// Batch identifier styles for CaptureConfig.BatchID.
const (
	BatchIDTimestamp = "timestamp" // Unix seconds
	BatchIDClock     = "clock"     // HH:MM:SS
)

// GPIOConfig describes the trigger button and the optional busy LED.
type GPIOConfig struct {
	Pin                  int    `yaml:"pin" toml:"pin" json:"pin"`                                                    // button pin, see Numbering
	Numbering            string `yaml:"numbering" toml:"numbering" json:"numbering"`                                  // "board" or "bcm"
	BounceTimeMs         int    `yaml:"bounce_time_ms" toml:"bounce_time_ms" json:"bounce_time_ms"`                   // electrical debounce (ms)
	MinHandleIntervalSec int    `yaml:"min_handle_interval_s" toml:"min_handle_interval_s" json:"min_handle_interval_s"` // minimum spacing between batches (s)
	PollIntervalMs       int    `yaml:"poll_interval_ms" toml:"poll_interval_ms" json:"poll_interval_ms"`             // edge latch polling period (ms)
	StatusLEDPin         int    `yaml:"status_led_pin" toml:"status_led_pin" json:"status_led_pin"`                   // 0 = no LED
	Mock                 bool   `yaml:"mock" toml:"mock" json:"mock"`                                                 // use mock GPIO (dev/test)
}

// CaptureConfig describes device discovery, frame capture and the archive layout.
type CaptureConfig struct {
	DeviceGlob     string   `yaml:"device_glob" toml:"device_glob" json:"device_glob"`
	SysfsRoot      string   `yaml:"sysfs_root" toml:"sysfs_root" json:"sysfs_root"`
	Blacklist      []string `yaml:"blacklist" toml:"blacklist" json:"blacklist"` // device-name substrings, not patterns
	BatchID        string   `yaml:"batch_id" toml:"batch_id" json:"batch_id"`
	Width          int      `yaml:"width" toml:"width" json:"width"`   // 0 = largest supported
	Height         int      `yaml:"height" toml:"height" json:"height"` // 0 = largest supported
	JPEGQuality    int      `yaml:"jpeg_quality" toml:"jpeg_quality" json:"jpeg_quality"`
	FrameTimeoutMs int      `yaml:"frame_timeout_ms" toml:"frame_timeout_ms" json:"frame_timeout_ms"` // 0 = wait forever
}

// WebConfig enables the HTTP status/metrics surface.
type WebConfig struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"` // empty = disabled
}

// Config aggregates all application configuration.
type Config struct {
	Directory  string        `yaml:"directory" toml:"directory" json:"directory"`
	Instant    bool          `yaml:"instant" toml:"instant" json:"instant"`
	DebugLevel int           `yaml:"debug_level" toml:"debug_level" json:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	GPIO       GPIOConfig    `yaml:"gpio" toml:"gpio" json:"gpio"`
	Capture    CaptureConfig `yaml:"capture" toml:"capture" json:"capture"`
	Web        WebConfig     `yaml:"web" toml:"web" json:"web"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Directory:  "images",
		DebugLevel: 1,
		GPIO: GPIOConfig{
			Pin:                  10,
			Numbering:            NumberingBoard,
			BounceTimeMs:         300,
			MinHandleIntervalSec: 3,
			PollIntervalMs:       10,
		},
		Capture: CaptureConfig{
			DeviceGlob:  "/dev/video*",
			SysfsRoot:   "/sys/class/video4linux",
			Blacklist:   []string{"bcm2835"},
			BatchID:     BatchIDTimestamp,
			JPEGQuality: 90,
		},
	}
}

// Load reads a YAML or TOML file (chosen by extension) over the defaults
// and returns the validated configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills zero values that have a sensible default and rejects the rest.
func (c *Config) Validate() error {
	if c.Directory == "" {
		c.Directory = "images"
	}
	if c.DebugLevel < 0 || c.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.DebugLevel)
	}

	switch c.GPIO.Numbering {
	case "":
		c.GPIO.Numbering = NumberingBoard
	case NumberingBoard, NumberingBCM:
	default:
		return fmt.Errorf("gpio.numbering must be %q or %q, got %q", NumberingBoard, NumberingBCM, c.GPIO.Numbering)
	}
	if c.GPIO.Pin < 0 || (c.GPIO.Pin == 0 && c.GPIO.Numbering == NumberingBoard) {
		return fmt.Errorf("gpio.pin %d is not a valid %s pin", c.GPIO.Pin, c.GPIO.Numbering)
	}
	if c.GPIO.BounceTimeMs < 0 {
		return fmt.Errorf("gpio.bounce_time_ms must be >= 0, got %d", c.GPIO.BounceTimeMs)
	}
	if c.GPIO.MinHandleIntervalSec < 0 {
		return fmt.Errorf("gpio.min_handle_interval_s must be >= 0, got %d", c.GPIO.MinHandleIntervalSec)
	}
	if c.GPIO.PollIntervalMs <= 0 {
		c.GPIO.PollIntervalMs = 10
	}
	if c.GPIO.StatusLEDPin < 0 {
		return fmt.Errorf("gpio.status_led_pin must be >= 0, got %d", c.GPIO.StatusLEDPin)
	}
	if c.GPIO.StatusLEDPin != 0 && c.GPIO.StatusLEDPin == c.GPIO.Pin {
		return fmt.Errorf("gpio.status_led_pin must differ from gpio.pin (%d)", c.GPIO.Pin)
	}

	if c.Capture.DeviceGlob == "" {
		c.Capture.DeviceGlob = "/dev/video*"
	}
	if c.Capture.SysfsRoot == "" {
		c.Capture.SysfsRoot = "/sys/class/video4linux"
	}
	switch c.Capture.BatchID {
	case "":
		c.Capture.BatchID = BatchIDTimestamp
	case BatchIDTimestamp, BatchIDClock:
	default:
		return fmt.Errorf("capture.batch_id must be %q or %q, got %q", BatchIDTimestamp, BatchIDClock, c.Capture.BatchID)
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("capture.width/height must be >= 0, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if (c.Capture.Width == 0) != (c.Capture.Height == 0) {
		return fmt.Errorf("capture.width and capture.height must be set together, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = 90
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100, got %d", c.Capture.JPEGQuality)
	}
	if c.Capture.FrameTimeoutMs < 0 {
		return fmt.Errorf("capture.frame_timeout_ms must be >= 0, got %d", c.Capture.FrameTimeoutMs)
	}
	return nil
}

// BounceTime returns the electrical debounce window.
func (c *Config) BounceTime() time.Duration {
	return time.Duration(c.GPIO.BounceTimeMs) * time.Millisecond
}

// MinHandleInterval returns the minimum spacing between two accepted triggers.
func (c *Config) MinHandleInterval() time.Duration {
	return time.Duration(c.GPIO.MinHandleIntervalSec) * time.Second
}

// PollInterval returns the edge-detect polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.GPIO.PollIntervalMs) * time.Millisecond
}

// FrameTimeout returns the per-device frame wait limit. Zero means no limit.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Capture.FrameTimeoutMs) * time.Millisecond
}
