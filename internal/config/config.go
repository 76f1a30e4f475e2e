// Package config loads and saves the converter settings. Settings live in a
// JSON file; a missing file is created with defaults on first Load.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Image output modes.
const (
	ImageModeInline = "inline"
	ImageModeDir    = "dir"
)

// Native automation switch values.
const (
	NativeAuto = "auto"
	NativeOff  = "off"
)

// Config holds all converter settings.
type Config struct {
	Images ImagesConfig `json:"images"`
	Legacy LegacyConfig `json:"legacy"`
	PDF    PDFConfig    `json:"pdf"`
	Log    LogConfig    `json:"log"`
}

// ImagesConfig selects where extracted images go.
type ImagesConfig struct {
	Mode      string `json:"mode"`
	Dir       string `json:"dir"`
	URLPrefix string `json:"url_prefix"`
}

// LegacyConfig controls the .doc extraction chain.
type LegacyConfig struct {
	Native         string `json:"native"`
	SofficePath    string `json:"soffice_path"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// PDFConfig tunes line reconstruction.
type PDFConfig struct {
	LineThreshold float64 `json:"line_threshold"`
	ExtractImages bool    `json:"extract_images"`
}

// LogConfig configures the error log. An empty ErrorDir disables it.
type LogConfig struct {
	ErrorDir string `json:"error_dir"`
	RotateMB int    `json:"rotate_mb"`
}

// Keys lists every key accepted by Update and WithOverrides.
var Keys = []string{
	"images.mode",
	"images.dir",
	"images.url_prefix",
	"legacy.native",
	"legacy.soffice_path",
	"legacy.timeout_seconds",
	"pdf.line_threshold",
	"pdf.extract_images",
	"log.error_dir",
	"log.rotate_mb",
}

// ConfigManager manages loading, saving and updating the config file.
type ConfigManager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewConfigManager returns a manager for the file at configPath.
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{configPath: configPath}
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Images: ImagesConfig{
			Mode: ImageModeInline,
			Dir:  "images",
		},
		Legacy: LegacyConfig{
			Native:         NativeAuto,
			TimeoutSeconds: 60,
		},
		PDF: PDFConfig{
			LineThreshold: 5,
			ExtractImages: true,
		},
		Log: LogConfig{
			RotateMB: 10,
		},
	}
}

// Load reads the config file. Keys missing from the file keep their
// defaults; a missing file is created with defaults.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cm.config = DefaultConfig()
			return cm.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	applyDefaults(cfg)
	cm.config = cfg
	return nil
}

// Save writes the current config.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.saveLocked()
}

// saveLocked writes through a temp file and rename so a crash never leaves
// a truncated config behind.
func (cm *ConfigManager) saveLocked() error {
	if cm.config == nil {
		return errors.New("no config loaded")
	}
	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(cm.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	tmp := cm.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmp, cm.configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current config, or nil before Load.
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.config == nil {
		return nil
	}
	c := *cm.config
	return &c
}

// Update applies dotted-key updates and saves. Nothing is applied when any
// key is rejected.
func (cm *ConfigManager) Update(updates map[string]any) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	base := cm.config
	if base == nil {
		base = DefaultConfig()
	}
	next, err := base.WithOverrides(updates)
	if err != nil {
		return err
	}
	cm.config = next
	return cm.saveLocked()
}

// WithOverrides returns a copy of c with updates applied. c is unchanged.
func (c *Config) WithOverrides(updates map[string]any) (*Config, error) {
	out := *c
	for key, val := range updates {
		if err := out.set(key, val); err != nil {
			return nil, fmt.Errorf("update key %q: %w", key, err)
		}
	}
	return &out, nil
}

func (c *Config) set(key string, val any) error {
	switch key {
	case "images.mode":
		s, err := toString(val)
		if err != nil {
			return err
		}
		s = strings.ToLower(s)
		if s != ImageModeInline && s != ImageModeDir {
			return fmt.Errorf("mode must be %q or %q", ImageModeInline, ImageModeDir)
		}
		c.Images.Mode = s
	case "images.dir":
		s, err := toString(val)
		if err != nil {
			return err
		}
		if s == "" {
			return errors.New("dir must not be empty")
		}
		c.Images.Dir = s
	case "images.url_prefix":
		s, err := toString(val)
		if err != nil {
			return err
		}
		c.Images.URLPrefix = s

	case "legacy.native":
		s, err := toString(val)
		if err != nil {
			return err
		}
		s = strings.ToLower(s)
		if s != NativeAuto && s != NativeOff {
			return fmt.Errorf("native must be %q or %q", NativeAuto, NativeOff)
		}
		c.Legacy.Native = s
	case "legacy.soffice_path":
		s, err := toString(val)
		if err != nil {
			return err
		}
		c.Legacy.SofficePath = s
	case "legacy.timeout_seconds":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		if n < 1 {
			return errors.New("timeout_seconds must be positive")
		}
		c.Legacy.TimeoutSeconds = n

	case "pdf.line_threshold":
		f, err := toFloat64(val)
		if err != nil {
			return err
		}
		if f <= 0 {
			return errors.New("line_threshold must be positive")
		}
		c.PDF.LineThreshold = f
	case "pdf.extract_images":
		b, err := toBool(val)
		if err != nil {
			return err
		}
		c.PDF.ExtractImages = b

	case "log.error_dir":
		s, err := toString(val)
		if err != nil {
			return err
		}
		c.Log.ErrorDir = s
	case "log.rotate_mb":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		if n < 1 {
			return errors.New("rotate_mb must be at least 1")
		}
		c.Log.RotateMB = n

	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// applyDefaults repairs zero or invalid values read from disk.
func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	switch strings.ToLower(cfg.Images.Mode) {
	case ImageModeInline, ImageModeDir:
		cfg.Images.Mode = strings.ToLower(cfg.Images.Mode)
	default:
		cfg.Images.Mode = defaults.Images.Mode
	}
	if cfg.Images.Dir == "" {
		cfg.Images.Dir = defaults.Images.Dir
	}
	switch strings.ToLower(cfg.Legacy.Native) {
	case NativeAuto, NativeOff:
		cfg.Legacy.Native = strings.ToLower(cfg.Legacy.Native)
	default:
		cfg.Legacy.Native = defaults.Legacy.Native
	}
	if cfg.Legacy.TimeoutSeconds <= 0 {
		cfg.Legacy.TimeoutSeconds = defaults.Legacy.TimeoutSeconds
	}
	if cfg.PDF.LineThreshold <= 0 {
		cfg.PDF.LineThreshold = defaults.PDF.LineThreshold
	}
	if cfg.Log.RotateMB <= 0 {
		cfg.Log.RotateMB = defaults.Log.RotateMB
	}
}

// --- Type conversion helpers ---
//
// Values arrive as JSON numbers from the file and as strings from
// environment overrides.

func toString(val any) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", val)
	}
	return s, nil
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}

func toInt(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}

func toBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("expected boolean, got %T", val)
	}
}
