// Package config loads configuration for remotectl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/frudas24/remotectl/internal/device"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr         = "0.0.0.0:8787"
	defaultDataDir            = "./data"
	defaultConfigFile         = "remotectl.yaml"
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
	defaultMaxPointers        = 10
	defaultPowerOffDelayMs    = 200
	defaultPowerOnSettleMs    = 500
	defaultDisplaySize        = "1080x1920/420"
	defaultMaxControllers     = 4
	defaultAudioStartAttempts = 3
	defaultAudioStartRetryMs  = 100
	defaultAudioChunkMs       = 20
)

// Keyboard backends for text injection.
const (
	KeyboardEmulated = "emulated"
	KeyboardHost     = "host"
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr         string `yaml:"listen_addr"`
	ControlTCPAddr     string `yaml:"control_tcp_addr"`
	DataDir            string `yaml:"data_dir"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"`
	MaxPointers        int    `yaml:"max_pointers"`
	PowerOffDelayMs    int    `yaml:"power_off_delay_ms"`
	PowerOn            bool   `yaml:"power_on"`
	PowerOnSettleMs    int    `yaml:"power_on_settle_ms"`
	ClipboardAutosync  bool   `yaml:"clipboard_autosync"`
	DisplaySize        string `yaml:"display_size"`
	MaxControllers     int    `yaml:"max_controllers"`
	AudioEnabled       bool   `yaml:"audio_enabled"`
	AudioRTPAddr       string `yaml:"audio_rtp_addr"`
	AudioIngestAddr    string `yaml:"audio_ingest_addr"`
	AudioStartAttempts int    `yaml:"audio_start_attempts"`
	AudioStartRetryMs  int    `yaml:"audio_start_retry_ms"`
	AudioChunkMs       int    `yaml:"audio_chunk_ms"`
	KeyboardBackend    string `yaml:"keyboard_backend"`

	// ConfigPath is the YAML file that was loaded, empty when none.
	ConfigPath string `yaml:"-"`
	// Display is the parsed DisplaySize.
	Display device.DisplaySize `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:         defaultListenAddr,
		DataDir:            defaultDataDir,
		LogLevel:           defaultLogLevel,
		LogFormat:          defaultLogFormat,
		MaxPointers:        defaultMaxPointers,
		PowerOffDelayMs:    defaultPowerOffDelayMs,
		PowerOnSettleMs:    defaultPowerOnSettleMs,
		ClipboardAutosync:  true,
		DisplaySize:        defaultDisplaySize,
		MaxControllers:     defaultMaxControllers,
		AudioStartAttempts: defaultAudioStartAttempts,
		AudioStartRetryMs:  defaultAudioStartRetryMs,
		AudioChunkMs:       defaultAudioChunkMs,
		KeyboardBackend:    KeyboardEmulated,
	}
}

// Load reads configuration from an optional YAML file, ./data/.env and environment variables.
// path selects the YAML file; when empty CONFIG_FILE or ./data/remotectl.yaml is used.
// A missing file is only an error when it was requested explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadEnvFile(filepath.Join(cfg.DataDir, ".env")); err != nil {
		return Config{}, err
	}

	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(cfg.DataDir, defaultConfigFile)
	}
	loaded, err := loadYAMLFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if !loaded && explicit {
		return Config{}, fmt.Errorf("config file %s not found", path)
	}
	if loaded {
		cfg.ConfigPath = path
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with environment variables.
func applyEnv(cfg *Config) error {
	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.ControlTCPAddr = envString("CONTROL_TCP_ADDR", cfg.ControlTCPAddr)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)
	cfg.DisplaySize = envString("DISPLAY_SIZE", cfg.DisplaySize)
	cfg.AudioRTPAddr = envString("AUDIO_RTP_ADDR", cfg.AudioRTPAddr)
	cfg.AudioIngestAddr = envString("AUDIO_INGEST_ADDR", cfg.AudioIngestAddr)
	cfg.KeyboardBackend = envString("KEYBOARD_BACKEND", cfg.KeyboardBackend)
	cfg.PowerOn = envBool("POWER_ON", cfg.PowerOn)
	cfg.ClipboardAutosync = envBool("CLIPBOARD_AUTOSYNC", cfg.ClipboardAutosync)
	cfg.AudioEnabled = envBool("AUDIO_ENABLED", cfg.AudioEnabled)

	ints := []struct {
		key   string
		value *int
	}{
		{"MAX_POINTERS", &cfg.MaxPointers},
		{"POWER_OFF_DELAY_MS", &cfg.PowerOffDelayMs},
		{"POWER_ON_SETTLE_MS", &cfg.PowerOnSettleMs},
		{"MAX_CONTROLLERS", &cfg.MaxControllers},
		{"AUDIO_START_ATTEMPTS", &cfg.AudioStartAttempts},
		{"AUDIO_START_RETRY_MS", &cfg.AudioStartRetryMs},
		{"AUDIO_CHUNK_MS", &cfg.AudioChunkMs},
	}
	for _, item := range ints {
		v, err := envInt(item.key, *item.value)
		if err != nil {
			return err
		}
		*item.value = v
	}
	return nil
}

// Validate checks value ranges and parses derived fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	if c.MaxPointers <= 0 || c.MaxPointers > 32 {
		return fmt.Errorf("MAX_POINTERS must be 1-32")
	}
	if c.PowerOffDelayMs <= 0 {
		return fmt.Errorf("POWER_OFF_DELAY_MS must be > 0")
	}
	if c.PowerOnSettleMs < 0 {
		return fmt.Errorf("POWER_ON_SETTLE_MS must be >= 0")
	}
	if c.MaxControllers < 0 {
		return fmt.Errorf("MAX_CONTROLLERS must be >= 0")
	}
	if c.AudioStartAttempts <= 0 {
		return fmt.Errorf("AUDIO_START_ATTEMPTS must be > 0")
	}
	if c.AudioStartRetryMs < 0 {
		return fmt.Errorf("AUDIO_START_RETRY_MS must be >= 0")
	}
	if c.AudioChunkMs <= 0 || c.AudioChunkMs > 1000 {
		return fmt.Errorf("AUDIO_CHUNK_MS must be 1-1000")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	switch c.KeyboardBackend {
	case KeyboardEmulated, KeyboardHost:
	default:
		return fmt.Errorf("KEYBOARD_BACKEND must be %s or %s", KeyboardEmulated, KeyboardHost)
	}
	display, err := device.ParseDisplaySize(c.DisplaySize)
	if err != nil {
		return fmt.Errorf("DISPLAY_SIZE: %w", err)
	}
	c.Display = display
	return nil
}

// loadYAMLFile merges a YAML file into cfg and reports whether it existed.
func loadYAMLFile(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(value), `"'`), true
}
