package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything the client needs at startup.
type Config struct {
	Backend  BackendConfig
	Session  SessionConfig
	Carousel CarouselConfig
	Logging  LoggingConfig
}

// BackendConfig holds the managed backend coordinates. Both values empty
// means the client runs in offline/demo mode.
type BackendConfig struct {
	URL     string
	AnonKey string
}

// SessionConfig controls bootstrap timing and where sessions are persisted.
type SessionConfig struct {
	BootstrapTimeout time.Duration
	Storage          string // keyring, file, memory
	FilePath         string
}

// CarouselConfig tunes swipe handling.
type CarouselConfig struct {
	SwipeThreshold int // pixels
	PixelsPerCell  int
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string
	Format string // json, console
	File   string
}

const (
	defaultConfigPath       = "~/.config/alchemy/config.toml"
	defaultSessionFile      = "~/.local/state/alchemy/session.toml"
	defaultLogFile          = "~/.local/state/alchemy/alchemy.log"
	defaultBootstrapTimeout = 5 * time.Second
	defaultSwipeThreshold   = 50
	defaultStorage          = StorageKeyring
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
)

// DefaultPixelsPerCell converts terminal cells to the pixel distances the
// swipe threshold is expressed in.
const DefaultPixelsPerCell = 8

// Session storage modes.
const (
	StorageKeyring = "keyring"
	StorageFile    = "file"
	StorageMemory  = "memory"
)

type rawConfig struct {
	Backend struct {
		URL     string `toml:"url"`
		AnonKey string `toml:"anon_key"`
	} `toml:"backend"`
	Session struct {
		BootstrapTimeout string `toml:"bootstrap_timeout"`
		Storage          string `toml:"storage"`
		File             string `toml:"file"`
	} `toml:"session"`
	Carousel struct {
		SwipeThreshold int `toml:"swipe_threshold"`
		PixelsPerCell  int `toml:"pixels_per_cell"`
	} `toml:"carousel"`
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"logging"`
}

// Load reads the TOML config at path (or the default location), then applies
// environment overrides. A missing config file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	data, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}
	if data != nil {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := Config{
		Backend: BackendConfig{
			URL:     strings.TrimSpace(raw.Backend.URL),
			AnonKey: strings.TrimSpace(raw.Backend.AnonKey),
		},
		Session: SessionConfig{
			BootstrapTimeout: defaultBootstrapTimeout,
			Storage:          strings.ToLower(strings.TrimSpace(raw.Session.Storage)),
			FilePath:         strings.TrimSpace(raw.Session.File),
		},
		Carousel: CarouselConfig{
			SwipeThreshold: raw.Carousel.SwipeThreshold,
			PixelsPerCell:  raw.Carousel.PixelsPerCell,
		},
		Logging: LoggingConfig{
			Level:  strings.TrimSpace(raw.Logging.Level),
			Format: strings.TrimSpace(raw.Logging.Format),
			File:   strings.TrimSpace(raw.Logging.File),
		},
	}

	if v := strings.TrimSpace(raw.Session.BootstrapTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse session.bootstrap_timeout: %w", err)
		}
		cfg.Session.BootstrapTimeout = d
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	switch cfg.Session.Storage {
	case StorageKeyring, StorageFile, StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown session storage %q", cfg.Session.Storage)
	}
	return cfg, nil
}

// LoadEnvFiles loads dotenv files into the process environment. Missing files
// are ignored; an explicit path that cannot be read is an error.
func LoadEnvFiles(explicit string) error {
	if strings.TrimSpace(explicit) != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	return nil
}

// BackendConfigured reports whether both backend values are present.
func (c Config) BackendConfigured() bool {
	return c.Backend.URL != "" && c.Backend.AnonKey != ""
}

func applyEnv(cfg *Config) error {
	if v := firstEnv("SUPABASE_URL", "VITE_SUPABASE_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := firstEnv("SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY"); v != "" {
		cfg.Backend.AnonKey = v
	}
	if v := firstEnv("ALCHEMY_BOOTSTRAP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ALCHEMY_BOOTSTRAP_TIMEOUT: %w", err)
		}
		cfg.Session.BootstrapTimeout = d
	}
	if v := firstEnv("ALCHEMY_SESSION_STORAGE"); v != "" {
		cfg.Session.Storage = strings.ToLower(v)
	}
	if v := firstEnv("ALCHEMY_SWIPE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ALCHEMY_SWIPE_THRESHOLD: %w", err)
		}
		cfg.Carousel.SwipeThreshold = n
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := firstEnv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := firstEnv("ALCHEMY_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Session.BootstrapTimeout <= 0 {
		cfg.Session.BootstrapTimeout = defaultBootstrapTimeout
	}
	if cfg.Session.Storage == "" {
		cfg.Session.Storage = defaultStorage
	}
	if cfg.Session.FilePath == "" {
		cfg.Session.FilePath = defaultSessionFile
	}
	cfg.Session.FilePath = mustExpand(cfg.Session.FilePath)

	if cfg.Carousel.SwipeThreshold <= 0 {
		cfg.Carousel.SwipeThreshold = defaultSwipeThreshold
	}
	if cfg.Carousel.PixelsPerCell <= 0 {
		cfg.Carousel.PixelsPerCell = DefaultPixelsPerCell
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLogFormat
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultLogFile
	}
	cfg.Logging.File = mustExpand(cfg.Logging.File)
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading tilde and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
