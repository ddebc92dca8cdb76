package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

const appName = "ptask"

type Config struct {
	DataFile        string        `toml:"data_file" env:"PTASK_DATA_FILE"`
	LogLevel        string        `toml:"log_level" env:"PTASK_LOG_LEVEL" env-default:"info"`
	LogFile         string        `toml:"log_file" env:"PTASK_LOG_FILE"`
	LockTimeout     time.Duration `toml:"lock_timeout" env:"PTASK_LOCK_TIMEOUT" env-default:"5s"`
	Workers         int           `toml:"workers" env:"PTASK_WORKERS" env-default:"4"`
	DefaultCategory string        `toml:"default_category" env:"PTASK_DEFAULT_CATEGORY" env-default:"general"`
}

// Load reads the config file at path (if it exists) and then the environment.
// An empty path means DefaultPath(). A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultPath()
	}

	// пробуем файл, если его нет - только env
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}

	if cfg.DataFile == "" {
		cfg.DataFile = DefaultDataFile()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/ptask/config.toml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, "config.toml")
}

// DefaultDataFile is $XDG_DATA_HOME/ptask/tasks.json.
func DefaultDataFile() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appName, "tasks.json")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, fallback)
}

// Default returns the built-in settings without reading file or env.
func Default() Config {
	return Config{
		DataFile:        DefaultDataFile(),
		LogLevel:        "info",
		LockTimeout:     5 * time.Second,
		Workers:         4,
		DefaultCategory: "general",
	}
}

// WriteDefault creates a starter config file. An existing file is left alone
// unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %q already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if _, err := fmt.Fprintln(f, "# ptask configuration; PTASK_* environment variables take precedence"); err != nil {
		return err
	}
	if err := Encode(f, cfg); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes cfg as TOML. Durations are written as strings so cleanenv can
// read them back.
func Encode(w io.Writer, cfg Config) error {
	doc := struct {
		DataFile        string `toml:"data_file"`
		LogLevel        string `toml:"log_level"`
		LogFile         string `toml:"log_file"`
		LockTimeout     string `toml:"lock_timeout"`
		Workers         int    `toml:"workers"`
		DefaultCategory string `toml:"default_category"`
	}{
		DataFile:        cfg.DataFile,
		LogLevel:        cfg.LogLevel,
		LogFile:         cfg.LogFile,
		LockTimeout:     cfg.LockTimeout.String(),
		Workers:         cfg.Workers,
		DefaultCategory: cfg.DefaultCategory,
	}
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
