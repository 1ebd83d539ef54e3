// Package config resolves the run configuration from flags, environment,
// an optional YAML file and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/skobkin/amdgputop/internal/metrics"
)

// Keys shared by flags, environment variables and the config file.
const (
	KeyUpdate    = "update"
	KeyNoColor   = "no-color"
	KeyDisable   = "disable"
	KeyCard      = "card"
	KeySysfsRoot = "sysfs-root"
	KeyTextfile  = "textfile"
	KeyLogFile   = "log-file"
	KeyLogLevel  = "log-level"
	KeyOnce      = "once"
)

// EnvPrefix prefixes every environment variable, e.g. AMDGPUTOP_UPDATE.
const EnvPrefix = "AMDGPUTOP"

const (
	defaultInterval = 2 * time.Second
	configName      = "config"
	configDir       = "amdgputop"
)

// ErrAllRowsDisabled means there is nothing to draw.
var ErrAllRowsDisabled = errors.New("all rows disabled")

// Config is the immutable run configuration.
type Config struct {
	Interval  time.Duration
	Color     bool
	Disabled  []string
	Card      string
	SysfsRoot string
	Textfile  string
	LogFile   string
	LogLevel  slog.Level
	Once      bool
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyUpdate, strconv.Itoa(int(defaultInterval/time.Second)))
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeyDisable, []string{})
	v.SetDefault(KeyCard, "auto")
	v.SetDefault(KeySysfsRoot, "/sys")
	v.SetDefault(KeyTextfile, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyOnce, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML config file into v. An explicit path must exist;
// the default location under the user config dir is optional.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, configDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load validates the values held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Color:     !v.GetBool(KeyNoColor),
		Disabled:  v.GetStringSlice(KeyDisable),
		Card:      strings.TrimSpace(v.GetString(KeyCard)),
		SysfsRoot: strings.TrimSpace(v.GetString(KeySysfsRoot)),
		Textfile:  strings.TrimSpace(v.GetString(KeyTextfile)),
		LogFile:   strings.TrimSpace(v.GetString(KeyLogFile)),
		Once:      v.GetBool(KeyOnce),
	}

	interval, err := parseInterval(v.GetString(KeyUpdate))
	if err != nil {
		return Config{}, fmt.Errorf("parse update: %w", err)
	}
	if interval <= 0 {
		return Config{}, fmt.Errorf("update must be > 0")
	}
	cfg.Interval = interval

	level, err := parseLogLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("parse log-level: %w", err)
	}
	cfg.LogLevel = level

	if cfg.SysfsRoot == "" {
		return Config{}, fmt.Errorf("sysfs-root must not be empty")
	}
	if cfg.Card == "" {
		cfg.Card = "auto"
	}

	if cfg.Registry().AllDisabled() {
		return cfg, ErrAllRowsDisabled
	}
	return cfg, nil
}

// Registry builds the row registry with the configured rows disabled.
func (c Config) Registry() *metrics.Registry {
	reg := metrics.NewRegistry()
	for _, item := range c.Disabled {
		reg.DisableList(item)
	}
	return reg
}

// parseInterval accepts whole seconds ("2") or a Go duration ("500ms").
func parseInterval(input string) (time.Duration, error) {
	value := strings.TrimSpace(input)
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", input)
	}
	return d, nil
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
