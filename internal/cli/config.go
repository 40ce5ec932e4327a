package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. STIMLINE_DB.
const EnvPrefix = "STIMLINE"

// Config is the layered configuration shared by all commands.
// Precedence: flags, then STIMLINE_* environment, then the config file,
// then defaults.
type Config struct {
	DB       string        `mapstructure:"db"`
	Seed     uint64        `mapstructure:"seed"`
	TasksDir string        `mapstructure:"tasks_dir"`
	Preload  PreloadConfig `mapstructure:"preload"`
	Log      LogConfig     `mapstructure:"log"`

	// SeedSet reports whether a seed was given anywhere; without one,
	// compilation draws a fresh seed.
	SeedSet bool `mapstructure:"-"`
}

// PreloadConfig controls image warming before a run.
type PreloadConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     int           `mapstructure:"rps"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig controls the optional log file.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "")
	v.SetDefault("tasks_dir", "")
	v.SetDefault("preload.enabled", false)
	v.SetDefault("preload.rps", 10)
	v.SetDefault("preload.timeout", 30*time.Second)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// LoadConfig resolves configuration from v. An empty path skips the
// config file; a named file that cannot be read is an error.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows. The seed has no
	// default, since IsSet must stay false until one is given.
	if err := v.BindEnv("seed"); err != nil {
		return Config{}, fmt.Errorf("bind seed: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.SeedSet = v.IsSet("seed")
	return cfg, nil
}
