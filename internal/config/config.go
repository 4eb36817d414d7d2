// Package config loads segrotd's daemon configuration from a YAML file,
// environment overrides, and defaults, using viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Archiver selects which packaging implementation the compressor uses.
type Archiver string

const (
	ArchiverExec       Archiver = "exec"
	ArchiverNativeGzip Archiver = "native-gzip"
	ArchiverNativeZstd Archiver = "native-zstd"
)

// Config is the validated, fully-defaulted daemon configuration.
type Config struct {
	WatchDir           string   `mapstructure:"watch_dir"`
	Streams            []string `mapstructure:"streams"`
	MaxGenerations     int      `mapstructure:"max_generations"`
	DeletePriorArchive bool     `mapstructure:"delete_prior_archive"`
	DeleteOriginals    bool     `mapstructure:"delete_originals"`
	Archiver           Archiver `mapstructure:"archiver"`
	ArchiverPath       string   `mapstructure:"archiver_path"`
	DummyToken         string   `mapstructure:"dummy_token"`
	StrictPrefix       bool     `mapstructure:"strict_prefix"`
	Debug              bool     `mapstructure:"debug"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("watch_dir", "var/log/")
	v.SetDefault("streams", []string{"ipstrc", "pdtrc", "ipmgr", "inttrc"})
	v.SetDefault("max_generations", 5)
	v.SetDefault("delete_prior_archive", true)
	v.SetDefault("delete_originals", true)
	v.SetDefault("archiver", string(ArchiverNativeGzip))
	v.SetDefault("archiver_path", "")
	v.SetDefault("dummy_token", "dummy")
	v.SetDefault("strict_prefix", false)
	v.SetDefault("debug", false)
}

// Load reads configuration from path (if non-empty), overlaying
// SEGROTD_-prefixed environment variables and the defaults above, and
// returns a validated Config. path may be empty to use defaults and
// environment alone.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("segrotd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode configuration")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.WatchDir == "" {
		return errors.New("watch_dir must not be empty")
	}
	if len(c.Streams) == 0 {
		return errors.New("streams must list at least one stream")
	}
	if c.MaxGenerations < 1 {
		return errors.Errorf("max_generations must be >= 1, got %d", c.MaxGenerations)
	}
	switch c.Archiver {
	case ArchiverExec, ArchiverNativeGzip, ArchiverNativeZstd:
	default:
		return errors.Errorf("unknown archiver %q", c.Archiver)
	}
	if c.Archiver == ArchiverExec && c.ArchiverPath == "" {
		return errors.New("archiver_path is required when archiver is \"exec\"")
	}
	if c.DummyToken == "" {
		return errors.New("dummy_token must not be empty")
	}
	return nil
}
