package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openchange/mapisync/idset"
)

// Config is assembled from defaults, an optional config file,
// MAPISYNC_* environment variables and flags, later sources winning.
type Config struct {
	DataDir     string     `mapstructure:"data-dir"`
	Level       string     `mapstructure:"level"`
	JSONLog     bool       `mapstructure:"json-log"`
	Mode        idset.Mode `mapstructure:"mode"`
	CacheSize   int        `mapstructure:"cache-size"`
	MetricsAddr string     `mapstructure:"metrics-addr"`
	HistoryFile string     `mapstructure:"history-file"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:     "mapisync-state",
		Level:       "warn",
		Mode:        idset.Precise,
		CacheSize:   1024,
		MetricsAddr: "127.0.0.1:9190",
		HistoryFile: ".idsetctl_history",

		ShutdownTimeout: 5 * time.Second,
	}
}

// loadConfig reads the file at path, when given, and overlays the
// environment and the flags that were set on the command line.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAPISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	def := DefaultConfig()
	v.SetDefault("data-dir", def.DataDir)
	v.SetDefault("level", def.Level)
	v.SetDefault("json-log", def.JSONLog)
	v.SetDefault("mode", def.Mode.String())
	v.SetDefault("cache-size", def.CacheSize)
	v.SetDefault("metrics-addr", def.MetricsAddr)
	v.SetDefault("history-file", def.HistoryFile)
	v.SetDefault("shutdown-timeout", def.ShutdownTimeout.String())

	conf := def
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&conf, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &conf, nil
}
