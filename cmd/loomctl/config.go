package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ctlConfig struct {
	ServerURL     string        `mapstructure:"server_url"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	CacheDir      string        `mapstructure:"cache_dir"`
	HistoryFile   string        `mapstructure:"history_file"`
	LogLevel      string        `mapstructure:"log_level"`
}

// loadConfig reads loomctl.yaml (optional) and LOOM_* environment variables.
func loadConfig() (*ctlConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("loom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, _ := os.UserHomeDir()
	v.SetDefault("server_url", "http://localhost:3001")
	v.SetDefault("poll_interval", "3s")
	v.SetDefault("health_timeout", "5s")
	v.SetDefault("cache_dir", filepath.Join(home, ".loomctl"))
	v.SetDefault("history_file", filepath.Join(home, ".loomctl", "history"))
	v.SetDefault("log_level", "warning")

	if cfgFile := os.Getenv("LOOMCTL_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("loomctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(filepath.Join(home, ".loomctl"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg ctlConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	return &cfg, nil
}
