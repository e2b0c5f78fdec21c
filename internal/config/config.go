// Package config resolves runtime configuration from environment variables
// and an optional quill.yaml file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved settings every loader tier reads at startup.
type Config struct {
	ModulePaths []string `yaml:"module_paths"`
	CacheDir    string   `yaml:"cache_dir"`
	LazyModules bool     `yaml:"lazy_modules"`
	Debug       bool     `yaml:"debug"`
	LogLevel    string   `yaml:"log_level"`
}

// Default returns the zero-config baseline: cache dir under the user's home
// directory, no extra search paths, eager (non-lazy) module execution.
func Default(home string) Config {
	return Config{
		CacheDir: filepath.Join(home, ".quill", "cache"),
		LogLevel: "info",
	}
}

// Load reads quill.yaml from path if it exists (a missing file is not an
// error -- it just means "no overrides"), then applies QUILL_* environment
// variables on top, which always take precedence over file-based config.
func Load(path string, home string) (Config, error) {
	cfg := Default(home)

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUILL_MODULE_PATH"); v != "" {
		cfg.ModulePaths = append(cfg.ModulePaths, strings.Split(v, ":")...)
	}
	if _, ok := os.LookupEnv("QUILL_LAZY_MODULES"); ok {
		cfg.LazyModules = true
	}
	if _, ok := os.LookupEnv("QUILL_DEBUG"); ok {
		cfg.Debug = true
	}
	if v := os.Getenv("QUILL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
