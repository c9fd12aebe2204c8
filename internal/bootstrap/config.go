// Package bootstrap loads the small YAML file needed to start the
// process: where to listen, who may reach it, and where the database
// lives. Handlers, timers and schedules are runtime state owned by the
// Store, not config.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the bootstrap surface: everything the process needs before
// it can open the Store and start accepting events. port, queue_size,
// worker_count and dedupe_ttl_secs are not here: they are recognised keys
// of the Store-backed Config entity (internal/model.DefaultConfig), read
// once at startup after the Store opens, not duplicated into this file.
type Config struct {
	Listen     string   `yaml:"listen"`
	Allow      []string `yaml:"allow"`
	AllowWrite []string `yaml:"allow_write"`
	DBPath     string   `yaml:"db_path"`
	LogLevel   string   `yaml:"log_level"`
	LogFormat  string   `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		Listen:    "127.0.0.1:8085",
		DBPath:    "shevd.db",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads and parses the bootstrap config file at path, applying
// ${ENV_VAR} substitution and filling in defaults for anything unset.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	expanded := envVarPattern.ReplaceAllStringFunc(string(raw), func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}
	if cfg.Listen == "" {
		return nil, fmt.Errorf("config %s: listen must not be empty", absPath)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("config %s: db_path must not be empty", absPath)
	}
	return &cfg, nil
}
