package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads the server configuration.
// Search order: customPath -> ~/.pathrace/server.yaml -> ./configs/server.yaml -> embedded default
func Load(customPath string) (ServerConfig, error) {
	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := parse(data)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath("server.yaml"); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			if cfg, err := parse(data); err == nil {
				return cfg, nil
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/server.yaml"); err == nil {
		if cfg, err := parse(data); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	cfg, err := parse(defaultServerYAML)
	if err != nil {
		return DefaultServerConfig(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

// parse decodes data over the hardcoded defaults so partial files work.
func parse(data []byte) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pathrace", filename)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Environment overrides, usually populated from a .env file.
const (
	EnvHTTP       = "PATHRACE_HTTP"
	EnvSSH        = "PATHRACE_SSH"
	EnvHostKey    = "PATHRACE_HOST_KEY"
	EnvNATS       = "PATHRACE_NATS"
	EnvDB         = "PATHRACE_DB"
	EnvCapacity   = "PATHRACE_CAPACITY"
	EnvTimeout    = "PATHRACE_TIMEOUT_MS"
	EnvStartAfter = "PATHRACE_START_AFTER"
)

// ApplyEnv overrides cfg with PATHRACE_* variables read through getenv.
func ApplyEnv(cfg *ServerConfig, getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvHTTP, &cfg.Listen.HTTP},
		{EnvSSH, &cfg.Listen.SSH},
		{EnvHostKey, &cfg.Listen.HostKey},
		{EnvNATS, &cfg.Chat.NATS},
		{EnvDB, &cfg.Storage.DB},
	}
	for _, s := range strs {
		if v, ok := lookup(getenv, s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvCapacity, &cfg.Game.Capacity},
		{EnvTimeout, &cfg.Game.TimeoutMS},
	}
	for _, i := range ints {
		if v, ok := lookup(getenv, i.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	if v, ok := lookup(getenv, EnvStartAfter); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvStartAfter, err)
		}
		cfg.Game.StartAfter = d
	}
	return nil
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := strings.TrimSpace(getenv(key))
	return v, v != ""
}
