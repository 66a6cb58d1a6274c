package config

import (
	_ "embed"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen: ListenConfig{
			HTTP:    ":8080",
			SSH:     ":23234",
			HostKey: "~/.pathrace/host_key",
		},
		Game: GameSection{
			Capacity:  4,
			Mode:      "race",
			TimeoutMS: 1000,
			Diagonals: true,
			Automated: true,
		},
		Terrain: TerrainConfig{
			Width:  16,
			Height: 16,
			Fill:   "#808080",
		},
		Storage: StorageConfig{
			DB: "~/.pathrace/results.db",
		},
	}
}

// DefaultYAML returns the embedded default server YAML.
func DefaultYAML() []byte {
	return defaultServerYAML
}
