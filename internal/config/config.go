// Package config provides YAML-based server configuration loading and
// terrain seed files for pathrace.
package config

import (
	"fmt"
	"time"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

// ServerConfig contains all configuration for a pathrace server.
type ServerConfig struct {
	Listen  ListenConfig  `yaml:"listen"`
	Game    GameSection   `yaml:"game"`
	Terrain TerrainConfig `yaml:"terrain"`
	Chat    ChatConfig    `yaml:"chat"`
	Storage StorageConfig `yaml:"storage"`
}

// ListenConfig defines the network listeners.
type ListenConfig struct {
	HTTP    string `yaml:"http"`     // websocket + JSON API, empty disables
	SSH     string `yaml:"ssh"`      // SSH transport, empty disables
	HostKey string `yaml:"host_key"` // SSH host key path
}

// GameSection defines the hosted game.
type GameSection struct {
	Capacity   int           `yaml:"capacity"`
	Mode       string        `yaml:"mode"` // "race" or "battle"
	TimeoutMS  int           `yaml:"timeout_ms"`
	Diagonals  bool          `yaml:"diagonals"`
	Automated  bool          `yaml:"automated"`
	MaxRounds  int           `yaml:"max_rounds"`
	Seed       int64         `yaml:"seed"` // 0 means current time
	StartAfter time.Duration `yaml:"start_after"`
}

// TerrainConfig selects the terrain seed. File wins over a uniform fill.
type TerrainConfig struct {
	File   string `yaml:"file"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Fill   string `yaml:"fill"` // "#rrggbb"
}

// ChatConfig selects the chat relay.
type ChatConfig struct {
	NATS string `yaml:"nats"` // "" in-process, "embedded", or a nats:// URL
}

// StorageConfig defines result persistence.
type StorageConfig struct {
	DB string `yaml:"db"` // empty disables persistence
}

// Validate checks the values the server cannot run without.
func (c ServerConfig) Validate() error {
	if _, err := multiplayer.ParseGameMode(c.Game.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Game.TimeoutMS <= 0 {
		return fmt.Errorf("config: game.timeout_ms must be positive, got %d", c.Game.TimeoutMS)
	}
	if c.Game.Capacity < 0 {
		return fmt.Errorf("config: game.capacity must not be negative, got %d", c.Game.Capacity)
	}
	if c.Game.Capacity == 0 && c.Game.StartAfter <= 0 {
		return fmt.Errorf("config: unlimited game.capacity needs a positive game.start_after")
	}
	if c.Terrain.File == "" {
		if c.Terrain.Width <= 0 || c.Terrain.Height <= 0 {
			return fmt.Errorf("config: terrain %dx%d is empty", c.Terrain.Width, c.Terrain.Height)
		}
		if _, err := core.ParseHex(c.Terrain.Fill); err != nil {
			return fmt.Errorf("config: terrain.fill: %w", err)
		}
	}
	if c.Listen.HTTP == "" && c.Listen.SSH == "" {
		return fmt.Errorf("config: no listener configured")
	}
	return nil
}

// Coordinator builds the coordinator configuration, loading the terrain seed.
func (c ServerConfig) Coordinator() (multiplayer.CoordinatorConfig, error) {
	if err := c.Validate(); err != nil {
		return multiplayer.CoordinatorConfig{}, err
	}
	terrain, err := c.Terrain.Load()
	if err != nil {
		return multiplayer.CoordinatorConfig{}, err
	}
	seedPayload, err := EncodeTerrain(terrain)
	if err != nil {
		return multiplayer.CoordinatorConfig{}, err
	}
	seed := c.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return multiplayer.CoordinatorConfig{
		Game: multiplayer.GameConfig{
			Mode:             multiplayer.GameMode(c.Game.Mode),
			TimeoutMillis:    c.Game.TimeoutMS,
			DiagonalsAllowed: c.Game.Diagonals,
			AutomatedAllowed: c.Game.Automated,
			Width:            terrain.W,
			Height:           terrain.H,
			Seed:             seedPayload,
		},
		Terrain:    terrain,
		Capacity:   c.Game.Capacity,
		MaxRounds:  c.Game.MaxRounds,
		Seed:       seed,
		StartAfter: c.Game.StartAfter,
	}, nil
}
