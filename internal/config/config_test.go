package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

func TestEmbeddedDefaultsMatchHardcoded(t *testing.T) {
	cfg, err := parse(DefaultYAML())
	if err != nil {
		t.Fatalf("parse(embedded) failed: %v", err)
	}
	if cfg != DefaultServerConfig() {
		t.Errorf("embedded = %+v, expected %+v", cfg, DefaultServerConfig())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, expected nil", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	yml := "game:\n  capacity: 2\n  mode: battle\n  start_after: 30s\nchat:\n  nats: embedded\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Game.Capacity != 2 || cfg.Game.Mode != "battle" || cfg.Game.StartAfter != 30*time.Second {
		t.Errorf("game = %+v", cfg.Game)
	}
	if cfg.Chat.NATS != "embedded" {
		t.Errorf("chat.nats = %q, expected embedded", cfg.Chat.NATS)
	}
	// Unset keys keep their defaults.
	if cfg.Game.TimeoutMS != 1000 || cfg.Listen.HTTP != ":8080" {
		t.Errorf("defaults lost: timeout %d, http %q", cfg.Game.TimeoutMS, cfg.Listen.HTTP)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) = nil, expected error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		ok     bool
	}{
		{"defaults", func(*ServerConfig) {}, true},
		{"bad mode", func(c *ServerConfig) { c.Game.Mode = "coop" }, false},
		{"zero timeout", func(c *ServerConfig) { c.Game.TimeoutMS = 0 }, false},
		{"negative capacity", func(c *ServerConfig) { c.Game.Capacity = -1 }, false},
		{"unlimited capacity without start delay", func(c *ServerConfig) { c.Game.Capacity = 0; c.Game.StartAfter = 0 }, false},
		{"unlimited capacity with start delay", func(c *ServerConfig) { c.Game.Capacity = 0; c.Game.StartAfter = time.Minute }, true},
		{"empty terrain", func(c *ServerConfig) { c.Terrain.Width = 0 }, false},
		{"bad fill", func(c *ServerConfig) { c.Terrain.Fill = "grey" }, false},
		{"file skips fill", func(c *ServerConfig) { c.Terrain.File = "x.yaml"; c.Terrain.Fill = "" }, true},
		{"no listeners", func(c *ServerConfig) { c.Listen.HTTP = ""; c.Listen.SSH = "" }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tc.ok {
				t.Errorf("Validate() = %v, expected ok=%v", err, tc.ok)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvHTTP:       ":9090",
		EnvNATS:       "nats://127.0.0.1:4222",
		EnvCapacity:   "8",
		EnvStartAfter: "1m",
		EnvSSH:        "  ",
	}
	cfg := DefaultServerConfig()
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() failed: %v", err)
	}
	if cfg.Listen.HTTP != ":9090" || cfg.Chat.NATS != "nats://127.0.0.1:4222" {
		t.Errorf("strings not applied: %+v %+v", cfg.Listen, cfg.Chat)
	}
	if cfg.Listen.SSH != ":23234" {
		t.Errorf("blank value overrode ssh: %q", cfg.Listen.SSH)
	}
	if cfg.Game.Capacity != 8 || cfg.Game.StartAfter != time.Minute {
		t.Errorf("game = %+v", cfg.Game)
	}

	env[EnvTimeout] = "soon"
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err == nil {
		t.Error("ApplyEnv(bad int) = nil, expected error")
	}
}

func TestTerrainRoundTrip(t *testing.T) {
	src := "width: 3\nheight: 2\ncells:\n  - [\"#000000\", \"#0a0b0c\", \"#ffffff\"]\n  - [\"#010203\", \"#808080\", \"#ff0000\"]\n"
	terrain, err := ParseTerrain([]byte(src))
	if err != nil {
		t.Fatalf("ParseTerrain() failed: %v", err)
	}
	if terrain.W != 3 || terrain.H != 2 {
		t.Fatalf("size = %dx%d, expected 3x2", terrain.W, terrain.H)
	}
	if got := terrain.At(core.C(1, 0)); got != (core.Cost{10, 11, 12}) {
		t.Errorf("At(1,0) = %v, expected [10 11 12]", got)
	}
	if got := terrain.At(core.C(2, 1)); got != (core.Cost{255, 0, 0}) {
		t.Errorf("At(2,1) = %v, expected [255 0 0]", got)
	}

	data, err := EncodeTerrain(terrain)
	if err != nil {
		t.Fatalf("EncodeTerrain() failed: %v", err)
	}
	back, err := ParseTerrain(data)
	if err != nil {
		t.Fatalf("ParseTerrain(encoded) failed: %v", err)
	}
	for i := range terrain.Cells {
		if back.Cells[i] != terrain.Cells[i] {
			t.Errorf("cell %d = %v, expected %v", i, back.Cells[i], terrain.Cells[i])
		}
	}
}

func TestParseTerrainErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "cells: []\n"},
		{"ragged", "cells:\n  - [\"#000000\", \"#000000\"]\n  - [\"#000000\"]\n"},
		{"height mismatch", "height: 3\ncells:\n  - [\"#000000\"]\n"},
		{"width mismatch", "width: 2\ncells:\n  - [\"#000000\"]\n"},
		{"bad colour", "cells:\n  - [\"#zz0000\"]\n"},
		{"not yaml", "cells: [[\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseTerrain([]byte(tc.src)); err == nil {
				t.Errorf("ParseTerrain(%q) = nil, expected error", tc.src)
			}
		})
	}
}

func TestCoordinatorConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.yaml")
	if err := os.WriteFile(path, []byte("cells:\n  - [\"#101010\", \"#202020\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultServerConfig()
	cfg.Terrain.File = path
	cfg.Game.Seed = 7
	cfg.Game.MaxRounds = 50
	cc, err := cfg.Coordinator()
	if err != nil {
		t.Fatalf("Coordinator() failed: %v", err)
	}
	if cc.Terrain.W != 2 || cc.Terrain.H != 1 || cc.Game.Width != 2 || cc.Game.Height != 1 {
		t.Errorf("terrain size = %dx%d, game %dx%d", cc.Terrain.W, cc.Terrain.H, cc.Game.Width, cc.Game.Height)
	}
	if cc.Game.Mode != multiplayer.ModeRace || cc.Game.TimeoutMillis != 1000 || !cc.Game.DiagonalsAllowed {
		t.Errorf("game = %+v", cc.Game)
	}
	if cc.Seed != 7 || cc.MaxRounds != 50 || cc.Capacity != 4 {
		t.Errorf("coordinator = seed %d, max rounds %d, capacity %d", cc.Seed, cc.MaxRounds, cc.Capacity)
	}

	seeded, err := ParseTerrain(cc.Game.Seed)
	if err != nil {
		t.Fatalf("seed payload does not parse: %v", err)
	}
	if seeded.At(core.C(1, 0)) != (core.Cost{32, 32, 32}) {
		t.Errorf("seed payload cell = %v, expected [32 32 32]", seeded.At(core.C(1, 0)))
	}

	cfg.Terrain.File = filepath.Join(dir, "missing.yaml")
	if _, err := cfg.Coordinator(); err == nil {
		t.Error("Coordinator(missing terrain) = nil, expected error")
	}
}
