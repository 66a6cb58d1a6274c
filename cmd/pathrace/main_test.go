package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/pathrace/internal/storage"
)

func TestFormatScore(t *testing.T) {
	five := 5
	tests := []struct {
		score    *int
		expected string
	}{
		{nil, "-"},
		{&five, "5"},
	}
	for _, tt := range tests {
		if got := formatScore(tt.score); got != tt.expected {
			t.Errorf("formatScore() = %q, expected %q", got, tt.expected)
		}
	}
}

func TestPrintGames(t *testing.T) {
	var buf bytes.Buffer
	printGames(&buf, nil)
	if !strings.Contains(buf.String(), "No games recorded yet.") {
		t.Errorf("printGames(nil) = %q", buf.String())
	}

	score := 12
	buf.Reset()
	printGames(&buf, []storage.GameRecord{{
		Mode:      "race",
		Width:     4,
		Height:    3,
		Turns:     6,
		Winner:    "ann",
		EndReason: "completed",
		CreatedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Standings: []storage.StandingRecord{
			{Rank: 1, Name: "ann", Score: &score, Turn: 6},
			{Rank: 2, Name: "ben", Forfeited: true},
		},
	}})
	out := buf.String()
	for _, want := range []string{"2024-05-01 10:30", "4x3", "1.ann(12)", "2.ben(-)!"} {
		if !strings.Contains(out, want) {
			t.Errorf("printGames() output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadServerConfigFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PATHRACE_CAPACITY", "3")

	if err := serveCmd.Flags().Set("timeout", "2500"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := serveCmd.Flags().Set("ssh", ""); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	cfg, err := loadServerConfig(serveCmd)
	if err != nil {
		t.Fatalf("loadServerConfig() failed: %v", err)
	}
	if cfg.Game.TimeoutMS != 2500 {
		t.Errorf("TimeoutMS = %d, expected 2500", cfg.Game.TimeoutMS)
	}
	if cfg.Game.Capacity != 3 {
		t.Errorf("Capacity = %d, expected 3", cfg.Game.Capacity)
	}
	if cfg.Listen.SSH != "" {
		t.Errorf("Listen.SSH = %q, expected disabled", cfg.Listen.SSH)
	}
	if cfg.Listen.HTTP != ":8080" {
		t.Errorf("Listen.HTTP = %q, expected :8080", cfg.Listen.HTTP)
	}
}
