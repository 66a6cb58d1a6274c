package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/protocol"
	"github.com/vovakirdan/pathrace/internal/transport"
)

func startServer(t *testing.T, cfg multiplayer.CoordinatorConfig) (*multiplayer.Coordinator, func() *Client) {
	t.Helper()
	coord, err := multiplayer.NewCoordinator(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator() failed: %v", err)
	}
	t.Cleanup(coord.Close)
	d := transport.NewDispatcher(coord, nil)

	connect := func() *Client {
		serverEnd, clientEnd := net.Pipe()
		go d.Serve(context.Background(), protocol.NewStreamConn(serverEnd), "pipe")
		c := New(protocol.NewStreamConn(clientEnd), nil)
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	return coord, connect
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestJoinRetriesTakenName(t *testing.T) {
	_, connect := startServer(t, multiplayer.CoordinatorConfig{
		Game:     multiplayer.GameConfig{Mode: multiplayer.ModeRace, TimeoutMillis: 1000},
		Terrain:  core.NewTerrain(3, 3, core.Cost{}),
		Capacity: 4,
	})
	ctx := testContext(t)

	first, err := connect().Join(ctx, "ann", false)
	if err != nil || first.Name != "ann" {
		t.Fatalf("Join() = %+v, %v", first, err)
	}
	second, err := connect().Join(ctx, "ann", false)
	if err != nil {
		t.Fatalf("Join() failed: %v", err)
	}
	if second.Name != "ann_" {
		t.Errorf("Join() name = %q, expected ann_", second.Name)
	}
	if second.Colour == first.Colour {
		t.Errorf("both players got colour %v", first.Colour)
	}
}

func TestJoinRejectsAutomated(t *testing.T) {
	_, connect := startServer(t, multiplayer.CoordinatorConfig{
		Game:    multiplayer.GameConfig{Mode: multiplayer.ModeRace, TimeoutMillis: 1000},
		Terrain: core.NewTerrain(2, 2, core.Cost{}),
	})
	if _, err := connect().Join(testContext(t), "robo", true); !errors.Is(err, multiplayer.ErrAutomatedBanned) {
		t.Errorf("Join(automated) = %v, expected AutomatedBanned", err)
	}
}

func TestCallAfterClose(t *testing.T) {
	_, connect := startServer(t, multiplayer.CoordinatorConfig{
		Game:    multiplayer.GameConfig{Mode: multiplayer.ModeRace, TimeoutMillis: 1000},
		Terrain: core.NewTerrain(2, 2, core.Cost{}),
	})
	c := connect()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, err := c.CanPlay(testContext(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("CanPlay() after Close = %v, expected ErrClosed", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("Events() still open after Close")
	}
}

func TestBotsPlayFullGame(t *testing.T) {
	coord, connect := startServer(t, multiplayer.CoordinatorConfig{
		Game: multiplayer.GameConfig{
			Mode:             multiplayer.ModeRace,
			TimeoutMillis:    5000,
			DiagonalsAllowed: true,
			AutomatedAllowed: true,
		},
		Terrain:  core.NewTerrain(4, 4, core.Cost{100, 100, 100}),
		Capacity: 2,
		Seed:     3,
	})
	ctx := testContext(t)

	runErr := make(chan error, 1)
	go func() { runErr <- coord.Run(ctx) }()

	type outcome struct {
		won bool
		err error
	}
	results := make(chan outcome, 2)
	var bots []*Bot
	for _, name := range []string{"r1", "r2"} {
		c := connect()
		board, joined, err := Setup(ctx, c, name, true)
		if err != nil {
			t.Fatalf("Setup(%s) failed: %v", name, err)
		}
		if joined.Role != "player" {
			t.Fatalf("%s role = %s, expected player", name, joined.Role)
		}
		bot := NewBot(c, board, nil)
		bots = append(bots, bot)
		go func() {
			won, err := bot.Run(ctx)
			results <- outcome{won, err}
		}()
	}

	wins := 0
	for range bots {
		o := <-results
		if o.err != nil {
			t.Fatalf("Bot.Run() failed: %v", o.err)
		}
		if o.won {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, expected 1", wins)
	}
	if err := <-runErr; err != nil {
		t.Errorf("coordinator Run() = %v", err)
	}

	for _, bot := range bots {
		b := bot.Board()
		if !b.Me.Finished {
			t.Errorf("%s did not reach its goal", b.Me.Name)
		}
		// Diagonal corners on a 4x4 grid take three steps.
		if b.Me.FinishedTurn != 3 {
			t.Errorf("%s finished on turn %d, expected 3", b.Me.Name, b.Me.FinishedTurn)
		}
		if b.Me.Score == nil {
			t.Errorf("%s has no score", b.Me.Name)
		}
		if len(b.Standings) != 2 {
			t.Errorf("%s saw %d standings, expected 2", b.Me.Name, len(b.Standings))
		}
	}
}
