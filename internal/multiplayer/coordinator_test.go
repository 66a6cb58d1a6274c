package multiplayer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/pathrace/internal/core"
)

type memorySaver struct {
	mu      sync.Mutex
	results []GameResultData
}

func (m *memorySaver) SaveGameResult(r GameResultData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func testCoordinator(t *testing.T, w, h, capacity int) *Coordinator {
	t.Helper()
	cfg := CoordinatorConfig{
		Game:     GameConfig{Mode: ModeRace, TimeoutMillis: 10000},
		Terrain:  core.NewTerrain(w, h, core.Cost{}),
		Capacity: capacity,
		Seed:     1,
	}
	c, err := NewCoordinator(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator() failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func join(t *testing.T, c *Coordinator, name string) *ChannelSession {
	t.Helper()
	handle := NewChannelSession(NewSessionID(), 64)
	if _, err := c.Join(JoinRequest{Name: name, Version: ProtocolVersion}, handle); err != nil {
		t.Fatalf("Join(%s) failed: %v", name, err)
	}
	return handle
}

func nextEvent(t *testing.T, s *ChannelSession) SessionEvent {
	t.Helper()
	select {
	case evt := <-s.Events():
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestCoordinatorJoinChecks(t *testing.T) {
	c := testCoordinator(t, 2, 2, 4)

	if _, err := c.Join(JoinRequest{Name: "old", Version: 1}, nil); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Join() with version 1 = %v, expected ErrVersionMismatch", err)
	}
	if _, err := c.Join(JoinRequest{Name: "bot", Version: ProtocolVersion, Automated: true}, nil); !errors.Is(err, ErrAutomatedBanned) {
		t.Errorf("automated Join() = %v, expected ErrAutomatedBanned", err)
	}

	join(t, c, "alice")
	if _, err := c.Join(JoinRequest{Name: "alice", Version: ProtocolVersion}, nil); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate Join() = %v, expected ErrNameTaken", err)
	}
	if n := c.Sessions().Count(); n != 1 {
		t.Errorf("Count() = %d, expected 1", n)
	}
}

func TestCoordinatorChatOnlyQueries(t *testing.T) {
	c := testCoordinator(t, 2, 2, 1)
	join(t, c, "player")
	join(t, c, "watcher")

	if ok, err := c.CanPlay("watcher"); err != nil || ok {
		t.Errorf("CanPlay(watcher) = %v, %v; expected false", ok, err)
	}
	if _, err := c.GameType("watcher"); !errors.Is(err, ErrNotPlayer) {
		t.Errorf("GameType(watcher) = %v, expected ErrNotPlayer", err)
	}
	if _, err := c.Colour("watcher"); !errors.Is(err, ErrNotPlayer) {
		t.Errorf("Colour(watcher) = %v, expected ErrNotPlayer", err)
	}
	if err := c.ProposeMove("watcher", NoOpMove("")); !errors.Is(err, ErrNotPlayer) {
		t.Errorf("ProposeMove(watcher) = %v, expected ErrNotPlayer", err)
	}
	if _, err := c.CanPlay("nobody"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("CanPlay(nobody) = %v, expected ErrNotJoined", err)
	}

	gt, err := c.GameType("player")
	if err != nil || gt.Width != 2 || gt.Mode != ModeRace {
		t.Errorf("GameType(player) = %+v, %v", gt, err)
	}
	if m, _ := c.Colour("player"); m != blue {
		t.Errorf("Colour(player) = %v, expected %v", m, blue)
	}
	// The game has not been run yet.
	if err := c.ProposeMove("player", NoOpMove("")); !errors.Is(err, ErrNoRound) {
		t.Errorf("ProposeMove() before start = %v, expected ErrNoRound", err)
	}
}

func TestCoordinatorChat(t *testing.T) {
	c := testCoordinator(t, 2, 2, 1)
	alice := join(t, c, "alice")
	watcher := join(t, c, "watcher")

	if err := c.SendChat("alice", "hello"); err != nil {
		t.Fatalf("SendChat() failed: %v", err)
	}
	for _, s := range []*ChannelSession{alice, watcher} {
		evt, ok := nextEvent(t, s).(ChatEvent)
		if !ok || evt.Text != "<alice> hello" || evt.Colour != blue {
			t.Errorf("chat event = %+v, expected <alice> hello in blue", evt)
		}
	}

	if err := c.SendChat("watcher", "hi"); err != nil {
		t.Fatalf("SendChat() failed: %v", err)
	}
	if evt := nextEvent(t, alice).(ChatEvent); evt.Colour != core.ChatMarker {
		t.Errorf("watcher colour = %v, expected black", evt.Colour)
	}

	if err := c.SendChat("ghost", "boo"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("SendChat(ghost) = %v, expected ErrNotJoined", err)
	}
}

func TestCoordinatorFullGame(t *testing.T) {
	c := testCoordinator(t, 2, 2, 2)
	saver := &memorySaver{}
	c.SetResultSaver(saver)

	first := join(t, c, "first")
	second := join(t, c, "second")
	late := join(t, c, "late")

	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background()) }()

	sg := nextEvent(t, first).(StartGameEvent)
	if sg.Start != core.C(0, 0) || sg.End != core.C(1, 1) || len(sg.Players) != 2 {
		t.Fatalf("StartGame = %+v", sg)
	}
	nextEvent(t, second)
	if c.Phase() != PhaseInProgress {
		t.Errorf("Phase() = %v, expected in_progress", c.Phase())
	}
	if ok, _ := c.CanPlay("late"); ok {
		t.Error("session beyond capacity can play")
	}

	moves := [][2]Move{
		{step("", 1, 0), step("", 0, 1)},
		{step("", 1, 1), step("", 0, 0)},
	}
	for _, round := range moves {
		if err := c.ProposeMove("first", round[0]); err != nil {
			t.Fatalf("ProposeMove(first) failed: %v", err)
		}
		if err := c.ProposeMove("second", round[1]); err != nil {
			t.Fatalf("ProposeMove(second) failed: %v", err)
		}
		nextEvent(t, first)
		nextEvent(t, second)
	}

	if _, ok := nextEvent(t, first).(WinEvent); !ok {
		t.Error("first did not win the tie")
	}
	if _, ok := nextEvent(t, second).(GameOverEvent); !ok {
		t.Error("second did not get game over")
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}

	res, ok := c.Result()
	if !ok || res.Winner != "first" || res.Turns != 2 {
		t.Errorf("Result() = %+v, %v", res, ok)
	}
	if c.Phase() != PhaseFinished {
		t.Errorf("Phase() = %v, expected finished", c.Phase())
	}
	if len(saver.results) != 1 || saver.results[0].EndReason != EndCompleted || saver.results[0].Winner != "first" {
		t.Errorf("saved results = %+v", saver.results)
	}
	select {
	case evt := <-late.Events():
		t.Errorf("chat-only session received %T", evt)
	default:
	}
}

func TestCoordinatorLeaveForfeits(t *testing.T) {
	c := testCoordinator(t, 3, 1, 2)
	stayer := join(t, c, "stayer")
	join(t, c, "quitter")

	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background()) }()
	nextEvent(t, stayer)

	c.Leave("quitter")
	for _, target := range []core.Coord{core.C(1, 0), core.C(2, 0)} {
		if err := c.ProposeMove("stayer", Move{Target: target}); err != nil {
			t.Fatalf("ProposeMove(%v) failed: %v", target, err)
		}
		nextEvent(t, stayer)
	}
	if _, ok := nextEvent(t, stayer).(WinEvent); !ok {
		t.Error("stayer did not win")
	}
	<-errc

	res, _ := c.Result()
	if len(res.Standings) != 2 || !res.Standings[1].Forfeited {
		t.Errorf("standings = %+v, expected quitter forfeited last", res.Standings)
	}
}

func TestCoordinatorStartWithoutPlayers(t *testing.T) {
	c := testCoordinator(t, 2, 2, 0)
	c.Start()
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	res, ok := c.Result()
	if !ok || len(res.Standings) != 0 {
		t.Errorf("Result() = %+v, %v; expected empty result", res, ok)
	}
}

func TestCoordinatorStartAfterDelay(t *testing.T) {
	cfg := CoordinatorConfig{
		Game:       GameConfig{Mode: ModeRace, TimeoutMillis: 10000},
		Terrain:    core.NewTerrain(2, 2, core.Cost{}),
		Seed:       1,
		StartAfter: 20 * time.Millisecond,
	}
	c, err := NewCoordinator(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator() failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	solo := join(t, c, "solo")
	if _, ok := nextEvent(t, solo).(StartGameEvent); !ok {
		t.Fatal("game did not start after the lobby delay")
	}
	if info := c.Lobby(); info.Phase != "in_progress" || len(info.Players) != 1 {
		t.Errorf("Lobby() = %+v", info)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, expected context.Canceled", err)
	}
}

func TestCoordinatorCancelInLobby(t *testing.T) {
	c := testCoordinator(t, 2, 2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, expected context.Canceled", err)
	}
	if c.Phase() != PhaseFinished {
		t.Errorf("Phase() = %v, expected finished", c.Phase())
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed")
	}
}
