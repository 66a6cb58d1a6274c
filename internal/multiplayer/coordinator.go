package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/pathrace/internal/chat"
	"github.com/vovakirdan/pathrace/internal/core"
)

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	Game       GameConfig
	Terrain    *core.Terrain
	Capacity   int           // players; 0 means unlimited
	MaxRounds  int           // 0 means unlimited
	Seed       int64         // palette and placement
	StartAfter time.Duration // start after this long in the lobby; 0 waits for capacity or Start
}

// DefaultCoordinatorConfig returns sensible defaults on a 16x16 grid.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Game: GameConfig{
			Mode:             ModeRace,
			TimeoutMillis:    DefaultTimeoutMillis,
			DiagonalsAllowed: true,
			Width:            16,
			Height:           16,
		},
		Terrain:  core.NewTerrain(16, 16, core.Cost{128, 128, 128}),
		Capacity: 4,
		Seed:     1,
	}
}

// ResultSaver is an interface for saving game results.
// This allows the coordinator to save results without depending on the storage package.
type ResultSaver interface {
	SaveGameResult(result GameResultData) error
}

// GameResultData contains game result data for persistence.
type GameResultData struct {
	GameID       string
	Mode         GameMode
	Width        int
	Height       int
	Turns        int
	Winner       string
	Standings    []Standing
	EndReason    string
	StartedAt    time.Time
	DurationSecs int
}

// End reasons recorded with a game result.
const (
	EndCompleted = "completed"
	EndAborted   = "aborted"
	EndError     = "error"
)

// JoinRequest carries the join parameters of a connection.
type JoinRequest struct {
	Name      string
	Version   int
	Automated bool
}

// LobbyInfo is a read-only snapshot of the server state.
type LobbyInfo struct {
	Phase    string       `json:"phase"`
	GameID   string       `json:"game_id,omitempty"`
	Turn     int          `json:"turn"`
	Capacity int          `json:"capacity"`
	Sessions int          `json:"sessions"`
	Players  []PlayerInfo `json:"players"`
	Game     GameConfig   `json:"game"`
	Result   *Result      `json:"result,omitempty"`
}

// Coordinator is the server facade. Transports call its methods from
// connection goroutines; Run drives the lobby and the game.
type Coordinator struct {
	config      CoordinatorConfig
	sessions    *SessionRegistry
	relay       chat.Relay
	resultSaver ResultSaver // Optional, can be nil
	logger      *log.Logger
	rng         *rand.Rand

	mu        sync.RWMutex
	phase     Phase
	gameID    string
	engine    *Engine
	result    *Result
	startedAt time.Time

	startReq    chan struct{}
	startOnce   sync.Once
	done        chan struct{}
	unsubscribe func()
}

// NewCoordinator creates a new coordinator and subscribes it to the chat
// relay. A nil relay uses an in-process one.
func NewCoordinator(cfg CoordinatorConfig, relay chat.Relay, logger *log.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if relay == nil {
		relay = chat.NewLocal()
	}
	if cfg.Terrain == nil {
		cfg.Terrain = core.NewTerrain(cfg.Game.Width, cfg.Game.Height, core.Cost{})
	}
	cfg.Game.Width = cfg.Terrain.W
	cfg.Game.Height = cfg.Terrain.H

	c := &Coordinator{
		config:   cfg,
		sessions: NewSessionRegistry(cfg.Capacity, core.NewPalette(cfg.Seed)),
		relay:    relay,
		logger:   logger,
		rng:      rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // placement needs no crypto
		phase:    PhaseLobby,
		startReq: make(chan struct{}),
		done:     make(chan struct{}),
	}

	unsubscribe, err := relay.Subscribe(c.deliverChat)
	if err != nil {
		return nil, fmt.Errorf("multiplayer: subscribe to chat: %w", err)
	}
	c.unsubscribe = unsubscribe
	return c, nil
}

// SetResultSaver sets the optional game result saver.
func (c *Coordinator) SetResultSaver(saver ResultSaver) {
	c.resultSaver = saver
}

// Sessions exposes the session registry.
func (c *Coordinator) Sessions() *SessionRegistry {
	return c.sessions
}

// Join registers a connection under a unique name. Sessions joining in the
// lobby below capacity become players; everyone else is chat-only.
func (c *Coordinator) Join(req JoinRequest, handle SessionHandle) (*ClientSession, error) {
	if !slices.Contains(ClientVersions, req.Version) {
		return nil, fmt.Errorf("%w: got %d, server speaks %d", ErrVersionMismatch, req.Version, ProtocolVersion)
	}
	if req.Automated && !c.config.Game.AutomatedAllowed {
		return nil, ErrAutomatedBanned
	}

	c.mu.RLock()
	seating := c.phase == PhaseLobby
	cs, err := c.sessions.Register(req.Name, handle, seating)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	c.logger.Info("session joined", "name", cs.Name, "role", cs.Role, "colour", cs.Marker.Hex())

	if cs.Role == RolePlayer && c.config.Capacity > 0 && c.sessions.PlayerCount() >= c.config.Capacity {
		c.Start()
	}
	return cs, nil
}

// Leave removes a session. A player leaving a running game forfeits.
func (c *Coordinator) Leave(name string) {
	cs, ok := c.sessions.Unregister(name)
	if !ok {
		return
	}
	c.logger.Info("session left", "name", name, "role", cs.Role)

	if cs.Role != RolePlayer {
		return
	}
	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()
	if engine != nil {
		engine.Depart(name)
	}
}

// SendChat relays a chat line from a joined session to everyone.
func (c *Coordinator) SendChat(name, text string) error {
	cs, ok := c.sessions.Get(name)
	if !ok {
		return ErrNotJoined
	}
	msg := chat.Message{Sender: name, Text: chat.Format(name, text), Colour: cs.Marker}
	if err := c.relay.Publish(msg); err != nil {
		return fmt.Errorf("multiplayer: relay chat: %w", err)
	}
	return nil
}

// GameType returns the hosted game description. Players only.
func (c *Coordinator) GameType(name string) (GameConfig, error) {
	if _, err := c.player(name); err != nil {
		return GameConfig{}, err
	}
	return c.config.Game, nil
}

// Colour returns the player's marker. Players only.
func (c *Coordinator) Colour(name string) (core.Marker, error) {
	cs, err := c.player(name)
	if err != nil {
		return core.Marker{}, err
	}
	return cs.Marker, nil
}

// CanPlay reports whether the session joined as a player.
func (c *Coordinator) CanPlay(name string) (bool, error) {
	cs, ok := c.sessions.Get(name)
	if !ok {
		return false, ErrNotJoined
	}
	return cs.Role == RolePlayer, nil
}

// ProposeMove submits a player's move for the current round.
func (c *Coordinator) ProposeMove(name string, mv Move) error {
	if _, err := c.player(name); err != nil {
		return err
	}
	c.mu.RLock()
	engine := c.engine
	phase := c.phase
	c.mu.RUnlock()
	if engine == nil || phase != PhaseInProgress {
		return ErrNoRound
	}

	mv.Player = name
	return engine.Submit(mv)
}

func (c *Coordinator) player(name string) (*ClientSession, error) {
	cs, ok := c.sessions.Get(name)
	if !ok {
		return nil, ErrNotJoined
	}
	if cs.Role != RolePlayer {
		return nil, ErrNotPlayer
	}
	return cs, nil
}

// Start asks Run to begin the game. Calls after the first have no effect.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		close(c.startReq)
	})
}

// Phase returns the current game phase.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Result returns the final result once the game has finished.
func (c *Coordinator) Result() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Lobby returns a snapshot of the server state.
func (c *Coordinator) Lobby() LobbyInfo {
	c.mu.RLock()
	info := LobbyInfo{
		Phase:    c.phase.String(),
		GameID:   c.gameID,
		Capacity: c.sessions.Capacity(),
		Game:     c.config.Game,
	}
	if c.engine != nil {
		info.Turn = c.engine.Turn()
	}
	if c.result != nil {
		res := *c.result
		info.Result = &res
	}
	c.mu.RUnlock()

	info.Game.Seed = nil
	info.Sessions = c.sessions.Count()
	for _, cs := range c.sessions.Players() {
		info.Players = append(info.Players, PlayerInfo{Name: cs.Name, Marker: cs.Marker})
	}
	return info
}

// Run waits in the lobby until the game starts, then plays it to completion.
// It returns when the game is finished or ctx is cancelled. Chat keeps
// flowing after the game ends until Close.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.waitForStart(ctx); err != nil {
		c.setFinished(nil)
		return err
	}

	engine := c.beginGame()
	res, runErr := engine.Run(ctx)

	reason := EndCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		reason = EndAborted
		c.logger.Info("game aborted", "game", res.GameID, "turn", res.Turns)
	default:
		reason = EndError
		c.logger.Error("game ended with an error", "game", res.GameID, "turn", res.Turns, "error", runErr)
		c.abortPlayers(engine, res)
	}

	c.setFinished(&res)
	c.saveResult(res, reason)

	if reason == EndAborted {
		return runErr
	}
	return nil
}

func (c *Coordinator) waitForStart(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	if c.config.StartAfter > 0 {
		timer = time.NewTimer(c.config.StartAfter)
		defer timer.Stop()
		fire = timer.C
	}

	for {
		select {
		case <-c.startReq:
			return nil
		case <-fire:
			if c.sessions.PlayerCount() > 0 {
				c.logger.Info("lobby delay elapsed, starting", "players", c.sessions.PlayerCount())
				return nil
			}
			timer.Reset(c.config.StartAfter)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// beginGame freezes the roster, places every player and builds the engine.
func (c *Coordinator) beginGame() *Engine {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = PhaseInProgress
	c.gameID = uuid.NewString()
	c.startedAt = time.Now()

	roster := c.sessions.Players()
	players := make([]*PlayerSession, 0, len(roster))
	ends := AssignEndpoints(c.config.Terrain.W, c.config.Terrain.H, len(roster), c.rng)
	for i, cs := range roster {
		cs.Player.Place(ends[i].Start, ends[i].End)
		players = append(players, cs.Player)
	}

	c.engine = NewEngine(EngineConfig{
		GameID:    c.gameID,
		Game:      c.config.Game,
		MaxRounds: c.config.MaxRounds,
	}, c.config.Terrain, players, WithEngineLogger(c.logger.With("game", c.gameID)))

	c.logger.Info("starting game", "game", c.gameID, "players", len(players), "mode", c.config.Game.Mode)
	return c.engine
}

// abortPlayers tells every connected player the game is over after a fatal
// engine error.
func (c *Coordinator) abortPlayers(engine *Engine, res Result) {
	for _, p := range engine.players {
		if p.Left || p.handle == nil {
			continue
		}
		if err := p.handle.Send(GameOverEvent{Standings: res.Standings}); err != nil {
			c.logger.Warn("notification failed", "player", p.Name, "error", err)
		}
	}
}

func (c *Coordinator) setFinished(res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseFinished
	c.result = res
}

func (c *Coordinator) saveResult(res Result, reason string) {
	if c.resultSaver == nil {
		return
	}
	c.mu.RLock()
	started := c.startedAt
	c.mu.RUnlock()

	data := GameResultData{
		GameID:       res.GameID,
		Mode:         c.config.Game.Mode,
		Width:        c.config.Terrain.W,
		Height:       c.config.Terrain.H,
		Turns:        res.Turns,
		Winner:       res.Winner,
		Standings:    res.Standings,
		EndReason:    reason,
		StartedAt:    started,
		DurationSecs: int(time.Since(started).Seconds()),
	}
	if err := c.resultSaver.SaveGameResult(data); err != nil {
		c.logger.Warn("saving game result failed", "game", res.GameID, "error", err)
	}
}

// Close stops relaying chat.
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *Coordinator) deliverChat(msg chat.Message) {
	if failed := c.sessions.Broadcast(ChatEvent{Text: msg.Text, Colour: msg.Colour}); len(failed) > 0 {
		c.logger.Warn("chat delivery failed", "sessions", failed)
	}
}
