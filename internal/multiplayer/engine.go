package multiplayer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/pathrace/internal/core"
)

// DefaultTimeoutMillis is used when the game config has no move timeout.
const DefaultTimeoutMillis = 1000

// EngineConfig holds configuration for the turn engine.
type EngineConfig struct {
	GameID    string
	Game      GameConfig
	MaxRounds int // 0 means unlimited
}

// RoundReport summarizes one resolved round.
type RoundReport struct {
	Turn     int
	Received []Move   // arrival order
	TimedOut []string // join order
	Late     int      // moves drained after the window closed
	Illegal  []string
	Finished []string
	Delta    []core.CellCost
	QueueLen int // queued moves after the drain; always 0
}

// Result is the outcome of a game.
type Result struct {
	GameID    string
	Turns     int
	Standings []Standing
	Winner    string // empty if nobody finished
}

// Engine runs the round loop. All player state and the terrain are mutated
// only from the goroutine executing Run; connections reach the engine through
// Submit and Depart.
type Engine struct {
	config     EngineConfig
	adj        core.Adjacency
	terrain    *core.Terrain
	players    []*PlayerSession // join order
	byName     map[string]*PlayerSession
	inbox      *Inbox
	departures chan string
	logger     *log.Logger
	onRound    func(RoundReport)
	turn       int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRoundObserver registers a callback invoked on the engine goroutine after
// every resolved round.
func WithRoundObserver(fn func(RoundReport)) EngineOption {
	return func(e *Engine) {
		e.onRound = fn
	}
}

// NewEngine creates an engine for players that already have their start and
// end cells placed.
func NewEngine(cfg EngineConfig, terrain *core.Terrain, players []*PlayerSession, opts ...EngineOption) *Engine {
	e := &Engine{
		config:     cfg,
		adj:        core.NewAdjacency(terrain.W, terrain.H, cfg.Game.DiagonalsAllowed),
		terrain:    terrain,
		players:    players,
		byName:     make(map[string]*PlayerSession, len(players)),
		inbox:      NewInbox(len(players)),
		departures: make(chan string, len(players)+1),
		logger:     log.New(io.Discard),
	}
	for _, p := range players {
		e.byName[p.Name] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit queues a move from a connection goroutine.
func (e *Engine) Submit(mv Move) error {
	if _, ok := e.byName[mv.Player]; !ok {
		return ErrNotPlayer
	}
	return e.inbox.Submit(mv)
}

// Depart tells the engine a player disconnected. The player is frozen in
// place and forfeits; they are never waited on again.
func (e *Engine) Depart(name string) {
	if _, ok := e.byName[name]; !ok {
		return
	}
	e.inbox.Withdraw(name)
	select {
	case e.departures <- name:
	default:
	}
}

// Turn returns the current round number.
func (e *Engine) Turn() int {
	return e.inbox.Turn()
}

// Window is how long a round waits for moves, measured from the round start.
func (e *Engine) Window() time.Duration {
	ms := e.config.Game.TimeoutMillis
	if ms <= 0 {
		ms = DefaultTimeoutMillis
	}
	return time.Duration(ms) * time.Millisecond * 3 / 2
}

// Run plays the game to completion and notifies every player of the result.
// Cancelling ctx abandons the in-flight round without touching the terrain.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if len(e.players) == 0 {
		e.logger.Info("no players, finishing immediately", "game", e.config.GameID)
		return Result{GameID: e.config.GameID}, nil
	}

	e.start()

	for {
		done, err := e.playRound(ctx)
		if err != nil {
			return e.result(), err
		}
		if done {
			break
		}
	}

	res := e.result()
	e.logger.Info("game finished", "game", e.config.GameID, "turns", res.Turns, "winner", res.Winner)
	e.announce(res)
	return res, nil
}

func (e *Engine) start() {
	infos := make([]PlayerInfo, 0, len(e.players))
	delta := make([]core.CellCost, 0, len(e.players))
	for _, p := range e.players {
		infos = append(infos, PlayerInfo{Name: p.Name, Marker: p.Marker})
		delta = append(delta, core.CellCost{At: p.Start, Cost: p.Marker})
		if p.Start == p.End {
			// Degenerate placement on a one-cell grid.
			if err := p.MarkFinished(e.terrain, 0); err == nil {
				e.logger.Info("player starts on goal", "player", p.Name)
			}
		}
	}

	e.openRound(1)
	for _, p := range e.players {
		e.send(p, StartGameEvent{
			GameID:  e.config.GameID,
			Start:   p.Start,
			End:     p.End,
			Players: infos,
			Delta:   delta,
		})
	}
	e.logger.Info("game started", "game", e.config.GameID, "players", len(e.players), "window", e.Window())
}

func (e *Engine) openRound(turn int) {
	e.turn = turn
	eligible := make([]string, 0, len(e.players))
	for _, p := range e.players {
		if p.Active() {
			eligible = append(eligible, p.Name)
		}
	}
	e.inbox.Open(turn, eligible)
}

func (e *Engine) playRound(ctx context.Context) (bool, error) {
	received, timedOut, err := e.collect(ctx)
	if err != nil {
		// Abandon the round: shut the gate and empty the queue, leave terrain alone.
		_, _ = e.inbox.Close(len(received))
		e.logger.Info("round abandoned", "turn", e.turn, "reason", err)
		return false, err
	}

	late, err := e.inbox.Close(len(received))
	if err != nil {
		e.logger.Error("move queue corrupted", "turn", e.turn, "error", err)
		return false, err
	}
	for _, mv := range late {
		e.logger.Debug("move arrived after the window", "player", mv.Player, "turn", e.turn)
	}
	for _, name := range timedOut {
		e.logger.Debug("move timed out, treating as no-op", "player", name, "turn", e.turn)
	}

	report, err := e.resolve(received)
	if err != nil {
		e.logger.Error("round failed", "turn", e.turn, "error", err)
		return false, err
	}
	report.TimedOut = timedOut
	report.Late = len(late)
	report.QueueLen = e.inbox.Len()

	done := e.allDone()
	if !done && e.config.MaxRounds > 0 && e.turn >= e.config.MaxRounds {
		for _, p := range e.players {
			if p.Active() {
				p.Forfeit(false)
				e.logger.Info("round limit reached", "player", p.Name, "turn", e.turn)
			}
		}
		done = true
	}

	resolved := e.turn
	if !done {
		e.openRound(resolved + 1)
	}
	for _, p := range e.players {
		if p.Left {
			continue
		}
		if !done && p.Active() {
			e.send(p, StartNextTurnEvent{Turn: resolved + 1, Delta: report.Delta})
		} else {
			e.send(p, UpdateCostsEvent{Turn: resolved, Delta: report.Delta})
		}
	}

	if e.onRound != nil {
		e.onRound(report)
	}
	return done, nil
}

// collect receives at most one move per active player until everyone has
// moved or the window elapses. Timeouts are not errors.
func (e *Engine) collect(ctx context.Context) ([]Move, []string, error) {
	e.drainDepartures()

	pending := make(map[string]bool, len(e.players))
	for _, p := range e.players {
		if p.Active() {
			pending[p.Name] = true
		}
	}

	timer := time.NewTimer(e.Window())
	defer timer.Stop()

	var received []Move
	for len(pending) > 0 {
		select {
		case mv := <-e.inbox.Moves():
			received = append(received, mv)
			delete(pending, mv.Player)
		case name := <-e.departures:
			e.depart(name)
			delete(pending, name)
		case <-timer.C:
			var timedOut []string
			for _, p := range e.players {
				if pending[p.Name] {
					timedOut = append(timedOut, p.Name)
				}
			}
			return received, timedOut, nil
		case <-ctx.Done():
			return received, nil, ctx.Err()
		}
	}
	return received, nil, nil
}

func (e *Engine) resolve(received []Move) (RoundReport, error) {
	report := RoundReport{Turn: e.turn, Received: received}

	type step struct {
		player *PlayerSession
		target core.Coord
	}
	var accepted []step

	for _, mv := range received {
		p := e.byName[mv.Player]
		if p == nil || !p.Active() || mv.NoOp {
			continue
		}
		parent, err := p.Validate(e.adj, mv.Target, mv.Parent)
		if err != nil {
			e.logger.Warn("illegal move", "player", p.Name, "turn", e.turn, "target", mv.Target, "error", err)
			report.Illegal = append(report.Illegal, p.Name)
			e.send(p, IllegalMoveEvent{Turn: e.turn, Target: mv.Target, Reason: err.Error()})
			continue
		}
		p.Record(mv.Target, parent)
		accepted = append(accepted, step{player: p, target: mv.Target})
	}

	// Scores use the terrain as it stood before this round's blends.
	for _, s := range accepted {
		if s.target != s.player.End {
			continue
		}
		if err := s.player.MarkFinished(e.terrain, e.turn); err != nil {
			return report, fmt.Errorf("scoring %s on turn %d: %w", s.player.Name, e.turn, err)
		}
		report.Finished = append(report.Finished, s.player.Name)
		e.logger.Info("player reached goal", "player", s.player.Name, "turn", e.turn, "score", *s.player.Score)
	}

	report.Delta = make([]core.CellCost, 0, len(accepted))
	for _, s := range accepted {
		cost := e.terrain.Blend(s.target, s.player.Marker)
		report.Delta = append(report.Delta, core.CellCost{At: s.target, Cost: cost})
	}
	return report, nil
}

func (e *Engine) drainDepartures() {
	for {
		select {
		case name := <-e.departures:
			e.depart(name)
		default:
			return
		}
	}
}

func (e *Engine) depart(name string) {
	p := e.byName[name]
	if p == nil {
		return
	}
	if p.Active() {
		e.logger.Info("player left mid-game, forfeiting", "player", name, "turn", e.turn)
		p.Forfeit(true)
		return
	}
	p.Left = true
}

func (e *Engine) allDone() bool {
	for _, p := range e.players {
		if p.Active() {
			return false
		}
	}
	return true
}

// standings ranks finishers by ascending score, ties kept in join order,
// followed by everyone without a score in join order.
func (e *Engine) standings() []Standing {
	finished := make([]*PlayerSession, 0, len(e.players))
	var rest []*PlayerSession
	for _, p := range e.players {
		if p.Finished && p.Score != nil {
			finished = append(finished, p)
		} else {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return *finished[i].Score < *finished[j].Score
	})

	out := make([]Standing, 0, len(e.players))
	for _, p := range finished {
		out = append(out, p.Standing())
	}
	for _, p := range rest {
		out = append(out, p.Standing())
	}
	return out
}

func (e *Engine) result() Result {
	res := Result{
		GameID:    e.config.GameID,
		Turns:     e.turn,
		Standings: e.standings(),
	}
	if len(res.Standings) > 0 && res.Standings[0].Score != nil {
		res.Winner = res.Standings[0].Name
	}
	return res
}

func (e *Engine) announce(res Result) {
	for _, st := range res.Standings {
		p := e.byName[st.Name]
		if p == nil || p.Left {
			continue
		}
		if st.Name == res.Winner {
			e.send(p, WinEvent{Standings: res.Standings})
		} else {
			e.send(p, GameOverEvent{Standings: res.Standings})
		}
	}
}

func (e *Engine) send(p *PlayerSession, evt SessionEvent) {
	if p.handle == nil {
		return
	}
	if err := p.handle.Send(evt); err != nil {
		e.logger.Warn("notification failed", "player", p.Name, "event", fmt.Sprintf("%T", evt), "error", err)
	}
}
