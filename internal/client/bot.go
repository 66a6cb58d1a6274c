package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/protocol"
)

// ErrNotSeated is returned when a session that can only chat tries to play.
var ErrNotSeated = errors.New("client: no player seat")

// Setup joins the server and builds the board for the hosted game.
// Chat-only sessions get a board too, with a zero marker.
func Setup(ctx context.Context, c *Client, name string, automated bool) (*Board, protocol.JoinResult, error) {
	joined, err := c.Join(ctx, name, automated)
	if err != nil {
		return nil, protocol.JoinResult{}, err
	}
	game, err := c.GameType(ctx)
	if err != nil {
		return nil, joined, err
	}
	board, err := NewBoard(game, joined.Name, joined.Colour)
	if err != nil {
		return nil, joined, err
	}
	return board, joined, nil
}

// Bot plays by always discovering the frontier cell nearest its goal,
// breaking ties on the lowest terrain weight.
type Bot struct {
	client *Client
	board  *Board
	logger *log.Logger
}

// NewBot creates a bot for a joined client.
func NewBot(c *Client, board *Board, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bot{client: c, board: board, logger: logger}
}

// Board returns the bot's view of the game.
func (b *Bot) Board() *Board {
	return b.board
}

// Choose picks the next move. With nothing left to discover it passes.
func (b *Bot) Choose() multiplayer.Move {
	goal := b.board.Me.End
	best, found := core.Coord{}, false
	bestDist, bestWeight := 0, 0
	for _, c := range b.board.Frontier() {
		d := b.distance(c, goal)
		w := b.board.Terrain.At(c).Weight()
		if !found || d < bestDist || (d == bestDist && w < bestWeight) {
			best, bestDist, bestWeight, found = c, d, w, true
		}
	}
	if !found {
		return multiplayer.NoOpMove(b.board.Me.Name)
	}
	return multiplayer.Move{Player: b.board.Me.Name, Target: best}
}

func (b *Bot) distance(from, to core.Coord) int {
	if b.board.Adj.Diagonals {
		return from.Chebyshev(to)
	}
	return from.Manhattan(to)
}

// Run plays until the game ends and reports whether the bot won.
func (b *Bot) Run(ctx context.Context) (bool, error) {
	can, err := b.client.CanPlay(ctx)
	if err != nil {
		return false, err
	}
	if !can {
		return false, ErrNotSeated
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case evt, ok := <-b.client.Events():
			if !ok {
				if err := b.client.Err(); err != nil {
					return false, fmt.Errorf("client: connection lost: %w", err)
				}
				return false, ErrClosed
			}
			b.board.Apply(evt)
			switch evt.(type) {
			case multiplayer.StartGameEvent, multiplayer.StartNextTurnEvent:
				b.play(ctx)
			case multiplayer.IllegalMoveEvent:
				b.logger.Warn("move rejected", "reason", b.board.LastError)
			case multiplayer.WinEvent, multiplayer.GameOverEvent:
				return b.board.Won, nil
			}
		}
	}
}

func (b *Bot) play(ctx context.Context) {
	if !b.board.CanMove() {
		return
	}
	mv, err := b.board.Prepare(b.Choose())
	if err != nil {
		b.logger.Warn("no legal move", "turn", b.board.Turn, "error", err)
		return
	}
	turn := b.board.Turn
	if err := b.client.ProposeMove(ctx, mv); err != nil {
		b.logger.Warn("proposal failed", "turn", turn, "error", err)
		return
	}
	b.board.Proposed(turn, mv)
	b.logger.Debug("proposed", "turn", b.board.Turn, "target", mv.Target, "noop", mv.NoOp)
}
