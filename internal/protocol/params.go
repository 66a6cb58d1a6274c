package protocol

import (
	"fmt"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

// JoinParams are the parameters of join.
type JoinParams struct {
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Automated bool   `json:"automated,omitempty"`
}

// JoinResult answers join.
type JoinResult struct {
	Name     string      `json:"name"`
	Role     string      `json:"role"`
	Colour   core.Marker `json:"colour"`
	Protocol int         `json:"protocol"`
}

// SendChatParams are the parameters of sendChat.
type SendChatParams struct {
	Text string `json:"text"`
}

// ColourResult answers getColour.
type ColourResult struct {
	Colour core.Marker `json:"colour"`
}

// CanPlayResult answers canPlay.
type CanPlayResult struct {
	CanPlay bool `json:"canPlay"`
}

// ProposeMoveParams are the parameters of proposeMove. A no-op carries no target.
type ProposeMoveParams struct {
	Target *core.Coord `json:"target,omitempty"`
	Parent *core.Coord `json:"parent,omitempty"`
	NoOp   bool        `json:"noop,omitempty"`
}

// Move converts the params into an engine move.
func (p ProposeMoveParams) Move() (multiplayer.Move, error) {
	if p.NoOp {
		return multiplayer.Move{NoOp: true}, nil
	}
	if p.Target == nil {
		return multiplayer.Move{}, &Fault{Code: CodeBadRequest, Message: "proposeMove needs a target or noop"}
	}
	return multiplayer.Move{Target: *p.Target, Parent: p.Parent}, nil
}

// StartGameParams carry startGame.
type StartGameParams struct {
	GameID  string                   `json:"gameId"`
	Start   core.Coord               `json:"start"`
	End     core.Coord               `json:"end"`
	Players []multiplayer.PlayerInfo `json:"players"`
	Delta   []core.CellCost          `json:"delta"`
}

// TurnParams carry startNextTurn and updateCosts.
type TurnParams struct {
	Turn  int             `json:"turn"`
	Delta []core.CellCost `json:"delta"`
}

// RankedParams carry win and gameOver.
type RankedParams struct {
	Ranked []multiplayer.Standing `json:"ranked"`
}

// PrintChatParams carry printChat.
type PrintChatParams struct {
	Text   string      `json:"text"`
	Colour core.Marker `json:"colour"`
}

// IllegalMoveParams carry illegalMove.
type IllegalMoveParams struct {
	Turn   int        `json:"turn"`
	Target core.Coord `json:"target"`
	Reason string     `json:"reason"`
}

// EncodeEvent turns a session event into a notification envelope.
func EncodeEvent(evt multiplayer.SessionEvent) (Message, error) {
	switch e := evt.(type) {
	case multiplayer.StartGameEvent:
		return NewNotification(NotifyStartGame, StartGameParams{
			GameID: e.GameID, Start: e.Start, End: e.End, Players: e.Players, Delta: nonNil(e.Delta),
		})
	case multiplayer.StartNextTurnEvent:
		return NewNotification(NotifyStartNextTurn, TurnParams{Turn: e.Turn, Delta: nonNil(e.Delta)})
	case multiplayer.UpdateCostsEvent:
		return NewNotification(NotifyUpdateCosts, TurnParams{Turn: e.Turn, Delta: nonNil(e.Delta)})
	case multiplayer.WinEvent:
		return NewNotification(NotifyWin, RankedParams{Ranked: e.Standings})
	case multiplayer.GameOverEvent:
		return NewNotification(NotifyGameOver, RankedParams{Ranked: e.Standings})
	case multiplayer.ChatEvent:
		return NewNotification(NotifyPrintChat, PrintChatParams{Text: e.Text, Colour: e.Colour})
	case multiplayer.IllegalMoveEvent:
		return NewNotification(NotifyIllegalMove, IllegalMoveParams{Turn: e.Turn, Target: e.Target, Reason: e.Reason})
	default:
		return Message{}, fmt.Errorf("protocol: no notification for %T", evt)
	}
}

// DecodeEvent turns a notification envelope back into a session event.
func DecodeEvent(m Message) (multiplayer.SessionEvent, error) {
	switch m.Method {
	case NotifyStartGame:
		var p StartGameParams
		if err := m.DecodeParams(&p); err != nil {
			return nil, err
		}
		return multiplayer.StartGameEvent{GameID: p.GameID, Start: p.Start, End: p.End, Players: p.Players, Delta: p.Delta}, nil
	case NotifyStartNextTurn, NotifyUpdateCosts:
		var p TurnParams
		if err := m.DecodeParams(&p); err != nil {
			return nil, err
		}
		if m.Method == NotifyStartNextTurn {
			return multiplayer.StartNextTurnEvent{Turn: p.Turn, Delta: p.Delta}, nil
		}
		return multiplayer.UpdateCostsEvent{Turn: p.Turn, Delta: p.Delta}, nil
	case NotifyWin, NotifyGameOver:
		var p RankedParams
		if err := m.DecodeParams(&p); err != nil {
			return nil, err
		}
		if m.Method == NotifyWin {
			return multiplayer.WinEvent{Standings: p.Ranked}, nil
		}
		return multiplayer.GameOverEvent{Standings: p.Ranked}, nil
	case NotifyPrintChat:
		var p PrintChatParams
		if err := m.DecodeParams(&p); err != nil {
			return nil, err
		}
		return multiplayer.ChatEvent{Text: p.Text, Colour: p.Colour}, nil
	case NotifyIllegalMove:
		var p IllegalMoveParams
		if err := m.DecodeParams(&p); err != nil {
			return nil, err
		}
		return multiplayer.IllegalMoveEvent{Turn: p.Turn, Target: p.Target, Reason: p.Reason}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown notification %q", m.Method)
	}
}

func nonNil(d []core.CellCost) []core.CellCost {
	if d == nil {
		return []core.CellCost{}
	}
	return d
}
