package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

func TestMessageKinds(t *testing.T) {
	req, _ := NewRequest(1, MethodJoin, JoinParams{Name: "a", Version: Version})
	res, _ := NewResult(1, nil)
	note, _ := NewNotification(NotifyWin, RankedParams{})

	tests := []struct {
		name                string
		msg                 Message
		request, resp, noti bool
	}{
		{"request", req, true, false, false},
		{"response", res, false, true, false},
		{"error", NewError(2, &Fault{Code: CodeInternal}), false, true, false},
		{"notification", note, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.IsRequest() != tt.request || tt.msg.IsResponse() != tt.resp || tt.msg.IsNotification() != tt.noti {
				t.Errorf("kind mismatch for %+v", tt.msg)
			}
		})
	}
}

func TestWireShape(t *testing.T) {
	target := core.C(3, 4)
	req, err := NewRequest(7, MethodProposeMove, ProposeMoveParams{Target: &target})
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	var buf bytes.Buffer
	if err := NewLineCodec(nil, &buf).Write(req); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	want := `{"id":7,"method":"proposeMove","params":{"target":{"x":3,"y":4}}}` + "\n"
	if buf.String() != want {
		t.Errorf("wire = %s, expected %s", buf.String(), want)
	}
}

func TestFaultMapping(t *testing.T) {
	tests := []struct {
		err  error
		code FaultCode
	}{
		{multiplayer.ErrNameTaken, CodeNameTaken},
		{fmt.Errorf("%w: (9,9) is off the grid", multiplayer.ErrIllegalMove), CodeIllegalMove},
		{fmt.Errorf("%w: got 1", multiplayer.ErrVersionMismatch), CodeVersionMismatch},
		{multiplayer.ErrDuplicateMove, CodeDuplicateMove},
		{multiplayer.ErrNoRound, CodeNoRound},
		{multiplayer.ErrNotPlayer, CodeNotPlayer},
		{multiplayer.ErrNotJoined, CodeNotJoined},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		f := FaultFor(tt.err)
		if f.Code != tt.code {
			t.Errorf("FaultFor(%v).Code = %s, expected %s", tt.err, f.Code, tt.code)
		}
		if tt.code != CodeInternal && !errors.Is(f, tt.err) && !errors.Is(tt.err, f.Unwrap()) {
			t.Errorf("Fault %s does not unwrap to %v", f.Code, tt.err)
		}
	}
}

func TestDecodeResultFault(t *testing.T) {
	msg := NewError(3, &Fault{Code: CodeNameTaken, Message: "taken"})
	err := msg.DecodeResult(nil)
	if !errors.Is(err, multiplayer.ErrNameTaken) {
		t.Errorf("DecodeResult() = %v, expected ErrNameTaken", err)
	}
}

func TestProposeMoveParams(t *testing.T) {
	target := core.C(1, 2)
	parent := core.C(1, 1)

	mv, err := ProposeMoveParams{Target: &target, Parent: &parent}.Move()
	if err != nil || mv.Target != target || *mv.Parent != parent || mv.NoOp {
		t.Errorf("Move() = %+v, %v", mv, err)
	}
	if mv, err := (ProposeMoveParams{NoOp: true}).Move(); err != nil || !mv.NoOp {
		t.Errorf("noop Move() = %+v, %v", mv, err)
	}
	var f *Fault
	if _, err := (ProposeMoveParams{}).Move(); !errors.As(err, &f) || f.Code != CodeBadRequest {
		t.Errorf("empty Move() = %v, expected BadRequest", err)
	}
}

func TestEventsSurviveTheWire(t *testing.T) {
	score := 12
	events := []multiplayer.SessionEvent{
		multiplayer.StartGameEvent{
			GameID: "g", Start: core.C(0, 0), End: core.C(1, 1),
			Players: []multiplayer.PlayerInfo{{Name: "a", Marker: core.Marker{0, 0, 255}}},
			Delta:   []core.CellCost{{At: core.C(0, 0), Cost: core.Cost{0, 0, 255}}},
		},
		multiplayer.StartNextTurnEvent{Turn: 2, Delta: []core.CellCost{}},
		multiplayer.UpdateCostsEvent{Turn: 3, Delta: []core.CellCost{{At: core.C(1, 0), Cost: core.Cost{1, 2, 3}}}},
		multiplayer.WinEvent{Standings: []multiplayer.Standing{{Name: "a", Score: &score, Turn: 3}}},
		multiplayer.GameOverEvent{Standings: []multiplayer.Standing{{Name: "b", Forfeited: true}}},
		multiplayer.ChatEvent{Text: "<a> hi", Colour: core.Marker{0, 255, 0}},
		multiplayer.IllegalMoveEvent{Turn: 1, Target: core.C(5, 5), Reason: "off the grid"},
	}

	var buf bytes.Buffer
	codec := NewLineCodec(&buf, &buf)
	for _, evt := range events {
		msg, err := EncodeEvent(evt)
		if err != nil {
			t.Fatalf("EncodeEvent(%T) failed: %v", evt, err)
		}
		if err := codec.Write(msg); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
	}

	for _, want := range events {
		msg, err := codec.Read()
		if err != nil {
			t.Fatalf("Read() failed: %v", err)
		}
		got, err := DecodeEvent(msg)
		if err != nil {
			t.Fatalf("DecodeEvent(%s) failed: %v", msg.Method, err)
		}
		if fmt.Sprintf("%+v", got) != fmt.Sprintf("%+v", want) && !sameStandings(got, want) {
			t.Errorf("event = %+v, expected %+v", got, want)
		}
	}
	if _, err := codec.Read(); err != io.EOF {
		t.Errorf("Read() at end = %v, expected io.EOF", err)
	}
}

// Standings hold score pointers, so compare them by value.
func sameStandings(got, want multiplayer.SessionEvent) bool {
	g, ok1 := got.(multiplayer.WinEvent)
	w, ok2 := want.(multiplayer.WinEvent)
	if !ok1 || !ok2 || len(g.Standings) != len(w.Standings) {
		return false
	}
	for i := range g.Standings {
		if g.Standings[i].Name != w.Standings[i].Name || *g.Standings[i].Score != *w.Standings[i].Score {
			return false
		}
	}
	return true
}

func TestDecodeEventUnknown(t *testing.T) {
	if _, err := DecodeEvent(Message{Method: "explode"}); err == nil || !strings.Contains(err.Error(), "explode") {
		t.Errorf("DecodeEvent(explode) = %v, expected an error naming the method", err)
	}
	bad := Message{Method: NotifyWin, Params: []byte(`{"ranked":5}`)}
	var f *Fault
	if _, err := DecodeEvent(bad); !errors.As(err, &f) || f.Code != CodeBadRequest {
		t.Errorf("DecodeEvent(bad) = %v, expected BadRequest", err)
	}
}
