package multiplayer

import (
	"errors"
	"testing"
)

func TestInboxGate(t *testing.T) {
	b := NewInbox(2)

	if err := b.Submit(NoOpMove("a")); !errors.Is(err, ErrNoRound) {
		t.Errorf("Submit() before Open = %v, expected ErrNoRound", err)
	}

	b.Open(1, []string{"a", "b"})
	if err := b.Submit(NoOpMove("a")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := b.Submit(NoOpMove("a")); !errors.Is(err, ErrDuplicateMove) {
		t.Errorf("second Submit() = %v, expected ErrDuplicateMove", err)
	}
	if err := b.Submit(NoOpMove("stranger")); !errors.Is(err, ErrNoRound) {
		t.Errorf("Submit() from ineligible player = %v, expected ErrNoRound", err)
	}

	b.Withdraw("b")
	if err := b.Submit(NoOpMove("b")); !errors.Is(err, ErrNoRound) {
		t.Errorf("Submit() after Withdraw = %v, expected ErrNoRound", err)
	}
	if b.Turn() != 1 {
		t.Errorf("Turn() = %d, expected 1", b.Turn())
	}
}

func TestInboxCloseDrainsLateMoves(t *testing.T) {
	b := NewInbox(3)
	b.Open(1, []string{"a", "b", "c"})
	for _, name := range []string{"a", "b", "c"} {
		if err := b.Submit(NoOpMove(name)); err != nil {
			t.Fatalf("Submit(%s) failed: %v", name, err)
		}
	}

	<-b.Moves()
	late, err := b.Close(1)
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if len(late) != 2 || late[0].Player != "b" || late[1].Player != "c" {
		t.Errorf("Close() late = %+v, expected b then c", late)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after Close, expected 0", b.Len())
	}
	if err := b.Submit(NoOpMove("a")); !errors.Is(err, ErrNoRound) {
		t.Errorf("Submit() after Close = %v, expected ErrNoRound", err)
	}
}

func TestInboxCloseDetectsMiscount(t *testing.T) {
	b := NewInbox(2)
	b.Open(1, []string{"a"})
	if err := b.Submit(NoOpMove("a")); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	<-b.Moves()

	if _, err := b.Close(2); !errors.Is(err, ErrQueueInvariant) {
		t.Errorf("Close() with wrong count = %v, expected ErrQueueInvariant", err)
	}
}

func TestInboxReopenResetsRound(t *testing.T) {
	b := NewInbox(1)
	b.Open(1, []string{"a"})
	_ = b.Submit(NoOpMove("a"))
	<-b.Moves()
	if _, err := b.Close(1); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	b.Open(2, []string{"a"})
	if err := b.Submit(NoOpMove("a")); err != nil {
		t.Errorf("Submit() in new round = %v, expected nil", err)
	}
}
