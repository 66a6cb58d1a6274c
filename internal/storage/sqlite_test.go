package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func intp(v int) *int { return &v }

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestSaveGameResult(t *testing.T) {
	store := openTest(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := multiplayer.GameResultData{
		GameID: "g-1",
		Mode:   multiplayer.ModeRace,
		Width:  3,
		Height: 1,
		Turns:  2,
		Winner: "fast",
		Standings: []multiplayer.Standing{
			{Name: "fast", Score: intp(174), Turn: 1},
			{Name: "slow", Score: intp(343), Turn: 2},
			{Name: "gone", Forfeited: true},
		},
		EndReason:    multiplayer.EndCompleted,
		StartedAt:    started,
		DurationSecs: 3,
	}
	if err := store.SaveGameResult(data); err != nil {
		t.Fatalf("SaveGameResult() failed: %v", err)
	}

	rec, err := store.GameByID("g-1")
	if err != nil {
		t.Fatalf("GameByID() failed: %v", err)
	}
	if rec == nil {
		t.Fatal("GameByID() = nil, expected record")
	}
	if rec.Winner != "fast" || rec.Turns != 2 || rec.Mode != "race" || rec.EndReason != "completed" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, expected %v", rec.StartedAt, started)
	}
	if len(rec.Standings) != 3 {
		t.Fatalf("len(Standings) = %d, expected 3", len(rec.Standings))
	}
	if st := rec.Standings[0]; st.Rank != 1 || st.Name != "fast" || st.Score == nil || *st.Score != 174 {
		t.Errorf("standing 0 = %+v", st)
	}
	if st := rec.Standings[2]; st.Name != "gone" || st.Score != nil || !st.Forfeited {
		t.Errorf("standing 2 = %+v", st)
	}

	// Game IDs are unique.
	if err := store.SaveGameResult(data); err == nil {
		t.Error("SaveGameResult(duplicate) = nil, expected error")
	}
	games, err := store.RecentGames(10)
	if err != nil {
		t.Fatalf("RecentGames() failed: %v", err)
	}
	if len(games) != 1 || len(games[0].Standings) != 3 {
		t.Errorf("duplicate save left %d games", len(games))
	}
}

func TestGameByIDMissing(t *testing.T) {
	store := openTest(t)
	rec, err := store.GameByID("nope")
	if err != nil || rec != nil {
		t.Errorf("GameByID(missing) = %v, %v, expected nil, nil", rec, err)
	}
}

func TestRecentGamesNewestFirst(t *testing.T) {
	store := openTest(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.SaveGame(GameRecord{GameID: id, Mode: "race", Width: 2, Height: 2, EndReason: "completed"}); err != nil {
			t.Fatalf("SaveGame(%s) failed: %v", id, err)
		}
	}

	games, err := store.RecentGames(2)
	if err != nil {
		t.Fatalf("RecentGames() failed: %v", err)
	}
	if len(games) != 2 || games[0].GameID != "c" || games[1].GameID != "b" {
		t.Errorf("RecentGames(2) = %+v, expected c then b", games)
	}
	if games[0].Winner != "" {
		t.Errorf("Winner = %q, expected empty", games[0].Winner)
	}
}

func TestPlayerStats(t *testing.T) {
	store := openTest(t)
	games := []GameRecord{
		{GameID: "1", Mode: "race", EndReason: "completed", Winner: "ann", Standings: []StandingRecord{
			{Rank: 1, Name: "ann", Score: intp(200)},
			{Rank: 2, Name: "ben", Score: intp(300)},
		}},
		{GameID: "2", Mode: "race", EndReason: "completed", Winner: "ben", Standings: []StandingRecord{
			{Rank: 1, Name: "ben", Score: intp(150)},
			{Rank: 2, Name: "ann", Forfeited: true},
		}},
		{GameID: "3", Mode: "race", EndReason: "aborted", Standings: []StandingRecord{
			{Rank: 1, Name: "ann", Forfeited: true},
		}},
	}
	for _, g := range games {
		if _, err := store.SaveGame(g); err != nil {
			t.Fatalf("SaveGame(%s) failed: %v", g.GameID, err)
		}
	}

	tests := []struct {
		name  string
		games int
		wins  int
		best  int
	}{
		{"ann", 3, 1, 200},
		{"ben", 2, 1, 150},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, err := store.PlayerStats(tc.name)
			if err != nil {
				t.Fatalf("PlayerStats() failed: %v", err)
			}
			if st.Games != tc.games || st.Wins != tc.wins {
				t.Errorf("PlayerStats() = %d games %d wins, expected %d and %d", st.Games, st.Wins, tc.games, tc.wins)
			}
			if st.BestScore == nil || *st.BestScore != tc.best {
				t.Errorf("BestScore = %v, expected %d", st.BestScore, tc.best)
			}
		})
	}

	st, err := store.PlayerStats("nobody")
	if err != nil || st.Games != 0 || st.BestScore != nil || !st.LastPlayed.IsZero() {
		t.Errorf("PlayerStats(nobody) = %+v, %v", st, err)
	}

	played, err := store.PlayerGames("ben", 10)
	if err != nil {
		t.Fatalf("PlayerGames() failed: %v", err)
	}
	if len(played) != 2 || played[0].GameID != "2" {
		t.Errorf("PlayerGames(ben) = %+v", played)
	}
}
