// Package storage provides SQLite-based persistence for finished games.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

// Store manages the SQLite database connection for game history.
type Store struct {
	db *sql.DB
}

// GameRecord is one finished (or aborted) game.
type GameRecord struct {
	ID           int64
	GameID       string
	Mode         string
	Width        int
	Height       int
	Turns        int
	Winner       string // Empty if nobody scored
	EndReason    string // "completed", "aborted", "error"
	DurationSecs int
	StartedAt    time.Time
	CreatedAt    time.Time
	Standings    []StandingRecord
}

// StandingRecord is one player's final place in a game.
type StandingRecord struct {
	Rank      int // 1-based
	Name      string
	Score     *int // nil when the player never reached its goal
	Turn      int
	Forfeited bool
}

// PlayerStats aggregates a player's history.
type PlayerStats struct {
	Name       string
	Games      int
	Wins       int
	BestScore  *int
	LastPlayed time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			turns INTEGER NOT NULL DEFAULT 0,
			winner TEXT,
			end_reason TEXT NOT NULL,
			duration_secs INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_games_created ON games(created_at DESC);

		CREATE TABLE IF NOT EXISTS standings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL REFERENCES games(game_id),
			rank INTEGER NOT NULL,
			name TEXT NOT NULL,
			score INTEGER,
			turn INTEGER NOT NULL DEFAULT 0,
			forfeited INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_standings_game ON standings(game_id);
		CREATE INDEX IF NOT EXISTS idx_standings_name ON standings(name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveGame records a game and its standings in one transaction.
// Returns the ID of the inserted game row.
func (s *Store) SaveGame(rec GameRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var startedAt any
	if !rec.StartedAt.IsZero() {
		startedAt = rec.StartedAt.UTC().Format(timeLayout)
	}
	res, err := tx.Exec(
		`INSERT INTO games
		 (game_id, mode, width, height, turns, winner, end_reason, duration_secs, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GameID, rec.Mode, rec.Width, rec.Height, rec.Turns,
		nullString(rec.Winner), rec.EndReason, rec.DurationSecs, startedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	for _, st := range rec.Standings {
		var score any
		if st.Score != nil {
			score = *st.Score
		}
		if _, err := tx.Exec(
			`INSERT INTO standings (game_id, rank, name, score, turn, forfeited)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.GameID, st.Rank, st.Name, score, st.Turn, st.Forfeited,
		); err != nil {
			return 0, fmt.Errorf("storage: cannot save standing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: cannot commit game: %w", err)
	}
	return id, nil
}

// GameByID retrieves a game and its standings. Returns nil if not found.
func (s *Store) GameByID(gameID string) (*GameRecord, error) {
	row := s.db.QueryRow(gameColumns+` WHERE game_id = ?`, gameID)
	rec, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query game: %w", err)
	}
	if rec.Standings, err = s.standings(gameID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentGames retrieves the most recent games, newest first, with standings.
func (s *Store) RecentGames(limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(gameColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query games: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		games = append(games, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	for i := range games {
		if games[i].Standings, err = s.standings(games[i].GameID); err != nil {
			return nil, err
		}
	}
	return games, nil
}

// PlayerGames retrieves the games a player took part in, newest first.
func (s *Store) PlayerGames(name string, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		gameColumns+` WHERE game_id IN (SELECT game_id FROM standings WHERE name = ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query player games: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		games = append(games, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return games, nil
}

// PlayerStats aggregates a player's games, wins and best score.
func (s *Store) PlayerStats(name string) (*PlayerStats, error) {
	stats := &PlayerStats{Name: name}
	var best sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(rank = 1 AND score IS NOT NULL), 0), MIN(score)
		 FROM standings WHERE name = ?`,
		name,
	).Scan(&stats.Games, &stats.Wins, &best)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get player stats: %w", err)
	}
	if best.Valid {
		v := int(best.Int64)
		stats.BestScore = &v
	}

	var lastPlayed any
	err = s.db.QueryRow(
		`SELECT g.created_at FROM games g JOIN standings st ON st.game_id = g.game_id
		 WHERE st.name = ? ORDER BY g.created_at DESC LIMIT 1`,
		name,
	).Scan(&lastPlayed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: cannot get last played: %w", err)
	}
	if err == nil {
		stats.LastPlayed = parseTime(lastPlayed)
	}
	return stats, nil
}

func (s *Store) standings(gameID string) ([]StandingRecord, error) {
	rows, err := s.db.Query(
		`SELECT rank, name, score, turn, forfeited FROM standings
		 WHERE game_id = ? ORDER BY rank`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query standings: %w", err)
	}
	defer rows.Close()

	var out []StandingRecord
	for rows.Next() {
		var st StandingRecord
		var score sql.NullInt64
		if err := rows.Scan(&st.Rank, &st.Name, &score, &st.Turn, &st.Forfeited); err != nil {
			return nil, fmt.Errorf("storage: cannot scan standing: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			st.Score = &v
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

const gameColumns = `SELECT id, game_id, mode, width, height, turns, winner, end_reason,
	duration_secs, started_at, created_at FROM games`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (GameRecord, error) {
	var rec GameRecord
	var winner sql.NullString
	var startedAt, createdAt any
	if err := row.Scan(
		&rec.ID,
		&rec.GameID,
		&rec.Mode,
		&rec.Width,
		&rec.Height,
		&rec.Turns,
		&winner,
		&rec.EndReason,
		&rec.DurationSecs,
		&startedAt,
		&createdAt,
	); err != nil {
		return GameRecord{}, err
	}
	rec.Winner = winner.String
	rec.StartedAt = parseTime(startedAt)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

const timeLayout = "2006-01-02 15:04:05"

// parseTime handles both time.Time and string datetimes from the driver.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse(timeLayout, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveGameResult implements multiplayer.ResultSaver.
// This adapter allows the coordinator to save results without direct storage dependency.
func (s *Store) SaveGameResult(data multiplayer.GameResultData) error {
	rec := GameRecord{
		GameID:       data.GameID,
		Mode:         string(data.Mode),
		Width:        data.Width,
		Height:       data.Height,
		Turns:        data.Turns,
		Winner:       data.Winner,
		EndReason:    data.EndReason,
		DurationSecs: data.DurationSecs,
		StartedAt:    data.StartedAt,
	}
	for i, st := range data.Standings {
		rec.Standings = append(rec.Standings, StandingRecord{
			Rank:      i + 1,
			Name:      st.Name,
			Score:     st.Score,
			Turn:      st.Turn,
			Forfeited: st.Forfeited,
		})
	}
	_, err := s.SaveGame(rec)
	return err
}

// Ensure Store implements ResultSaver
var _ multiplayer.ResultSaver = (*Store)(nil)
