// Package results keeps an SQLite index of finished battles and the
// scores of every agent that took part.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/stats"
	"github.com/signalsfoundry/robot-arena/model"
)

// ErrNotFound is returned when a battle is not in the index.
var ErrNotFound = errors.New("battle not found")

// Store is the results index.
type Store struct {
	db *sql.DB
}

// BattleRow is one indexed battle.
type BattleRow struct {
	ID            string
	Name          string
	Seed          int64
	Ticks         int64
	Aborted       bool
	Winners       string
	RecordingPath string
	FinishedAt    time.Time
}

// Standing is an agent's record across every indexed battle.
type Standing struct {
	Name    string
	Battles int
	Wins    int
	Total   float64
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS battles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			aborted INTEGER NOT NULL,
			winners TEXT NOT NULL,
			recording_path TEXT NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			battle_id TEXT NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			team TEXT NOT NULL,
			outcome TEXT NOT NULL,
			rank INTEGER NOT NULL,
			survival REAL NOT NULL,
			last_survivor REAL NOT NULL,
			bullet_damage REAL NOT NULL,
			bullet_kill_bonus REAL NOT NULL,
			ram_damage REAL NOT NULL,
			ram_kill_bonus REAL NOT NULL,
			kills INTEGER NOT NULL,
			misbehaved INTEGER NOT NULL,
			PRIMARY KEY (battle_id, agent_id)
		);`,
		`CREATE INDEX IF NOT EXISTS scores_name ON scores(name);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores a finished battle and its scores in one transaction.
// Recording a battle ID twice replaces the earlier entry.
func (s *Store) Record(ctx context.Context, name string, seed int64, res *battle.Result, recordingPath string) error {
	if res == nil {
		return errors.New("nil result")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM scores WHERE battle_id=?`, `DELETE FROM battles WHERE id=?`} {
		if _, err := tx.ExecContext(ctx, q, res.BattleID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO battles (id, name, seed, ticks, aborted, winners, recording_path, finished_at) VALUES (?,?,?,?,?,?,?,?)`,
		res.BattleID, name, seed, res.Ticks, boolInt(res.Aborted), joinIDs(res.Winners), recordingPath, time.Now().UTC().Unix(),
	); err != nil {
		return fmt.Errorf("insert battle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scores (
		battle_id, agent_id, name, team, outcome, rank, survival, last_survivor,
		bullet_damage, bullet_kill_bonus, ram_damage, ram_kill_bonus, kills, misbehaved
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sc := range res.Scores {
		outcome := ""
		if a, ok := res.Agent(sc.ID); ok {
			outcome = a.Outcome
		}
		if _, err := stmt.ExecContext(ctx,
			res.BattleID, string(sc.ID), sc.Name, sc.Team, outcome, sc.Rank,
			sc.Survival, sc.LastSurvivor, sc.BulletDamage, sc.BulletKillBonus,
			sc.RamDamage, sc.RamKillBonus, sc.Kills, boolInt(sc.Misbehaved),
		); err != nil {
			return fmt.Errorf("insert score %s: %w", sc.ID, err)
		}
	}
	return tx.Commit()
}

// Battle returns the indexed battle id.
func (s *Store) Battle(ctx context.Context, id string) (BattleRow, error) {
	var (
		row      BattleRow
		aborted  int
		finished int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, seed, ticks, aborted, winners, recording_path, finished_at FROM battles WHERE id=?`, id,
	).Scan(&row.ID, &row.Name, &row.Seed, &row.Ticks, &aborted, &row.Winners, &row.RecordingPath, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return BattleRow{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return BattleRow{}, err
	}
	row.Aborted = aborted != 0
	row.FinishedAt = time.Unix(finished, 0).UTC()
	return row, nil
}

// Scores returns the scores of battle id by rank.
func (s *Store) Scores(ctx context.Context, id string) ([]stats.Score, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, name, team, rank, survival, last_survivor,
		bullet_damage, bullet_kill_bonus, ram_damage, ram_kill_bonus, kills, misbehaved
		FROM scores WHERE battle_id=? ORDER BY rank`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Score
	for rows.Next() {
		var (
			sc         stats.Score
			agentID    string
			misbehaved int
		)
		if err := rows.Scan(&agentID, &sc.Name, &sc.Team, &sc.Rank, &sc.Survival, &sc.LastSurvivor,
			&sc.BulletDamage, &sc.BulletKillBonus, &sc.RamDamage, &sc.RamKillBonus, &sc.Kills, &misbehaved); err != nil {
			return nil, err
		}
		sc.ID = model.AgentID(agentID)
		sc.Misbehaved = misbehaved != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Standings totals every agent name across all indexed battles, best
// total first.
func (s *Store) Standings(ctx context.Context) ([]Standing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, COUNT(*),
		SUM(CASE WHEN outcome='win' THEN 1 ELSE 0 END),
		SUM(survival + last_survivor + bullet_damage + bullet_kill_bonus + ram_damage + ram_kill_bonus)
		FROM scores GROUP BY name ORDER BY 4 DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.Name, &st.Battles, &st.Wins, &st.Total); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinIDs(ids []model.AgentID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += string(id)
	}
	return out
}
