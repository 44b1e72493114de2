package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS iterations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL,
	experiment        TEXT NOT NULL DEFAULT '',
	iteration         INTEGER NOT NULL,
	mean_return       REAL NOT NULL DEFAULT 0,
	max_return        REAL NOT NULL DEFAULT 0,
	p90_return        REAL NOT NULL DEFAULT 0,
	elite_mean_return REAL NOT NULL DEFAULT 0,
	success_rate      REAL NOT NULL DEFAULT 0,
	best_success_rate REAL NOT NULL DEFAULT 0,
	mean_std          REAL NOT NULL DEFAULT 0,
	elapsed           REAL NOT NULL DEFAULT 0,
	time              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS episodes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	experiment TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT '',
	idx        INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	steps      INTEGER NOT NULL,
	sim_time   REAL NOT NULL,
	success    INTEGER NOT NULL,
	returns    TEXT NOT NULL DEFAULT '{}',
	outcomes   TEXT NOT NULL DEFAULT '{}',
	time       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id);
CREATE INDEX IF NOT EXISTS idx_episodes_run ON episodes(run_id);
`

// sqliteStore 基于modernc.org/sqlite（纯Go）的输出存储
type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(ctx context.Context, path string) (*sqliteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 多个worker并发写入时串行化
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("output to sqlite %s", path)
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) SaveIteration(ctx context.Context, r IterationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO iterations
		 (run_id, experiment, iteration, mean_return, max_return, p90_return, elite_mean_return,
		  success_rate, best_success_rate, mean_std, elapsed, time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Experiment, r.Iteration, r.MeanReturn, r.MaxReturn, r.P90Return, r.EliteMeanReturn,
		r.SuccessRate, r.BestSuccessRate, r.MeanStd, r.Elapsed, r.Time,
	)
	return err
}

func (s *sqliteStore) SaveEpisode(ctx context.Context, r EpisodeRecord) error {
	returns, err := json.Marshal(r.Returns)
	if err != nil {
		return err
	}
	outcomes, err := json.Marshal(r.Outcomes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO episodes
		 (run_id, experiment, mode, idx, seed, steps, sim_time, success, returns, outcomes, time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Experiment, r.Mode, r.Index, int64(r.Seed), r.Steps, r.SimTime, r.Success,
		string(returns), string(outcomes), r.Time,
	)
	return err
}

func (s *sqliteStore) Close(context.Context) error {
	return s.db.Close()
}
