package output

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

func TestOpenDispatch(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.Output{}, "x")
	require.NoError(t, err)
	assert.IsType(t, nopStore{}, s)
	assert.NoError(t, s.SaveEpisode(ctx, EpisodeRecord{}))
	assert.NoError(t, s.Close(ctx))

	_, err = Open(ctx, config.Output{URI: "redis://localhost"}, "x")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "run.db")
	s, err := Open(ctx, config.Output{URI: "sqlite://" + path}, "exp")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.SaveIteration(ctx, IterationRecord{RunID: "r1", Experiment: "exp", Iteration: 1, MeanReturn: 0.5, Time: now}))
	require.NoError(t, s.SaveIteration(ctx, IterationRecord{RunID: "r1", Experiment: "exp", Iteration: 2, MeanReturn: 0.7, Time: now}))
	require.NoError(t, s.SaveEpisode(ctx, EpisodeRecord{
		RunID:    "r1",
		Mode:     "eval",
		Seed:     42,
		Steps:    120,
		Success:  true,
		Returns:  map[string]float64{"wingman1": 1.5},
		Outcomes: map[string]string{"wingman1": "WIN"},
		Time:     now,
	}))

	db := s.(*sqliteStore).db
	var n int
	var maxMean float64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), MAX(mean_return) FROM iterations WHERE run_id = ?`, "r1").Scan(&n, &maxMean))
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0.7, maxMean, 1e-12)

	var returns string
	var success bool
	var seed int64
	require.NoError(t, db.QueryRow(`SELECT returns, success, seed FROM episodes`).Scan(&returns, &success, &seed))
	assert.JSONEq(t, `{"wingman1": 1.5}`, returns)
	assert.True(t, success)
	assert.Equal(t, int64(42), seed)

	require.NoError(t, s.Close(ctx))
}
