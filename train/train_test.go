package train

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
)

func loadConfig(t *testing.T, file string) *config.RuntimeConfig {
	c, err := config.LoadFile("../experiments/" + file)
	require.NoError(t, err)
	c.Control.Step.Total = 30
	c.Trainer.Iterations = 2
	c.Trainer.Population = 4
	c.Trainer.EpisodesPerCandidate = 2
	c.Trainer.Workers = 2
	c.Trainer.CheckpointEvery = 1
	c.Trainer.TargetSuccessRate = 0
	c.Output = config.Output{CheckpointDir: t.TempDir()}
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	return rc
}

func nopStore(t *testing.T) output.Store {
	s, err := output.Open(context.Background(), config.Output{}, "test")
	require.NoError(t, err)
	return s
}

func TestPolicySetSharedPolicy(t *testing.T) {
	rc := loadConfig(t, "dubins3d_rejoin_multiagent.yml")
	env, err := rejoin.NewEnv(rc)
	require.NoError(t, err)
	ps, err := NewPolicySet(env)
	require.NoError(t, err)
	require.Equal(t, []string{"wingman"}, ps.Names())
	p := ps["wingman"]
	assert.Equal(t, 16, p.ObsDim)
	assert.Equal(t, 3, p.ActDim)
	assert.Equal(t, 16*3+3, ps.NumParams())

	theta := make([]float64, ps.NumParams())
	for i := range theta {
		theta[i] = float64(i)
	}
	require.NoError(t, ps.Load(theta))
	assert.Equal(t, theta, ps.Flatten())
	assert.Error(t, ps.Load(theta[:3]))

	clone := ps.Clone()
	clone["wingman"].Bias[0] = -1
	assert.NotEqual(t, clone["wingman"].Bias[0], ps["wingman"].Bias[0])
	assert.NoError(t, clone.Compatible(env))
	delete(clone, "wingman")
	assert.Error(t, clone.Compatible(env))
}

func TestLinearPolicyAct(t *testing.T) {
	p := NewLinearPolicy(2, 2)
	p.Weights = []float64{1, 0, 0, 2}
	p.Bias = []float64{0, 0.5}
	a, err := p.Act([]float64{0.5, 0.25})
	require.NoError(t, err)
	assert.InDelta(t, math.Tanh(0.5), a[0], 1e-12)
	assert.InDelta(t, math.Tanh(1), a[1], 1e-12)

	_, err = p.Act([]float64{1})
	assert.Error(t, err)
}

func TestRunEpisodeDeterministic(t *testing.T) {
	rc := loadConfig(t, "dubins3d_rejoin_multiagent.yml")
	env, err := rejoin.NewEnv(rc)
	require.NoError(t, err)
	ps, err := NewPolicySet(env)
	require.NoError(t, err)
	theta := ps.Flatten()
	for i := range theta {
		theta[i] = 0.01 * float64(i%7-3)
	}
	require.NoError(t, ps.Load(theta))

	ctx := context.Background()
	a, err := RunEpisode(ctx, env, ps, 5)
	require.NoError(t, err)
	b, err := RunEpisode(ctx, env, ps, 5)
	require.NoError(t, err)
	assert.Equal(t, a.Returns, b.Returns)
	assert.Equal(t, a.Outcomes, b.Outcomes)
	assert.LessOrEqual(t, a.Steps, int32(30))
	assert.Len(t, a.Outcomes, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = RunEpisode(cancelled, env, ps, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainerRunAndEvaluate(t *testing.T) {
	rc := loadConfig(t, "dubins2d_rejoin.yml")
	tr, err := NewTrainer(rc, nopStore(t))
	require.NoError(t, err)
	cp, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Iteration)
	assert.Equal(t, tr.RunID(), cp.RunID)

	dir := rc.All.Output.CheckpointDir
	for _, it := range []int{1, 2, -1} {
		_, err := os.Stat(checkpointPath(dir, "dubins2d_rejoin", it))
		assert.NoError(t, err, "iteration %d", it)
	}

	loaded, err := LoadCheckpoint(checkpointPath(dir, "dubins2d_rejoin", -1))
	require.NoError(t, err)
	assert.Equal(t, cp.Policies.Flatten(), loaded.Policies.Flatten())
	assert.Equal(t, cp.Score, loaded.Score)

	report, err := Evaluate(context.Background(), rc, loaded.Policies, 3, nopStore(t), "eval")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Episodes)
	total := 0
	for _, n := range report.Outcomes {
		total += n
	}
	assert.Equal(t, 3, total)

	// 继续训练：已完成的迭代不再重复
	tr2, err := NewTrainer(rc, nopStore(t))
	require.NoError(t, err)
	require.NoError(t, tr2.Resume(loaded))
	cp2, err := tr2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cp2.Iteration)
	assert.Equal(t, loaded.Score, cp2.Score)
}

func TestTrainerCancelledBeforeFirstIteration(t *testing.T) {
	rc := loadConfig(t, "dubins2d_rejoin.yml")
	tr, err := NewTrainer(rc, nopStore(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Run(ctx)
	assert.Error(t, err)
}

func TestLoadCheckpointRejectsBadShape(t *testing.T) {
	path := t.TempDir() + "/bad.yml"
	require.NoError(t, SaveCheckpoint(path, &Checkpoint{Policies: PolicySet{"p": {ObsDim: 2, ActDim: 1, Weights: []float64{1}, Bias: []float64{0}}}}))
	_, err := LoadCheckpoint(path)
	assert.Error(t, err)

	require.NoError(t, SaveCheckpoint(path, &Checkpoint{}))
	_, err = LoadCheckpoint(path)
	assert.Error(t, err)
}
