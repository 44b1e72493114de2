package rejoin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

func TestRejoinRewardRefund(t *testing.T) {
	r, err := newRejoinReward("rejoin", map[string]interface{}{"scale": 0.1, "refund": true}, nil)
	require.NoError(t, err)
	agent := &Agent{cfg: config.Agent{Name: "w1"}}
	in := &View{Agent: agent, InRejoin: true, DT: 1, Episode: EpisodeState{}}
	out := &View{Agent: agent, InRejoin: false, DT: 1, Episode: EpisodeState{}}

	assert.InDelta(t, 0.1, r.Reward(in), 1e-12)
	assert.InDelta(t, 0.1, r.Reward(in), 1e-12)
	assert.InDelta(t, -0.2, r.Reward(out), 1e-12)
	assert.Equal(t, 0.0, r.Reward(out))

	noRefund, err := newRejoinReward("rejoin", map[string]interface{}{"scale": 0.1}, nil)
	require.NoError(t, err)
	noRefund.Reward(in)
	assert.Equal(t, 0.0, noRefund.Reward(out))
}

func TestDistanceChangeReward(t *testing.T) {
	r, err := newRejoinDistanceChangeReward("d", map[string]interface{}{"scale": 0.5}, nil)
	require.NoError(t, err)
	r.Reset(&View{RejoinDistance: 1000})
	assert.InDelta(t, 50, r.Reward(&View{RejoinDistance: 900}), 1e-12)
	assert.InDelta(t, -100, r.Reward(&View{RejoinDistance: 1100}), 1e-12)
}

func TestRejoinSuccessTimerResets(t *testing.T) {
	d, err := newRejoinSuccessDone("s", map[string]interface{}{"success_time": 2}, nil)
	require.NoError(t, err)
	in := &View{InRejoin: true, DT: 1}
	done, _ := d.Check(in)
	assert.False(t, done)
	done, _ = d.Check(&View{InRejoin: false, DT: 1})
	assert.False(t, done)
	done, _ = d.Check(in)
	assert.False(t, done)
	done, st := d.Check(in)
	assert.True(t, done)
	assert.Equal(t, StatusWin, st)
}

func TestPluginParamsAreStrict(t *testing.T) {
	_, err := newTimeoutDone("t", map[string]interface{}{"max_time": 10}, nil)
	assert.Error(t, err)
	_, err = newCrashDone("c", map[string]interface{}{"safety_margin": -1}, nil)
	assert.Error(t, err)
}

func TestDotProductAndMagnitude(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	b := &buildContext{rc: e.rc, agent: config.Agent{Name: "w1", Rejoin: config.RejoinRegion{Lead: "lead"}}}
	glues, err := buildGlues([]config.Plugin{
		{Name: "a", Type: "relative_position", Params: map[string]interface{}{"target": "lead"}},
		{Name: "b", Type: "relative_position", Params: map[string]interface{}{"target": "lead", "normalization": 2}},
		{Name: "ab", Type: "dot_product", Params: map[string]interface{}{"glues": []string{"a", "b"}, "normalize": true}},
		{Name: "raw", Type: "dot_product", Params: map[string]interface{}{"glues": []string{"a", "b"}}},
		{Name: "len", Type: "magnitude", Params: map[string]interface{}{"glue": "a"}},
	}, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, glues[2].Space().High)

	prior := map[string][]float64{"a": {3, 4, 0}, "b": {1.5, 2, 0}}
	x, err := glues[2].Observe(nil, prior)
	require.NoError(t, err)
	assert.InDelta(t, 1, x[0], 1e-12)
	x, err = glues[3].Observe(nil, prior)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, x[0], 1e-12)
	x, err = glues[4].Observe(nil, prior)
	require.NoError(t, err)
	assert.InDelta(t, 5, x[0], 1e-12)

	x, err = glues[2].Observe(nil, map[string][]float64{"a": {0, 0, 0}, "b": {1, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, x)

	_, err = buildGlues([]config.Plugin{
		{Name: "len", Type: "magnitude", Params: map[string]interface{}{"glue": "later"}},
		{Name: "later", Type: "own_speed"},
	}, b)
	assert.Error(t, err)
	_, err = buildGlues([]config.Plugin{
		{Name: "a", Type: "relative_position", Params: map[string]interface{}{"target": "bogey"}},
	}, b)
	assert.Error(t, err)
}

func TestRelativeGluesInBodyFrame(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	// 僚机航向90度，长机在其世界系+x方向1000处，机体系下应位于右侧（-y）
	e.rc.All.Platforms[1].Init.Heading = config.Fixed(math.Pi / 2)
	obs, err := e.Reset(1)
	require.NoError(t, err)
	a, err := e.Agent("w1")
	require.NoError(t, err)

	v := e.view(a, 0)
	g, err := newRelativePositionGlue("p", map[string]interface{}{"target": "lead", "normalization": 1000}, &buildContext{rc: e.rc})
	require.NoError(t, err)
	x, err := g.Observe(v, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, x[0], 1e-9)
	assert.InDelta(t, -1, x[1], 1e-9)
	assert.InDelta(t, 0, x[2], 1e-9)

	// 长机速度沿+x，僚机沿+y：相对速度世界系(200,-200)，机体系(-200,-200)
	vel, err := newRelativeVelocityGlue("v", map[string]interface{}{"target": "lead", "normalization": 200}, &buildContext{rc: e.rc})
	require.NoError(t, err)
	x, err = vel.Observe(v, nil)
	require.NoError(t, err)
	assert.InDelta(t, -1, x[0], 1e-9)
	assert.InDelta(t, -1, x[1], 1e-9)

	assert.Len(t, obs["w1"], a.ObservationDim())

	att, err := newOwnAttitudeGlue("att", nil, nil)
	require.NoError(t, err)
	x, err = att.Observe(v, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, x)

	s, err := newSensorGlue("hdg", map[string]interface{}{"sensor": "heading"}, nil)
	require.NoError(t, err)
	x, err = s.Observe(v, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, x[0], 1e-12)
	_, err = newSensorGlue("radar", map[string]interface{}{"sensor": "radar"}, nil)
	assert.Error(t, err)
}
