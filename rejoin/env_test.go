package rejoin

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

// 长机位于原点、航向0、速度200直飞；僚机初始位置与航向可配置
const envTemplate = `
control:
  step: {start: 0, total: %d, interval: 1}
simulator: {type: dubins3d}
platforms:
  - name: lead
    init: {position: [0, 0, 0], heading: 0, v: 200}
    control: [0, 0, 0]
  - name: w1
    init: {position: [%v, %v, 0], heading: 0, v: 200}
  - name: w2
    init: {position: [-1000, 5000, 0], heading: 0, v: 200}
agents:
  - name: w1
    platform: w1
    normalize_actions: true
    rejoin: {lead: lead, radius: 500, offset: [-1000, 0, 0]}
    glues:
      - {name: rejoin_position, type: relative_position, params: {target: rejoin, normalization: 1000}}
      - {name: lead_velocity, type: relative_velocity, params: {target: lead}}
      - {type: own_speed, params: {normalization: 400}}
      - {name: distance, type: magnitude, params: {glue: rejoin_position}}
    rewards:
      - {type: rejoin, params: {scale: 0.1, refund: true}}
      - {type: rejoin_first_time, params: {scale: 0.25}}
      - {type: rejoin_distance_change, params: {scale: 0.001}}
      - {type: success, params: {scale: 1, timeout_bonus: true}}
      - {type: failure, params: {scale: -1, dones: {crash: -5}}}
    dones:
      - {type: timeout, params: {max_sim_time: 100}}
      - {type: max_distance, params: {max_distance: 40000}}
      - {type: crash, params: {safety_margin: 100}}
      - {type: rejoin_success, params: {success_time: 3}}
  - name: w2
    platform: w2
    rejoin: {lead: lead, radius: 500, offset: [-1000, 1000, 0]}
    glues:
      - {type: own_speed}
    rewards:
      - {type: control_penalty, params: {scale: 1}}
    dones:
      - {type: crash, params: {safety_margin: 100}}
shared_dones:
  - type: all_rejoined
  - type: any_crash
`

func newTestEnv(t *testing.T, total int, x, y float64) *Env {
	c, err := config.Parse([]byte(fmt.Sprintf(envTemplate, total, x, y)))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	e, err := NewEnv(rc)
	require.NoError(t, err)
	return e
}

func TestStepBeforeReset(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	_, err := e.Step(nil)
	assert.ErrorIs(t, err, ErrNotReset)
}

func TestSpaces(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	obs, err := e.ObservationSpace("w1")
	require.NoError(t, err)
	assert.Len(t, obs, 4)
	assert.Equal(t, "rejoin_position", obs[0].Name)
	assert.Equal(t, "own_speed", obs[2].Name)

	act, err := e.ActionSpace("w1")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1}, act.Low)
	act2, err := e.ActionSpace("w2")
	require.NoError(t, err)
	assert.Equal(t, "pitch_roll_acceleration", act2.Name)
	assert.InDelta(t, 96.5, act2.High[2], 1e-12)

	_, err = e.ActionSpace("w3")
	assert.Error(t, err)
}

func TestRejoinSuccessEpisode(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	obs, err := e.Reset(1)
	require.NoError(t, err)
	require.Len(t, obs["w1"], 3+3+1+1)
	assert.InDelta(t, 0, obs["w1"][7], 1e-9)
	assert.InDelta(t, 0.5, obs["w1"][6], 1e-9)

	// 归一化动作0对应控制量0
	hold := map[string][]float64{"w1": {0, 0, 0}}
	var res *StepResult
	for i := 1; i <= 3; i++ {
		res, err = e.Step(hold)
		require.NoError(t, err)
		info := res.Infos["w1"]
		assert.True(t, info.InRejoin, "step %d", i)
		assert.InDelta(t, 0.1, info.Rewards["rejoin"], 1e-9)
		if i == 1 {
			assert.InDelta(t, 0.25, info.Rewards["rejoin_first_time"], 1e-9)
		} else {
			assert.Equal(t, 0.0, info.Rewards["rejoin_first_time"])
		}
	}
	assert.True(t, res.Dones["w1"])
	assert.Equal(t, StatusWin, res.Infos["w1"].Status["rejoin_success"])
	assert.InDelta(t, 1+(1-3.0/10), res.Infos["w1"].Rewards["success"], 1e-9)
	// w2从未集结，episode仍继续
	assert.False(t, res.Dones[AllAgents])

	// 已结束智能体的动作被忽略且不再出现在结果中
	res, err = e.Step(map[string][]float64{"w1": {1, 1, 1}, "w2": {0, 0, 0}})
	require.NoError(t, err)
	assert.NotContains(t, res.Rewards, "w1")
	assert.Contains(t, res.Rewards, "w2")
	assert.Equal(t, 0.0, res.Rewards["w2"])
}

func TestHorizonDraw(t *testing.T) {
	e := newTestEnv(t, 3, -10000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	var res *StepResult
	for range 3 {
		res, err = e.Step(nil)
		require.NoError(t, err)
	}
	assert.True(t, res.Dones[AllAgents])
	assert.Equal(t, StatusDraw, res.Infos["w1"].Status[HorizonDone])
	assert.Equal(t, StatusDraw, res.Infos["w2"].Status[HorizonDone])

	s := e.Summary()
	assert.False(t, s.Success)
	assert.Equal(t, int32(3), s.Steps)
	assert.Equal(t, StatusDraw, s.Outcomes["w1"])
	// 僚机与长机同速同向，距离不变
	assert.InDelta(t, 0, s.Returns["w1"], 1e-6)

	_, err = e.Step(nil)
	assert.ErrorIs(t, err, ErrEpisodeEnded)
}

func TestCrashEndsEpisode(t *testing.T) {
	e := newTestEnv(t, 10, 50, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	res, err := e.Step(nil)
	require.NoError(t, err)
	assert.True(t, res.Dones[AllAgents])
	assert.Equal(t, StatusLose, res.Infos["w1"].Status["crash"])
	assert.Equal(t, StatusDraw, res.Infos["w2"].Status["any_crash"])
	assert.InDelta(t, -5, res.Infos["w1"].Rewards["failure"], 1e-9)
	assert.Equal(t, StatusLose, e.Summary().Outcomes["w1"])
}

func TestMaxDistance(t *testing.T) {
	e := newTestEnv(t, 10, -50000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	res, err := e.Step(nil)
	require.NoError(t, err)
	assert.True(t, res.Dones["w1"])
	assert.Equal(t, StatusLose, res.Infos["w1"].Status["max_distance"])
	assert.InDelta(t, -1, res.Infos["w1"].Rewards["failure"], 1e-9)
	assert.False(t, res.Dones[AllAgents])
}

func TestActionValidation(t *testing.T) {
	e := newTestEnv(t, 10, -10000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	_, err = e.Step(map[string][]float64{"bogey": {0, 0, 0}})
	assert.Error(t, err)
	_, err = e.Step(map[string][]float64{"w1": {0}})
	assert.Error(t, err)
}

func TestNormalizedActionScaling(t *testing.T) {
	e := newTestEnv(t, 10, -10000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	res, err := e.Step(map[string][]float64{"w1": {-1, 5, 0}, "w2": {0, 0, 96.5}})
	require.NoError(t, err)

	w1 := e.Context().PlatformManager().Get("w1")
	applied := w1.AppliedAction()
	assert.InDelta(t, -10*math.Pi/180, applied[0], 1e-12)
	assert.InDelta(t, 5*math.Pi/180, applied[1], 1e-12)
	assert.InDelta(t, 0, applied[2], 1e-12)
	// 控制量惩罚：|96.5|/96.5
	assert.InDelta(t, -1, res.Rewards["w2"], 1e-9)
}

func TestNewEnvErrors(t *testing.T) {
	c, err := config.Parse([]byte(fmt.Sprintf(envTemplate, 10, 0, 0)))
	require.NoError(t, err)
	c.Agents[0].Glues = append(c.Agents[0].Glues, config.Plugin{Type: "radar"})
	c.Agents[1].Dones = append(c.Agents[1].Dones, config.Plugin{Type: "timeout"})
	c.SharedDones = append(c.SharedDones, config.Plugin{Type: "all_rejoined"})
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	_, err = NewEnv(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown glue type "radar"`)
	assert.Contains(t, err.Error(), "relative_position")
	assert.Contains(t, err.Error(), "max_sim_time must be positive")
	assert.Contains(t, err.Error(), `duplicate shared done name "all_rejoined"`)
}

func TestTimeoutLose(t *testing.T) {
	e := newTestEnv(t, 150, -10000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	var res *StepResult
	for i := 1; i <= 100; i++ {
		res, err = e.Step(nil)
		require.NoError(t, err)
		if i < 100 {
			require.False(t, res.Dones["w1"], "step %d", i)
		}
	}
	assert.True(t, res.Dones["w1"])
	assert.Equal(t, StatusLose, res.Infos["w1"].Status["timeout"])
	assert.InDelta(t, -1, res.Infos["w1"].Rewards["failure"], 1e-9)
	assert.False(t, res.Dones[AllAgents])
	assert.Equal(t, StatusLose, e.Summary().Outcomes["w1"])
}

func TestAllRejoinedSuccess(t *testing.T) {
	c, err := config.Parse([]byte(fmt.Sprintf(envTemplate, 10, -1000, 0)))
	require.NoError(t, err)
	// w2放在自己的集结点上
	c.Platforms[2].Init.Position = []config.Range{config.Fixed(-1000), config.Fixed(1000), config.Fixed(0)}
	c.Agents[1].Dones = append(c.Agents[1].Dones, config.Plugin{
		Type:   "rejoin_success",
		Params: map[string]interface{}{"success_time": 3},
	})
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	e, err := NewEnv(rc)
	require.NoError(t, err)
	_, err = e.Reset(1)
	require.NoError(t, err)

	steps := 0
	for !e.Done() && steps < 10 {
		res, err := e.Step(nil)
		require.NoError(t, err)
		steps++
		assert.Equal(t, e.Done(), res.Dones[AllAgents])
	}
	assert.Equal(t, 3, steps)
	s := e.Summary()
	assert.True(t, s.Success)
	assert.Equal(t, StatusWin, s.Outcomes["w1"])
	assert.Equal(t, StatusWin, s.Outcomes["w2"])
	a, err := e.Agent("w1")
	require.NoError(t, err)
	assert.Equal(t, a.Return(), s.Returns["w1"])
}

func TestInvalidActionLeavesNoPendingControl(t *testing.T) {
	e := newTestEnv(t, 10, -10000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	_, err = e.Step(map[string][]float64{"w1": {1, 1, 1}, "w2": {0}})
	require.Error(t, err)

	_, err = e.Step(nil)
	require.NoError(t, err)
	applied := e.Context().PlatformManager().Get("w1").AppliedAction()
	assert.Equal(t, []float64{0, 0, 0}, applied)
}
