package envserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
	"google.golang.org/protobuf/types/known/structpb"
)

const testConfig = `
experiment: {name: serve_test, seed: 7}
control:
  step: {total: 3, interval: 1}
simulator: {type: dubins3d}
platforms:
  - name: lead
    init: {position: [0, 0, 0], heading: 0, v: 200}
    control: [0, 0, 0]
  - name: wingman
    init: {reference: lead, radius: [2000, 3000], bearing: [-1, 1], v: 250}
agents:
  - name: wingman
    platform: wingman
    normalize_actions: true
    rejoin: {lead: lead, radius: 500, offset: [-1000, 0, 0]}
    glues:
      - {type: relative_position, params: {target: rejoin, normalization: 1000}}
      - {type: own_speed, params: {normalization: 400}}
    rewards:
      - {type: rejoin_distance_change, params: {scale: 0.001}}
    dones:
      - {type: max_distance, params: {max_distance: 40000}}
`

type testClient struct {
	reset, step, spaces, now *connect.Client[structpb.Struct, structpb.Struct]
}

func newTestServer(t *testing.T) *testClient {
	c, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	store, err := output.Open(context.Background(), config.Output{}, "serve_test")
	require.NoError(t, err)
	s, err := NewServer(rc, store, "test")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle(s.Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := func(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
		return connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure)
	}
	return &testClient{
		reset:  client(ResetProcedure),
		step:   client(StepProcedure),
		spaces: client(SpacesProcedure),
		now:    client(NowProcedure),
	}
}

func call(t *testing.T, c *connect.Client[structpb.Struct, structpb.Struct], m map[string]interface{}) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(m)
	require.NoError(t, err)
	res, err := c.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestStepBeforeReset(t *testing.T) {
	c := newTestServer(t)
	_, err := call(t, c.step, map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestSpaces(t *testing.T) {
	c := newTestServer(t)
	res, err := call(t, c.spaces, nil)
	require.NoError(t, err)
	agents := res.AsMap()["agents"].(map[string]interface{})
	w := agents["wingman"].(map[string]interface{})
	assert.Equal(t, "wingman", w["policy"])
	assert.Len(t, w["observation"], 2)
	action := w["action"].(map[string]interface{})
	assert.Equal(t, []interface{}{-1.0, -1.0, -1.0}, action["low"])
	plugins := res.AsMap()["plugins"].(map[string]interface{})
	assert.Contains(t, plugins["glues"], "relative_position")
	assert.Contains(t, plugins["shared_dones"], "all_rejoined")
}

func TestEpisode(t *testing.T) {
	c := newTestServer(t)
	res, err := call(t, c.reset, nil)
	require.NoError(t, err)
	m := res.AsMap()
	assert.Equal(t, "7", m["seed"])
	obs := m["observations"].(map[string]interface{})["wingman"].([]interface{})
	assert.Len(t, obs, 4)

	// 种子相同时初始观测相同
	again, err := call(t, c.reset, map[string]interface{}{"seed": 7})
	require.NoError(t, err)
	assert.Equal(t, obs, again.AsMap()["observations"].(map[string]interface{})["wingman"])

	for i := 0; i < 3; i++ {
		res, err := call(t, c.step, map[string]interface{}{
			"actions": map[string]interface{}{"wingman": []interface{}{0.0, 0.0, 1.0}},
		})
		require.NoError(t, err)
		m := res.AsMap()
		assert.Contains(t, m["rewards"], "wingman")
		assert.Contains(t, m["infos"], "wingman")
		dones := m["dones"].(map[string]interface{})
		assert.Equal(t, i == 2, dones["__all__"])
	}

	now, err := call(t, c.now, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, now.AsMap()["t"])
	assert.Equal(t, true, now.AsMap()["done"])

	_, err = call(t, c.step, map[string]interface{}{})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestInvalidRequests(t *testing.T) {
	c := newTestServer(t)
	_, err := call(t, c.reset, map[string]interface{}{"seed": -1})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	_, err = call(t, c.reset, map[string]interface{}{"seed": 1.5})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	_, err = call(t, c.reset, map[string]interface{}{"seed": 1e17})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	_, err = call(t, c.reset, map[string]interface{}{"seed": "x"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = call(t, c.reset, nil)
	require.NoError(t, err)
	for _, actions := range []interface{}{
		"bad",
		map[string]interface{}{"wingman": 1.0},
		map[string]interface{}{"wingman": []interface{}{"x", 0.0, 0.0}},
		map[string]interface{}{"wingman": []interface{}{0.0}},
		map[string]interface{}{"nobody": []interface{}{0.0, 0.0, 0.0}},
	} {
		_, err := call(t, c.step, map[string]interface{}{"actions": actions})
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err), "%v", actions)
	}
}

func TestLargeSeedRoundTrip(t *testing.T) {
	c := newTestServer(t)
	const seed = "18446744073709551615"
	res, err := call(t, c.reset, map[string]interface{}{"seed": seed})
	require.NoError(t, err)
	m := res.AsMap()
	assert.Equal(t, seed, m["seed"])

	again, err := call(t, c.reset, map[string]interface{}{"seed": m["seed"]})
	require.NoError(t, err)
	assert.Equal(t, m["observations"], again.AsMap()["observations"])
}
