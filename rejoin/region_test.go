package rejoin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionCenterFollowsLeadHeading(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	_, err := e.Reset(1)
	require.NoError(t, err)
	pm := e.Context().PlatformManager()
	lead := pm.Get("lead")

	c := RegionCenter(lead, []float64{-1000, 0, 0})
	assert.InDelta(t, -1000, c.X, 1e-9)
	assert.InDelta(t, 0, c.Y, 1e-9)

	// 偏移不足3维时补0
	c = RegionCenter(lead, []float64{-1000, 1000})
	assert.InDelta(t, 1000, c.Y, 1e-9)
	assert.InDelta(t, 0, c.Z, 1e-9)

	inside, dist := InRejoin(pm.Get("w1"), lead, 500, []float64{-1000, 0, 0})
	assert.True(t, inside)
	assert.InDelta(t, 0, dist, 1e-9)

	inside, dist = InRejoin(pm.Get("w2"), lead, 500, []float64{-1000, 0, 0})
	assert.False(t, inside)
	assert.InDelta(t, 5000, dist, 1e-9)

	// 边界上视为在区域内
	inside, _ = InRejoin(pm.Get("w2"), lead, 5000, []float64{-1000, 0, 0})
	assert.True(t, inside)
}

func TestRegionCenterRotated(t *testing.T) {
	e := newTestEnv(t, 10, -1000, 0)
	e.rc.All.Platforms[0].Init.Heading.Low = math.Pi / 2
	e.rc.All.Platforms[0].Init.Heading.High = math.Pi / 2
	_, err := e.Reset(1)
	require.NoError(t, err)
	lead := e.Context().PlatformManager().Get("lead")
	c := RegionCenter(lead, []float64{-1000, 0, 0})
	assert.InDelta(t, 0, c.X, 1e-9)
	assert.InDelta(t, -1000, c.Y, 1e-9)
}

func TestEpisodeStateOutcome(t *testing.T) {
	s := make(EpisodeState)
	assert.Equal(t, DoneStatus(""), s.Outcome("a"))
	s.set("a", "rejoin_success", StatusWin)
	assert.Equal(t, StatusWin, s.Outcome("a"))
	s.set("a", "crash", StatusLose)
	assert.Equal(t, StatusLose, s.Outcome("a"))
	assert.True(t, s.Has("a", StatusWin))
	assert.False(t, s.Has("b", StatusWin))
}
