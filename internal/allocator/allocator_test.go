package allocator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlance/backend/config"
)

func newTestAllocator() *Allocator {
	return New(config.AllocatorConfig{PlayFactor: 3, MaxPlaysPerStreamer: 5})
}

func TestSingleStreamerTargetMet(t *testing.T) {
	a := newTestAllocator()
	sid := uuid.New()
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: sid, AverageViews: 1000, ChargeCents: 500},
	}, 2500, nil)
	require.NoError(t, err)

	// ceil(min(2500, 3000)/1000) = 3 plays at 500 each.
	require.Len(t, res.Selections, 1)
	assert.Equal(t, int64(3), res.Selections[0].Plays)
	assert.Equal(t, int64(3000), res.Selections[0].ExpectedViews)
	assert.Equal(t, int64(1500), res.TotalCostCents)
	assert.Equal(t, int64(0), res.RemainingViews)
	assert.Equal(t, int64(2500), res.ViewsAchieved)
}

func TestCheapestViewsSelectedFirst(t *testing.T) {
	a := newTestAllocator()
	streamerA := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	streamerB := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: streamerA, AverageViews: 100, ChargeCents: 60},  // 0.6 per view
		{StreamerID: streamerB, AverageViews: 200, ChargeCents: 100}, // 0.5 per view
	}, 150, nil)
	require.NoError(t, err)

	// B is cheaper per view and one play already covers the target.
	require.Len(t, res.Selections, 1)
	assert.Equal(t, streamerB, res.Selections[0].StreamerID)
	assert.Equal(t, int64(1), res.Selections[0].Plays)
	assert.Equal(t, int64(100), res.TotalCostCents)
	assert.Equal(t, int64(0), res.RemainingViews)
}

func TestPartialFulfillmentIsReportedNotAnError(t *testing.T) {
	a := newTestAllocator()
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: uuid.New(), AverageViews: 100, ChargeCents: 50},
	}, 10_000, nil)
	require.NoError(t, err)

	// Single streamer capped at 3 plays per round: 300 views achieved.
	require.Len(t, res.Selections, 1)
	assert.Equal(t, int64(3), res.Selections[0].Plays)
	assert.Equal(t, int64(300), res.ViewsAchieved)
	assert.Equal(t, int64(9700), res.RemainingViews)
}

func TestBudgetCeilingClampsPlays(t *testing.T) {
	a := newTestAllocator()
	budget := int64(120)
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: uuid.New(), AverageViews: 1000, ChargeCents: 50},
	}, 3000, &budget)
	require.NoError(t, err)

	// 3 plays wanted but only floor(120/50) = 2 affordable.
	require.Len(t, res.Selections, 1)
	assert.Equal(t, int64(2), res.Selections[0].Plays)
	assert.Equal(t, int64(100), res.TotalCostCents)
	assert.Equal(t, int64(1000), res.RemainingViews)
}

func TestBudgetTooSmallForAnyPlay(t *testing.T) {
	a := newTestAllocator()
	budget := int64(30)
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: uuid.New(), AverageViews: 1000, ChargeCents: 50},
	}, 3000, &budget)
	require.NoError(t, err)
	assert.Empty(t, res.Selections)
	assert.Zero(t, res.TotalCostCents)
	assert.Equal(t, int64(3000), res.RemainingViews)
}

func TestMaxPlaysPerStreamerCap(t *testing.T) {
	a := New(config.AllocatorConfig{PlayFactor: 10, MaxPlaysPerStreamer: 5})
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: uuid.New(), AverageViews: 100, ChargeCents: 10},
	}, 1000, nil)
	require.NoError(t, err)

	// PlayFactor would allow 10 plays; the hard cap limits to 5.
	require.Len(t, res.Selections, 1)
	assert.Equal(t, int64(5), res.Selections[0].Plays)
}

func TestNoSupply(t *testing.T) {
	a := newTestAllocator()

	_, err := a.SelectForTargetViews(nil, 100, nil)
	assert.ErrorIs(t, err, ErrNoSupply)

	// Candidates without positive views or charge are not supply.
	_, err = a.SelectForTargetViews([]Candidate{
		{StreamerID: uuid.New(), AverageViews: 0, ChargeCents: 100},
		{StreamerID: uuid.New(), AverageViews: 100, ChargeCents: 0},
	}, 100, nil)
	assert.ErrorIs(t, err, ErrNoSupply)
}

func TestInvalidTargetRejectedBeforeComputation(t *testing.T) {
	a := newTestAllocator()
	for _, target := range []int64{0, -5} {
		_, err := a.SelectForTargetViews([]Candidate{
			{StreamerID: uuid.New(), AverageViews: 100, ChargeCents: 50},
		}, target, nil)
		assert.ErrorIs(t, err, ErrInvalidTarget)
	}
}

func TestDeterministicUnderInputReordering(t *testing.T) {
	a := newTestAllocator()
	candidates := []Candidate{
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), AverageViews: 500, ChargeCents: 250},
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), AverageViews: 1000, ChargeCents: 400},
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), AverageViews: 800, ChargeCents: 320},
	}
	reversed := []Candidate{candidates[2], candidates[1], candidates[0]}

	first, err := a.SelectForTargetViews(candidates, 5000, nil)
	require.NoError(t, err)
	second, err := a.SelectForTargetViews(reversed, 5000, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEqualEfficiencyTieBreaksByStreamerID(t *testing.T) {
	a := newTestAllocator()
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	// Same cost per view expressed with different numbers: 100/200 == 150/300.
	res, err := a.SelectForTargetViews([]Candidate{
		{StreamerID: high, AverageViews: 300, ChargeCents: 150},
		{StreamerID: low, AverageViews: 200, ChargeCents: 100},
	}, 10_000, nil)
	require.NoError(t, err)

	require.Len(t, res.Selections, 2)
	assert.Equal(t, low, res.Selections[0].StreamerID)
	assert.Equal(t, high, res.Selections[1].StreamerID)
}

func TestMonotonicityInTarget(t *testing.T) {
	a := newTestAllocator()
	candidates := []Candidate{
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), AverageViews: 1000, ChargeCents: 400},
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), AverageViews: 500, ChargeCents: 300},
		{StreamerID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), AverageViews: 2000, ChargeCents: 900},
	}

	var prevCost int64
	var prevSelected int
	for target := int64(500); target <= 10_000; target += 500 {
		res, err := a.SelectForTargetViews(candidates, target, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.TotalCostCents, prevCost, "target %d", target)
		assert.GreaterOrEqual(t, len(res.Selections), prevSelected, "target %d", target)
		prevCost = res.TotalCostCents
		prevSelected = len(res.Selections)
	}
}

func TestIntegerArithmeticNoDrift(t *testing.T) {
	// Many streamers whose cost-per-view is a non-terminating binary fraction
	// (10 cents / 3 views). Totals must be the exact integer sum of the
	// per-selection integer costs, with no accumulated float error.
	a := New(config.AllocatorConfig{PlayFactor: 1, MaxPlaysPerStreamer: 5})
	var candidates []Candidate
	for i := 0; i < 1000; i++ {
		candidates = append(candidates, Candidate{StreamerID: uuid.New(), AverageViews: 3, ChargeCents: 10})
	}

	res, err := a.SelectForTargetViews(candidates, 3000, nil)
	require.NoError(t, err)

	require.Len(t, res.Selections, 1000)
	var sum int64
	for _, s := range res.Selections {
		assert.Equal(t, int64(1), s.Plays)
		assert.Equal(t, int64(10), s.CostCents)
		sum += s.CostCents
	}
	assert.Equal(t, sum, res.TotalCostCents)
	assert.Equal(t, int64(10_000), res.TotalCostCents)
	assert.Equal(t, int64(3000), res.ViewsAchieved)
	assert.Equal(t, int64(0), res.RemainingViews)
}
