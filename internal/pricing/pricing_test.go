package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForRanges(t *testing.T) {
	low, err := TierFor(0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), low.CPMCents)

	mid, err := TierFor(5000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), mid.CPMCents)
	assert.Equal(t, 8, mid.MaxAdsPerStream)

	boundary, err := TierFor(999)
	require.NoError(t, err)
	assert.Equal(t, int64(200), boundary.CPMCents)

	next, err := TierFor(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(350), next.CPMCents)
}

func TestTierForOpenEndedCeiling(t *testing.T) {
	top, err := TierFor(2_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(800), top.CPMCents)
	assert.Equal(t, 12, top.MaxAdsPerStream)
}

func TestTierForRejectsNegative(t *testing.T) {
	_, err := TierFor(-1)
	assert.ErrorIs(t, err, ErrNegativeViewers)

	_, err = CostForSinglePlay(-50)
	assert.ErrorIs(t, err, ErrNegativeViewers)
}

func TestCostForSinglePlay(t *testing.T) {
	// 1000 viewers in the 350-cents CPM tier: 1000 * 350 / 1000 = 350.
	cost, err := CostForSinglePlay(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(350), cost)

	// 750 viewers at 200 CPM: 750 * 200 / 1000 = 150 exactly.
	cost, err = CostForSinglePlay(750)
	require.NoError(t, err)
	assert.Equal(t, int64(150), cost)

	// Rounding half-up: 1233 * 350 = 431550 -> 431.55 -> 432.
	cost, err = CostForSinglePlay(1233)
	require.NoError(t, err)
	assert.Equal(t, int64(432), cost)
}

func TestIncomeForStreamSplit(t *testing.T) {
	streamer, platform, err := IncomeForStream(1000, 4)
	require.NoError(t, err)
	// 4 plays at 350 = 1400 total; 70/30 split.
	assert.Equal(t, int64(980), streamer)
	assert.Equal(t, int64(420), platform)
	assert.Equal(t, int64(1400), streamer+platform)
}

func TestIncomeForStreamRemainderGoesToPlatform(t *testing.T) {
	// 1233 viewers -> 432 per play; 432 * 1 = 432; 70% = 302.4 -> 302.
	streamer, platform, err := IncomeForStream(1233, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(302), streamer)
	assert.Equal(t, int64(130), platform)
	assert.Equal(t, int64(432), streamer+platform)
}

func TestIncomeForStreamZeroPlays(t *testing.T) {
	streamer, platform, err := IncomeForStream(5000, 0)
	require.NoError(t, err)
	assert.Zero(t, streamer)
	assert.Zero(t, platform)
}
