// Package pricing maps a streamer's concurrent viewer count (CCV) to a CPM
// tier and derives per-play cost and revenue split. Pure lookup, no state.
package pricing

import "errors"

// ErrNegativeViewers is returned when a viewer count below zero is supplied.
var ErrNegativeViewers = errors.New("viewer count must not be negative")

// Revenue split between streamer and platform, in percent. Fixed business
// constant, not configuration.
const (
	StreamerSharePercent = 70
	PlatformSharePercent = 30
)

// Tier is one pricing band over a contiguous CCV range. CPMCents is the cost
// per thousand impressions in minor currency units. MaxViewers == 0 marks the
// open-ended top tier.
type Tier struct {
	MinViewers         int64 `json:"min_viewers"`
	MaxViewers         int64 `json:"max_viewers"`
	CPMCents           int64 `json:"cpm_cents"`
	MaxAdsPerStream    int   `json:"max_ads_per_stream"`
	MinIntervalMinutes int   `json:"min_interval_minutes"`
}

// tiers are sorted ascending and contiguous. Lookup falls back to the top
// tier for counts above every range.
var tiers = []Tier{
	{MinViewers: 0, MaxViewers: 999, CPMCents: 200, MaxAdsPerStream: 4, MinIntervalMinutes: 20},
	{MinViewers: 1000, MaxViewers: 4999, CPMCents: 350, MaxAdsPerStream: 6, MinIntervalMinutes: 15},
	{MinViewers: 5000, MaxViewers: 9999, CPMCents: 500, MaxAdsPerStream: 8, MinIntervalMinutes: 10},
	{MinViewers: 10000, MaxViewers: 49999, CPMCents: 650, MaxAdsPerStream: 10, MinIntervalMinutes: 8},
	{MinViewers: 50000, MaxViewers: 0, CPMCents: 800, MaxAdsPerStream: 12, MinIntervalMinutes: 5},
}

// TierFor returns the pricing tier containing the given viewer count.
func TierFor(viewers int64) (Tier, error) {
	if viewers < 0 {
		return Tier{}, ErrNegativeViewers
	}
	for _, t := range tiers {
		if t.MaxViewers == 0 || viewers <= t.MaxViewers {
			return t, nil
		}
	}
	return tiers[len(tiers)-1], nil
}

// CostForSinglePlay returns the cost of one ad play at the given viewer
// count, rounded half-up to the nearest minor unit.
func CostForSinglePlay(viewers int64) (int64, error) {
	t, err := TierFor(viewers)
	if err != nil {
		return 0, err
	}
	return (viewers*t.CPMCents + 500) / 1000, nil
}

// IncomeForStream returns the streamer and platform share for adsPlayed plays
// at the given viewer count. The platform share takes the rounding remainder
// so the two always sum to the total.
func IncomeForStream(viewers int64, adsPlayed int) (streamerCents, platformCents int64, err error) {
	if adsPlayed < 0 {
		return 0, 0, errors.New("ads played must not be negative")
	}
	perPlay, err := CostForSinglePlay(viewers)
	if err != nil {
		return 0, 0, err
	}
	total := perPlay * int64(adsPlayed)
	streamerCents = total * StreamerSharePercent / 100
	platformCents = total - streamerCents
	return streamerCents, platformCents, nil
}
