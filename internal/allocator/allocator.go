// Package allocator selects a cost-ordered set of streamers and per-streamer
// play counts to meet a campaign's view target at minimum spend.
//
// The selection is a single-pass greedy over streamers ranked by cost per
// expected view. It matches observed marketplace behavior and is O(n log n),
// but it is a heuristic: an exact knapsack solution can differ at the margins
// for some budget/target combinations.
package allocator

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/streamlance/backend/config"
)

var (
	// ErrNoSupply is returned when no streamer is eligible for allocation.
	ErrNoSupply = errors.New("no eligible streamers")
	// ErrInvalidTarget is returned for a non-positive view target.
	ErrInvalidTarget = errors.New("target views must be positive")
)

// Candidate is an eligible streamer offered to the allocator. Charge is in
// integer minor currency units; candidates with non-positive views or charge
// are filtered out before ranking.
type Candidate struct {
	StreamerID   uuid.UUID
	AverageViews int64
	ChargeCents  int64
}

// Selection is one streamer's assignment in the result.
type Selection struct {
	StreamerID    uuid.UUID `json:"streamer_id"`
	Plays         int64     `json:"plays"`
	ExpectedViews int64     `json:"expected_views"`
	CostCents     int64     `json:"cost_cents"`
}

// Result is the allocation outcome. RemainingViews > 0 signals partial
// fulfillment, which is reportable, not an error.
type Result struct {
	Selections     []Selection `json:"selections"`
	TotalCostCents int64       `json:"total_cost_cents"`
	ViewsAchieved  int64       `json:"views_achieved"`
	RemainingViews int64       `json:"remaining_views"`
}

// Allocator holds the play-cap tuning. Both caps come from configuration
// rather than being hard-coded.
type Allocator struct {
	playFactor int64
	maxPlays   int64
}

// New creates an allocator with the given tuning.
func New(cfg config.AllocatorConfig) *Allocator {
	playFactor := cfg.PlayFactor
	if playFactor <= 0 {
		playFactor = 3
	}
	maxPlays := cfg.MaxPlaysPerStreamer
	if maxPlays <= 0 {
		maxPlays = 5
	}
	return &Allocator{playFactor: playFactor, maxPlays: maxPlays}
}

// SelectForTargetViews assigns plays across candidates to reach targetViews,
// cheapest expected views first. budgetCents, when non-nil, caps total spend.
// All arithmetic stays in integer minor units; efficiency comparison is done
// by cross-multiplication so float drift can never reorder candidates.
func (a *Allocator) SelectForTargetViews(candidates []Candidate, targetViews int64, budgetCents *int64) (*Result, error) {
	if targetViews <= 0 {
		return nil, ErrInvalidTarget
	}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.AverageViews > 0 && c.ChargeCents > 0 {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoSupply
	}

	// Rank by charge/averageViews ascending; stable streamer-ID tie-break
	// keeps identical inputs producing identical selections.
	sort.Slice(eligible, func(i, j int) bool {
		left := eligible[i].ChargeCents * eligible[j].AverageViews
		right := eligible[j].ChargeCents * eligible[i].AverageViews
		if left != right {
			return left < right
		}
		return eligible[i].StreamerID.String() < eligible[j].StreamerID.String()
	})

	result := &Result{}
	remaining := targetViews
	for _, c := range eligible {
		if remaining <= 0 {
			break
		}
		if budgetCents != nil && result.TotalCostCents >= *budgetCents {
			break
		}

		// Bound how many views one streamer absorbs per round.
		want := remaining
		if roundCap := c.AverageViews * a.playFactor; want > roundCap {
			want = roundCap
		}
		plays := ceilDiv(want, c.AverageViews)
		if plays > a.maxPlays {
			plays = a.maxPlays
		}
		if budgetCents != nil {
			affordable := (*budgetCents - result.TotalCostCents) / c.ChargeCents
			if plays > affordable {
				plays = affordable
			}
		}
		if plays <= 0 {
			continue
		}

		expected := plays * c.AverageViews
		cost := plays * c.ChargeCents
		result.Selections = append(result.Selections, Selection{
			StreamerID:    c.StreamerID,
			Plays:         plays,
			ExpectedViews: expected,
			CostCents:     cost,
		})
		result.TotalCostCents += cost
		remaining -= expected
	}

	if remaining < 0 {
		remaining = 0
	}
	result.RemainingViews = remaining
	result.ViewsAchieved = targetViews - remaining
	return result, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
