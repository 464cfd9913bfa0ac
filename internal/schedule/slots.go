package schedule

import (
	"time"

	"github.com/streamlance/backend/internal/models"
)

// SlotGranularity is the bucket size used for the availability display.
const SlotGranularity = 15 * time.Minute

// Slot is one display bucket inside a streamer's availability window. The
// view is advisory: a slot shown available can still lose a race to a
// concurrent booking, which the transactional booking path resolves.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Overlaps reports symmetric interval intersection between [aStart, aEnd) and
// [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HourBucket aligns t to its UTC hour boundary. Capacity hours are UTC
// buckets everywhere, including the SQL side; local-zone hours (half-hour
// offsets in particular) would otherwise key different buckets in Go and in
// Postgres.
func HourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// alignUp rounds t up to the next granularity boundary.
func alignUp(t time.Time, granularity time.Duration) time.Time {
	aligned := t.Truncate(granularity)
	if aligned.Before(t) {
		aligned = aligned.Add(granularity)
	}
	return aligned
}

// BuildDaySlots enumerates 15-minute buckets across the windows covering one
// calendar day. hourCounts holds already-booked plays per hour bucket, keyed
// by the bucket's Unix time; a slot is available while its hour is under the
// window's cap.
func BuildDaySlots(windows []models.ScheduleWindow, hourCounts map[int64]int, day time.Time) []Slot {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var slots []Slot
	for _, w := range windows {
		start, end := w.StartTime, w.EndTime
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		for cur := alignUp(start, SlotGranularity); !cur.Add(SlotGranularity).After(end); cur = cur.Add(SlotGranularity) {
			booked := hourCounts[HourBucket(cur).Unix()]
			slots = append(slots, Slot{
				Start:     cur,
				End:       cur.Add(SlotGranularity),
				Available: booked < w.MaxAdsPerHour,
			})
		}
	}
	return slots
}
