package donations

import (
	"sync"
	"time"
)

// TimerRegistry tracks the cancellable playback-completion timer per queue
// item, so an explicit skip can stop a timer before it finalizes an item that
// was already removed.
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerRegistry creates an empty registry.
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn to run after d, keyed by item ID. Re-arming the same item
// replaces the previous timer.
func (r *TimerRegistry) Arm(itemID string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[itemID]; ok {
		old.Stop()
	}
	r.timers[itemID] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, itemID)
		r.mu.Unlock()
		fn()
	})
}

// Cancel stops the timer for itemID. Returns false when no timer was armed
// or it already fired.
func (r *TimerRegistry) Cancel(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[itemID]
	if !ok {
		return false
	}
	delete(r.timers, itemID)
	return t.Stop()
}

// Len returns the number of armed timers.
func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every armed timer. Used on shutdown.
func (r *TimerRegistry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
