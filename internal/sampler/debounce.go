package sampler

import (
	"sync"
	"time"
)

// DefaultDebounce is how long hotspot changes are coalesced before a
// recomputation fires. Dragging emits moves far faster than profiles need to
// be refreshed.
const DefaultDebounce = 100 * time.Millisecond

// Debouncer coalesces rapid recomputation requests per hotspot id. The
// callback runs on a timer goroutine once the id has been quiet for the
// configured delay; callers guard against stale results themselves (the
// hotspot may have moved or been removed by the time it fires).
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[int]*time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay:  delay,
		timers: make(map[int]*time.Timer),
	}
}

// Trigger schedules fn for the id, replacing any pending schedule.
func (d *Debouncer) Trigger(id int, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[id]; ok {
		t.Stop()
	}
	d.timers[id] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, id)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending schedule for the id.
func (d *Debouncer) Cancel(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
}

// CancelAll drops every pending schedule. Called on reset so no recomputation
// from the previous image fires afterwards.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

// Pending reports how many ids have a scheduled recomputation.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
