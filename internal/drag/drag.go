// Package drag turns pointer movement into hotspot position updates. While a
// drag is in progress it only emits preview positions; the final position is
// committed to the hotspot store by the caller on End, so the store is not
// rewritten on every pointer move.
package drag

import (
	"sync"
	"time"

	"github.com/arjun/pinpoint/internal/geometry"
)

// DefaultClickGrace is how long after a drop click-to-add stays suppressed,
// so the mouseup ending a drag is never read as a new-hotspot click.
const DefaultClickGrace = 300 * time.Millisecond

// Controller tracks one drag at a time.
type Controller struct {
	mu sync.Mutex

	active    bool
	hotspotID int
	start     geometry.Point // pointer position at Begin, pixels
	origin    geometry.Point // hotspot position at Begin, percent

	droppedAt time.Time
	grace     time.Duration
	now       func() time.Time
}

func NewController() *Controller {
	return &Controller{
		grace: DefaultClickGrace,
		now:   time.Now,
	}
}

// Begin starts dragging a hotspot. pointer is in pixel space, origin is the
// hotspot's current percent position.
func (c *Controller) Begin(hotspotID int, pointer, origin geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.hotspotID = hotspotID
	c.start = pointer
	c.origin = origin
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// HotspotID returns the id being dragged.
func (c *Controller) HotspotID() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hotspotID, c.active
}

// Move converts the current pointer position into a preview percent position.
// Bounds are re-measured by the caller on every move because the container
// can resize mid-drag. Returns false when no drag is active or the bounds are
// unusable.
func (c *Controller) Move(pointer geometry.Point, bounds geometry.Bounds) (geometry.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || !bounds.Valid() {
		return geometry.Point{}, false
	}
	return c.position(pointer, bounds), true
}

// End finishes the drag and returns the hotspot id and final clamped percent
// position for the caller to commit. It also arms the click-suppression
// window.
func (c *Controller) End(pointer geometry.Point, bounds geometry.Bounds) (int, geometry.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0, geometry.Point{}, false
	}

	c.active = false
	c.droppedAt = c.now()

	if !bounds.Valid() {
		// container vanished mid-drag; keep the original position
		return c.hotspotID, c.origin, true
	}
	return c.hotspotID, c.position(pointer, bounds), true
}

// Cancel abandons the drag without committing or arming click suppression.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// ClickSuppressed reports whether click-to-add should be ignored right now:
// either a drag is in flight or a drop happened within the grace window.
func (c *Controller) ClickSuppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return true
	}
	return !c.droppedAt.IsZero() && c.now().Sub(c.droppedAt) < c.grace
}

// position applies the pixel delta since Begin to the origin, in percent.
func (c *Controller) position(pointer geometry.Point, bounds geometry.Bounds) geometry.Point {
	dxPct := (pointer.X - c.start.X) / bounds.Width * 100
	dyPct := (pointer.Y - c.start.Y) / bounds.Height * 100
	return geometry.ClampPercent(geometry.Point{
		X: c.origin.X + dxPct,
		Y: c.origin.Y + dyPct,
	})
}
