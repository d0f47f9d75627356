// Package hotspot owns the edit points placed on the working image. The
// store is the single owner of hotspot data; the session manager only keeps
// id references into it.
package hotspot

import (
	"errors"
	"fmt"

	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/pkg/models"
)

var (
	ErrInvalidBounds     = errors.New("container bounds must be positive")
	ErrTooCloseToEdge    = errors.New("too close to the image edge")
	ErrTooCloseToHotspot = errors.New("too close to an existing edit point")
)

const (
	// EdgeMarginPercent is the dead zone along each image edge where
	// hotspots cannot be placed; markers there would be clipped.
	EdgeMarginPercent = 2.0

	// MinSpacingPercent is the minimum percent-space distance between two
	// hotspots so their markers stay individually clickable.
	MinSpacingPercent = 8.0
)

// Store holds the hotspots of the active edit phase. floor is the highest id
// carried over from already-processed phases, so ids stay unique across the
// whole session.
type Store struct {
	hotspots []models.Hotspot
	floor    int
}

func NewStore() *Store {
	return &Store{}
}

// NextID returns the id the next added hotspot will get: one past the highest
// live id, or 1 when empty. Ids are never renumbered on removal, so session
// bookkeeping keyed by id stays valid.
func (s *Store) NextID() int {
	max := s.floor
	for i := range s.hotspots {
		if s.hotspots[i].ID > max {
			max = s.hotspots[i].ID
		}
	}
	return max + 1
}

// AddAt converts a pixel click position into percent coordinates and places a
// hotspot there. The caller runs the limit policy before committing.
func (s *Store) AddAt(click geometry.Point, bounds geometry.Bounds) (models.Hotspot, error) {
	if !bounds.Valid() {
		return models.Hotspot{}, ErrInvalidBounds
	}
	return s.Add(geometry.Point{
		X: geometry.ToPercent(click.X, bounds.Width),
		Y: geometry.ToPercent(click.Y, bounds.Height),
	})
}

// Add places a hotspot at a percent-space position, rejecting placements in
// the edge dead zone or within MinSpacingPercent of an existing hotspot.
func (s *Store) Add(pos geometry.Point) (models.Hotspot, error) {
	pos = geometry.ClampPercent(pos)

	if pos.X < EdgeMarginPercent || pos.X > 100-EdgeMarginPercent ||
		pos.Y < EdgeMarginPercent || pos.Y > 100-EdgeMarginPercent {
		return models.Hotspot{}, fmt.Errorf("%w: position (%.2f%%, %.2f%%) is within %.0f%% of an edge",
			ErrTooCloseToEdge, pos.X, pos.Y, EdgeMarginPercent)
	}

	for i := range s.hotspots {
		other := geometry.Point{X: s.hotspots[i].X, Y: s.hotspots[i].Y}
		if d := geometry.Distance(pos, other); d < MinSpacingPercent {
			return models.Hotspot{}, fmt.Errorf("%w: %.2f%% from edit point %d (minimum %.0f%%)",
				ErrTooCloseToHotspot, d, s.hotspots[i].ID, MinSpacingPercent)
		}
	}

	h := models.Hotspot{
		ID:              s.NextID(),
		X:               pos.X,
		Y:               pos.Y,
		ReferenceImages: []models.ReferenceImage{},
	}
	s.hotspots = append(s.hotspots, h)
	return h, nil
}

// Remove deletes a hotspot. Removing an id that is already gone is a no-op.
func (s *Store) Remove(id int) {
	for i := range s.hotspots {
		if s.hotspots[i].ID == id {
			s.hotspots = append(s.hotspots[:i], s.hotspots[i+1:]...)
			return
		}
	}
}

func (s *Store) Get(id int) (models.Hotspot, bool) {
	for i := range s.hotspots {
		if s.hotspots[i].ID == id {
			return s.hotspots[i], true
		}
	}
	return models.Hotspot{}, false
}

func (s *Store) UpdatePrompt(id int, text string) error {
	h := s.find(id)
	if h == nil {
		return fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	h.Prompt = text
	return nil
}

func (s *Store) AttachReference(id int, ref models.ReferenceImage) error {
	h := s.find(id)
	if h == nil {
		return fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	// single-reference profile: attach replaces any existing reference
	h.ReferenceImages = []models.ReferenceImage{ref}
	return nil
}

// DetachReference clears the reference list. The list stays an empty slice,
// never nil, so encoded state keeps a uniform shape.
func (s *Store) DetachReference(id int) error {
	h := s.find(id)
	if h == nil {
		return fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	h.ReferenceImages = []models.ReferenceImage{}
	return nil
}

// Move writes a new position through, clamped to the percent square and
// rounded to two decimals.
func (s *Store) Move(id int, x, y float64) (models.Hotspot, error) {
	h := s.find(id)
	if h == nil {
		return models.Hotspot{}, fmt.Errorf("%w: id %d", models.ErrHotspotNotFound, id)
	}
	p := geometry.ClampPercent(geometry.Point{X: x, Y: y})
	h.X = p.X
	h.Y = p.Y
	return *h, nil
}

// List returns a copy of the hotspots in placement order.
func (s *Store) List() []models.Hotspot {
	out := make([]models.Hotspot, len(s.hotspots))
	copy(out, s.hotspots)
	return out
}

func (s *Store) Count() int {
	return len(s.hotspots)
}

// Clear drops all hotspots at a phase boundary. The id floor is raised first
// so ids issued in the next phase do not collide with processed ones.
func (s *Store) Clear() {
	s.floor = s.NextID() - 1
	s.hotspots = nil
}

// Reset drops all hotspots and the id floor; the next id is 1 again. Used on
// start-over when the whole edit history is discarded.
func (s *Store) Reset() {
	s.hotspots = nil
	s.floor = 0
}

// Replace swaps in a previously persisted hotspot list when resuming a
// session. floor is the highest id the session has ever issued, so ids from
// already-processed phases are not handed out again.
func (s *Store) Replace(hotspots []models.Hotspot, floor int) {
	s.floor = floor
	s.hotspots = make([]models.Hotspot, len(hotspots))
	copy(s.hotspots, hotspots)
	for i := range s.hotspots {
		if s.hotspots[i].ReferenceImages == nil {
			s.hotspots[i].ReferenceImages = []models.ReferenceImage{}
		}
	}
}

func (s *Store) find(id int) *models.Hotspot {
	for i := range s.hotspots {
		if s.hotspots[i].ID == id {
			return &s.hotspots[i]
		}
	}
	return nil
}
