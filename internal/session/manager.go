// Package session tracks the edit-phase state machine: which hotspots belong
// to the current phase, how many sessions and processed batches an image has
// used, and the processed-image history that supports going back.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arjun/pinpoint/internal/policy"
)

var (
	ErrNoActiveSession     = errors.New("no active session")
	ErrSessionActive       = errors.New("a session is already active")
	ErrLimitReached        = errors.New("limit reached")
	ErrNoHistory           = errors.New("no history to revert to")
	ErrInvalidHistoryIndex = errors.New("history index out of range")
)

// Manager owns the session lifecycle for one image. It holds hotspot ids
// only; hotspot data lives in the hotspot store.
type Manager struct {
	limits       policy.Limits
	current      *Session
	sessionsUsed int
	editCount    int
	history      []ProcessedImage
	historyIndex int
}

func NewManager(limits policy.Limits) *Manager {
	return &Manager{limits: limits}
}

func (m *Manager) Limits() policy.Limits {
	return m.limits
}

func (m *Manager) Current() *Session {
	return m.current
}

func (m *Manager) HasActiveSession() bool {
	return m.current != nil && m.current.Status == StatusActive
}

func (m *Manager) SessionsUsed() int {
	return m.sessionsUsed
}

func (m *Manager) EditCount() int {
	return m.editCount
}

// PhaseCount returns how many hotspots the current phase holds.
func (m *Manager) PhaseCount() int {
	if m.current == nil {
		return 0
	}
	return len(m.current.PhaseHotspotIDs)
}

// TotalCount returns how many hotspots were ever added during the session.
func (m *Manager) TotalCount() int {
	if m.current == nil {
		return 0
	}
	return len(m.current.TotalHotspotIDs)
}

// CanAddHotspot runs the limit policy against the current counters.
func (m *Manager) CanAddHotspot() policy.Decision {
	return m.limits.CanAddHotspot(policy.AddInput{
		EditCount:        m.editCount,
		PhaseHotspots:    m.PhaseCount(),
		TotalHotspots:    m.TotalCount(),
		HasActiveSession: m.HasActiveSession(),
	})
}

// SetBaseImage installs the pristine image as history entry zero. Any prior
// history for this image is discarded.
func (m *Manager) SetBaseImage(img ProcessedImage) {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	m.history = []ProcessedImage{img}
	m.historyIndex = 0
}

// CreateAndAddHotspot creates a session and records its first hotspot in one
// step, so a session can never exist with zero hotspots and a hotspot can
// never be orphaned without a session.
func (m *Manager) CreateAndAddHotspot(hotspotID int) error {
	if m.HasActiveSession() {
		return ErrSessionActive
	}
	if d := m.limits.CanStartSession(m.sessionsUsed); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrLimitReached, d.Reason)
	}
	if d := m.CanAddHotspot(); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrLimitReached, d.Reason)
	}

	now := time.Now()
	m.current = &Session{
		ID:              uuid.New().String(),
		Status:          StatusActive,
		PhaseHotspotIDs: []int{hotspotID},
		TotalHotspotIDs: []int{hotspotID},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.sessionsUsed++
	return nil
}

// AddHotspot records a hotspot in the active session. The limit policy is
// re-checked here so the session invariants hold even if the caller skipped
// the gate.
func (m *Manager) AddHotspot(hotspotID int) error {
	if !m.HasActiveSession() {
		return ErrNoActiveSession
	}
	if d := m.CanAddHotspot(); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrLimitReached, d.Reason)
	}

	m.current.PhaseHotspotIDs = append(m.current.PhaseHotspotIDs, hotspotID)
	m.current.TotalHotspotIDs = append(m.current.TotalHotspotIDs, hotspotID)
	m.current.UpdatedAt = time.Now()
	return nil
}

// RemoveHotspot drops a hotspot from the current phase. The total list is
// untouched: additions count against the session budget even when undone.
// The session stays active when its last hotspot is removed; it only ends
// through Reset or by exhausting its budgets on CompletePhase.
func (m *Manager) RemoveHotspot(hotspotID int) error {
	if !m.HasActiveSession() {
		return ErrNoActiveSession
	}
	ids := m.current.PhaseHotspotIDs
	for i, id := range ids {
		if id == hotspotID {
			m.current.PhaseHotspotIDs = append(ids[:i], ids[i+1:]...)
			m.current.UpdatedAt = time.Now()
			return nil
		}
	}
	// not part of the current phase; nothing to undo
	return nil
}

// CompletePhase records a successfully processed batch: the edit count goes
// up, the result becomes the new head of history, and the phase empties. The
// session completes when either the edit budget or the whole-session hotspot
// budget is exhausted; otherwise it stays active for another phase.
func (m *Manager) CompletePhase(img ProcessedImage) error {
	if !m.HasActiveSession() {
		return ErrNoActiveSession
	}

	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}

	m.editCount++
	// branching from an earlier history entry discards the redo tail
	m.history = append(m.history[:m.historyIndex+1], img)
	m.historyIndex = len(m.history) - 1

	m.current.PhaseHotspotIDs = []int{}
	m.current.UpdatedAt = time.Now()
	if m.editCount >= m.limits.MaxEditsPerImage ||
		len(m.current.TotalHotspotIDs) >= m.limits.MaxTotalHotspotsPerSession {
		m.current.Status = StatusCompleted
	}
	return nil
}

// History returns the processed-image history, oldest first. Index zero is
// the pristine base image.
func (m *Manager) History() []ProcessedImage {
	out := make([]ProcessedImage, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) HistoryIndex() int {
	return m.historyIndex
}

// CurrentImage returns the history entry the user is looking at.
func (m *Manager) CurrentImage() (ProcessedImage, bool) {
	if m.historyIndex < 0 || m.historyIndex >= len(m.history) {
		return ProcessedImage{}, false
	}
	return m.history[m.historyIndex], true
}

// RevertToHistory makes an earlier processed result (or the pristine base at
// index zero) the working image and reopens the session for a new phase.
func (m *Manager) RevertToHistory(index int) (ProcessedImage, error) {
	if len(m.history) == 0 {
		return ProcessedImage{}, ErrNoHistory
	}
	if index < 0 || index >= len(m.history) {
		return ProcessedImage{}, fmt.Errorf("%w: %d (history has %d entries)", ErrInvalidHistoryIndex, index, len(m.history))
	}

	m.historyIndex = index
	if m.current != nil {
		m.current.Status = StatusActive
		m.current.PhaseHotspotIDs = []int{}
		m.current.UpdatedAt = time.Now()
	}
	return m.history[index], nil
}

// Reset is start-over: the session, edit count and history all go, leaving
// only the pristine base image. The sessions-used counter survives because
// the session cap applies to the whole browsing session, not one image pass.
func (m *Manager) Reset() {
	m.current = nil
	m.editCount = 0
	if len(m.history) > 0 {
		m.history = m.history[:1]
	}
	m.historyIndex = 0
}

// Snapshot captures the persistable state. Hotspot data is merged in by the
// caller, which owns the hotspot store.
func (m *Manager) Snapshot() *Snapshot {
	snap := &Snapshot{
		SessionsUsed: m.sessionsUsed,
		EditCount:    m.editCount,
		History:      m.History(),
		HistoryIndex: m.historyIndex,
	}
	snap.Session = m.current.Clone()
	return snap
}

// Restore rehydrates the manager from a persisted snapshot.
func (m *Manager) Restore(snap *Snapshot) {
	m.current = snap.Session.Clone()
	m.sessionsUsed = snap.SessionsUsed
	m.editCount = snap.EditCount
	m.history = append([]ProcessedImage{}, snap.History...)
	m.historyIndex = snap.HistoryIndex
	if m.historyIndex >= len(m.history) {
		m.historyIndex = len(m.history) - 1
	}
	if m.historyIndex < 0 {
		m.historyIndex = 0
	}
}
