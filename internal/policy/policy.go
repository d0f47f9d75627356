// Package policy holds the pure limit-decision functions gating hotspot
// placement and batch processing. Nothing here mutates state; callers act on
// the returned decisions.
package policy

import "github.com/arjun/pinpoint/pkg/models"

// Default limits. All of them are configurable through Limits.
const (
	DefaultMaxEditsPerImage           = 3
	DefaultMaxHotspotsPerSession      = 2
	DefaultMaxTotalHotspotsPerSession = 6
	DefaultMaxSessions                = 3
)

// Rejection reasons surfaced verbatim to the UI layer.
const (
	ReasonEditLimit    = "edit limit reached"
	ReasonPhaseLimit   = "phase limit reached, process to continue"
	ReasonSessionLimit = "session limit reached"
	ReasonMaxSessions  = "maximum number of sessions reached"
	ReasonNoHotspots   = "place at least one edit point"
	ReasonNoPrompts    = "add descriptions to your edit points"
)

type Limits struct {
	MaxEditsPerImage           int `yaml:"max_edits_per_image"`
	MaxHotspotsPerSession      int `yaml:"max_hotspots_per_session"`
	MaxTotalHotspotsPerSession int `yaml:"max_total_hotspots_per_session"`
	MaxSessions                int `yaml:"max_sessions"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxEditsPerImage:           DefaultMaxEditsPerImage,
		MaxHotspotsPerSession:      DefaultMaxHotspotsPerSession,
		MaxTotalHotspotsPerSession: DefaultMaxTotalHotspotsPerSession,
		MaxSessions:                DefaultMaxSessions,
	}
}

// Decision is the outcome of a limit check. Reason is set only when the
// action is rejected.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func reject(reason string) Decision {
	return Decision{Reason: reason}
}

// AddInput captures the counters CanAddHotspot decides on.
type AddInput struct {
	EditCount        int
	PhaseHotspots    int
	TotalHotspots    int
	HasActiveSession bool
}

// CanAddHotspot decides whether another hotspot may be placed. The checks run
// in a fixed order: the per-image edit cap first, then the per-phase cap and
// the whole-session cap. Without an active session placement is always
// allowed (the caller must then create the session atomically with the first
// hotspot).
func (l Limits) CanAddHotspot(in AddInput) Decision {
	if in.EditCount >= l.MaxEditsPerImage {
		return reject(ReasonEditLimit)
	}
	if !in.HasActiveSession {
		return allow()
	}
	if in.PhaseHotspots >= l.MaxHotspotsPerSession {
		return reject(ReasonPhaseLimit)
	}
	if in.TotalHotspots >= l.MaxTotalHotspotsPerSession {
		return reject(ReasonSessionLimit)
	}
	return allow()
}

// CanStartSession decides whether a brand new session may begin.
func (l Limits) CanStartSession(sessionsUsed int) Decision {
	if sessionsUsed >= l.MaxSessions {
		return reject(ReasonMaxSessions)
	}
	return allow()
}

// ProcessDecision is the outcome of the submit gate. Valid holds the subset
// of hotspots that carry a non-empty trimmed prompt, in placement order.
type ProcessDecision struct {
	Allowed bool
	Reason  string
	Valid   []models.Hotspot
}

// CanProcessEdits decides whether the current hotspots may be submitted. It
// distinguishes "nothing placed" from "placed but undescribed" so the UI can
// label the submit control accordingly.
func (l Limits) CanProcessEdits(editCount int, hotspots []models.Hotspot) ProcessDecision {
	if editCount >= l.MaxEditsPerImage {
		return ProcessDecision{Reason: ReasonEditLimit}
	}
	if len(hotspots) == 0 {
		return ProcessDecision{Reason: ReasonNoHotspots}
	}

	var valid []models.Hotspot
	for i := range hotspots {
		if hotspots[i].HasPrompt() {
			valid = append(valid, hotspots[i])
		}
	}
	if len(valid) == 0 {
		return ProcessDecision{Reason: ReasonNoPrompts}
	}
	return ProcessDecision{Allowed: true, Valid: valid}
}

// RemainingEdits returns how many processed batches are still allowed,
// clamped at zero.
func (l Limits) RemainingEdits(editCount int) int {
	if r := l.MaxEditsPerImage - editCount; r > 0 {
		return r
	}
	return 0
}

// RemainingHotspots returns how many hotspots the current phase still
// accepts, clamped at zero.
func (l Limits) RemainingHotspots(phaseHotspots int) int {
	if r := l.MaxHotspotsPerSession - phaseHotspots; r > 0 {
		return r
	}
	return 0
}
