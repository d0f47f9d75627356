package engine

import (
	"github.com/arjun/pinpoint/internal/policy"
	"github.com/arjun/pinpoint/internal/sampler"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/pkg/models"
)

// HotspotView is a hotspot together with its derived overlay styling.
type HotspotView struct {
	models.Hotspot
	Profile models.ColorProfile `json:"profile"`
}

// State is a consistent point-in-time view of the workspace for UI layers.
type State struct {
	Hotspots          []HotspotView            `json:"hotspots"`
	Session           *session.Session         `json:"session"`
	SessionsUsed      int                      `json:"sessionsUsed"`
	EditCount         int                      `json:"editCount"`
	RemainingEdits    int                      `json:"remainingEdits"`
	RemainingHotspots int                      `json:"remainingHotspots"`
	CanAddHotspot     policy.Decision          `json:"canAddHotspot"`
	CanProcess        policy.Decision          `json:"canProcess"`
	Processing        bool                     `json:"processing"`
	History           []session.ProcessedImage `json:"history"`
	HistoryIndex      int                      `json:"historyIndex"`
	CurrentImageID    string                   `json:"currentImageId"`
}

// State assembles the current view. Profiles for settled hotspots are
// recomputed synchronously so the snapshot never shows the fallback styling
// for a hotspot that has stopped moving.
func (e *Engine) State() State {
	e.FlushSampling()

	e.mu.Lock()
	defer e.mu.Unlock()

	limits := e.sessions.Limits()
	hotspots := e.hotspots.List()

	views := make([]HotspotView, 0, len(hotspots))
	for _, h := range hotspots {
		p, ok := e.profiles[h.ID]
		if !ok {
			p = sampler.NeutralProfile
		}
		views = append(views, HotspotView{Hotspot: h, Profile: p})
	}

	proc := limits.CanProcessEdits(e.sessions.EditCount(), hotspots)

	st := State{
		Hotspots:          views,
		Session:           e.sessions.Current().Clone(),
		SessionsUsed:      e.sessions.SessionsUsed(),
		EditCount:         e.sessions.EditCount(),
		RemainingEdits:    limits.RemainingEdits(e.sessions.EditCount()),
		RemainingHotspots: limits.RemainingHotspots(e.sessions.PhaseCount()),
		CanAddHotspot:     e.sessions.CanAddHotspot(),
		CanProcess:        policy.Decision{Allowed: proc.Allowed, Reason: proc.Reason},
		Processing:        e.processing,
		History:           e.sessions.History(),
		HistoryIndex:      e.sessions.HistoryIndex(),
		CurrentImageID:    e.imageID,
	}
	return st
}
