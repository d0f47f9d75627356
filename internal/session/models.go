package session

import (
	"encoding/json"
	"time"

	"github.com/arjun/pinpoint/pkg/models"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is one bounded editing session over an image. It references
// hotspots by id only; the hotspot store owns the data.
//
// PhaseHotspotIDs are the hotspots added since the last processed batch.
// TotalHotspotIDs accumulate every hotspot ever added during the session and
// never shrink: removing a hotspot frees phase capacity but its addition
// still counts against the whole-session budget.
type Session struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	PhaseHotspotIDs []int     `json:"phaseHotspotIds"`
	TotalHotspotIDs []int     `json:"totalHotspotIds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Views and snapshots hold clones so callers can
// encode or mutate them without racing the manager's live session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.PhaseHotspotIDs = append([]int{}, s.PhaseHotspotIDs...)
	cp.TotalHotspotIDs = append([]int{}, s.TotalHotspotIDs...)
	return &cp
}

// ProcessedImage is one entry of the edit history: the pristine base image or
// the result of a processed batch.
type ProcessedImage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is the minimal persisted state needed to resume editing an image.
type Snapshot struct {
	Hotspots     []models.Hotspot `json:"hotspots"`
	Session      *Session         `json:"session"`
	SessionsUsed int              `json:"sessionsUsed"`
	EditCount    int              `json:"editCount"`
	History      []ProcessedImage `json:"history"`
	HistoryIndex int              `json:"historyIndex"`
}

func (s *Snapshot) hotspotsJSON() string {
	hotspots := s.Hotspots
	if hotspots == nil {
		hotspots = []models.Hotspot{}
	}
	data, _ := json.Marshal(hotspots)
	return string(data)
}

func (s *Snapshot) historyJSON() string {
	history := s.History
	if history == nil {
		history = []ProcessedImage{}
	}
	data, _ := json.Marshal(history)
	return string(data)
}

func (s *Snapshot) sessionJSON() string {
	if s.Session == nil {
		return ""
	}
	data, _ := json.Marshal(s.Session)
	return string(data)
}
