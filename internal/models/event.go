package models

import (
	"encoding/json"
	"time"
)

// Timeline event types.
const (
	EventTypeCreateRoom     = "create_room"
	EventTypeJoin           = "join"
	EventTypeLeave          = "leave"
	EventTypeCodeChange     = "code_change"
	EventTypeLanguageChange = "language_change"
	EventTypeLoadProblem    = "load_problem"
	EventTypeRun            = "run"
	EventTypeSubmit         = "submit"
	EventTypeEndSession     = "end_session"
)

// SessionEvent is one entry in a room's timeline.
type SessionEvent struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	RoomID    string          `gorm:"size:32;not null;index" json:"roomId"`
	Type      string          `gorm:"size:32;not null" json:"eventType"`
	Payload   json.RawMessage `gorm:"type:text" json:"payload"`
	CreatedAt time.Time       `gorm:"not null" json:"createdAt"`
}

// SessionSummary aggregates a room's timeline.
type SessionSummary struct {
	RoomID       string         `json:"roomId"`
	TotalEvents  int            `json:"totalEvents"`
	EventCounts  map[string]int `json:"eventCounts"`
	SessionStart *time.Time     `json:"sessionStart"`
	SessionEnd   *time.Time     `json:"sessionEnd"`
}

// Summarize builds the summary of an ordered timeline.
func Summarize(roomID string, events []SessionEvent) SessionSummary {
	s := SessionSummary{
		RoomID:      roomID,
		TotalEvents: len(events),
		EventCounts: make(map[string]int),
	}
	for _, e := range events {
		s.EventCounts[e.Type]++
	}
	if len(events) > 0 {
		first, last := events[0].CreatedAt, events[len(events)-1].CreatedAt
		s.SessionStart = &first
		s.SessionEnd = &last
	}
	return s
}
