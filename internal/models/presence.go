package models

import "time"

// Position is a 1-based line/column location in a buffer.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a selection between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range selects nothing.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Presence is the last known cursor, selection and typing state of a user.
// Nil fields are unknown, not reset.
type Presence struct {
	Username  string    `json:"username"`
	Color     string    `json:"color"`
	Cursor    *Position `json:"cursor,omitempty"`
	Selection *Range    `json:"selection,omitempty"`
	Typing    bool      `json:"isTyping"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Merge copies the known fields of other into p.
func (p *Presence) Merge(other Presence) {
	if other.Cursor != nil {
		c := *other.Cursor
		p.Cursor = &c
	}
	if other.Selection != nil {
		s := *other.Selection
		p.Selection = &s
	}
	if other.Color != "" {
		p.Color = other.Color
	}
}
