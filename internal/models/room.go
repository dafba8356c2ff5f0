package models

import "time"

const (
	// DefaultLanguage is the language tag of a freshly created room.
	DefaultLanguage = "python"

	// DefaultContent seeds the buffer of a freshly created room.
	DefaultContent = "# Welcome to your CodeCollab room!\nprint('Hello, friend!')"
)

// Room is the persisted state of a room.
type Room struct {
	// ID is the unique identifier of the room
	ID string `gorm:"primaryKey;size:32" json:"id"`

	// Content is the shared code buffer
	Content string `gorm:"type:text" json:"content"`

	// Language is the selected language tag
	Language string `gorm:"size:20;not null;default:python" json:"language"`

	// ProblemID is the loaded problem, nil while the room is in the lobby
	ProblemID *int64 `json:"problemId,omitempty"`

	// CreatedBy is the subject of the token that created the room
	CreatedBy string `json:"createdBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRoom creates a room with default buffer and language.
func NewRoom(id, createdBy string) *Room {
	now := time.Now().UTC()
	return &Room{
		ID:        id,
		Content:   DefaultContent,
		Language:  DefaultLanguage,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RoomMember is a roster row kept by persistent room stores.
type RoomMember struct {
	RoomID   string `gorm:"primaryKey;size:32"`
	Username string `gorm:"primaryKey;size:80"`
	Color    string `gorm:"size:7"`
	JoinedAt time.Time
}

// RoomView is the room as served by GET /api/rooms/{id}.
type RoomView struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Language string          `json:"language"`
	Problem  *ProblemDetails `json:"problem"`
}
