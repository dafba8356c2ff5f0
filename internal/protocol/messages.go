package protocol

import "github.com/Icerzack/codecollab/internal/models"

type JoinRoom struct {
	RoomID        string `json:"roomId"`
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
}

// RoomRef carries only the room identifier.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// ExistingUsers is the wrapped shape of the roster snapshot.
type ExistingUsers struct {
	Users []models.Member `json:"users"`
}

// UserEvent announces an incremental roster change.
type UserEvent struct {
	Username string `json:"username"`
}

type LeaveRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type CodeChange struct {
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	MessageID int64  `json:"messageId"`
}

// CodeUpdate is the broadcast form of CodeChange. Username is filled in by the
// relay when it knows the sender.
type CodeUpdate struct {
	Content   string `json:"content"`
	MessageID int64  `json:"messageId,omitempty"`
	Username  string `json:"username,omitempty"`
}

type CursorMove struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

type SelectionChange struct {
	RoomID   string          `json:"roomId"`
	Username string          `json:"username"`
	Start    models.Position `json:"start"`
	End      models.Position `json:"end"`
}

type PresenceCursor struct {
	Username string          `json:"username"`
	Cursor   models.Position `json:"cursor"`
}

// PresenceSnapshot is the full presence of a room, sent after every join and leave.
type PresenceSnapshot struct {
	RoomID string            `json:"roomId"`
	Users  []models.Presence `json:"users"`
}

type PresenceSelection struct {
	Username string          `json:"username"`
	Start    models.Position `json:"start"`
	End      models.Position `json:"end"`
}

type Typing struct {
	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

type LoadProblem struct {
	RoomID    string `json:"roomId"`
	ProblemID int64  `json:"problemId"`
}

type ProblemLoaded struct {
	Problem  models.ProblemDetails `json:"problem"`
	Language string                `json:"language"`
	Content  string                `json:"content"`
}

type LanguageChange struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type LanguageUpdated struct {
	Language string `json:"language"`
}

// RunCode is the payload of both execute_code and submit_code.
type RunCode struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ExecutionResult struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

type SubmitResult struct {
	Verdict string `json:"verdict"`
	Details string `json:"details"`
}

// Empty is the payload of lobby_activated and session_ended.
type Empty struct{}

type ErrorMessage struct {
	Reason string `json:"reason"`
}
