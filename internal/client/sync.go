package client

import (
	"time"

	"github.com/Icerzack/codecollab/internal/protocol"
)

const (
	// DefaultCodeDebounce bounds the code_change emission rate.
	DefaultCodeDebounce = 100 * time.Millisecond

	// MinApplyInterval is the minimum spacing between two applied remote updates.
	MinApplyInterval = 50 * time.Millisecond

	recentIdentityCapacity = 10
)

// SyncEngine reconciles the local buffer with code updates from the room.
//
// There is no merge: every update replaces the whole buffer and the last one
// applied at a participant wins there. Echoes of the participant's own edits
// are recognised by message identity and by content, and dropped.
//
// A SyncEngine is owned by one session and is not safe for concurrent use.
type SyncEngine struct {
	roomID string
	self   string
	editor Editor
	clock  Clock

	content      string
	lastSent     string
	lastReceived string

	counter int64
	recent  []int64

	applying    bool
	lastApplied time.Time
}

func NewSyncEngine(roomID, self string, editor Editor, clock Clock) *SyncEngine {
	return &SyncEngine{
		roomID:  roomID,
		self:    self,
		editor:  editor,
		clock:   clock,
		content: editor.Value(),
		recent:  make([]int64, 0, recentIdentityCapacity),
	}
}

// LocalChange captures a human edit. It returns the code_change to send, or
// false when the content needs no emission.
func (e *SyncEngine) LocalChange(content string) (protocol.CodeChange, bool) {
	if e.applying || content == e.content {
		return protocol.CodeChange{}, false
	}
	if content == e.lastSent || content == e.lastReceived {
		e.content = content
		return protocol.CodeChange{}, false
	}

	e.content = content
	e.lastSent = content
	e.counter++
	e.remember(e.counter)

	return protocol.CodeChange{
		RoomID:    e.roomID,
		Content:   content,
		MessageID: e.counter,
	}, true
}

// RemoteUpdate applies a code update from the room. Discarded updates return
// ErrStaleMessage or ErrThrottledUpdate; callers drop them silently.
func (e *SyncEngine) RemoteUpdate(u protocol.CodeUpdate) error {
	if e.isEcho(u) {
		return ErrStaleMessage
	}
	// Identities issued after this one must not collide with what the room has seen.
	if u.MessageID > e.counter {
		e.counter = u.MessageID
	}
	if u.Content == e.lastSent || u.Content == e.lastReceived {
		return ErrStaleMessage
	}
	now := e.clock.Now()
	if e.applying || (!e.lastApplied.IsZero() && now.Sub(e.lastApplied) < MinApplyInterval) {
		return ErrThrottledUpdate
	}
	e.lastApplied = now

	e.apply(u.Content)
	return nil
}

// Reset installs content as the authoritative buffer, bypassing the echo and
// throttle guards. Used for room seeds and problem loads.
func (e *SyncEngine) Reset(content string) {
	e.apply(content)
}

func (e *SyncEngine) apply(content string) {
	e.applying = true
	defer func() { e.applying = false }()

	cursor, hasCursor := e.editor.Cursor()
	selection, hasSelection := e.editor.Selection()

	if e.editor.Value() != content {
		e.editor.ReplaceAll(content)
	}
	e.content = content
	e.lastSent = content
	e.lastReceived = content

	if hasCursor {
		e.editor.SetCursor(clampPosition(cursor, content))
	}
	if hasSelection && !selection.Empty() {
		e.editor.SetSelection(clampRange(selection, content))
	}
}

func (e *SyncEngine) isEcho(u protocol.CodeUpdate) bool {
	if u.MessageID == 0 {
		return false
	}
	if u.Username != "" && u.Username != e.self {
		return false
	}
	for _, id := range e.recent {
		if id == u.MessageID {
			return true
		}
	}
	return false
}

func (e *SyncEngine) remember(id int64) {
	if len(e.recent) == recentIdentityCapacity {
		e.recent = append(e.recent[:0], e.recent[1:]...)
	}
	e.recent = append(e.recent, id)
}

// Applying reports whether a remote update is being applied.
func (e *SyncEngine) Applying() bool {
	return e.applying
}

// Content is the tracked buffer content.
func (e *SyncEngine) Content() string {
	return e.content
}

// Counter is the last issued outgoing message identity.
func (e *SyncEngine) Counter() int64 {
	return e.counter
}
