package client

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTypingDecay is how long after the last keystroke typing(false) is sent.
	DefaultTypingDecay = 1200 * time.Millisecond

	maxTypingNames = 3
)

// TypingSignal derives the local "is typing" flag from edit bursts and keeps
// the flags announced by the other participants.
type TypingSignal struct {
	self   string
	decay  *debouncer
	local  bool
	emit   func(typing bool)
	remote []string
}

// NewTypingSignal creates a signal for self. emit is called with true on the
// first edit of a burst and with false once the burst has decayed.
func NewTypingSignal(self string, clock Clock, decay time.Duration, emit func(typing bool)) *TypingSignal {
	return &TypingSignal{
		self:  self,
		decay: newDebouncer(clock, decay),
		emit:  emit,
	}
}

// OnLocalEdit must be called for human keystrokes only.
func (t *TypingSignal) OnLocalEdit() {
	if !t.local {
		t.local = true
		t.emit(true)
	}
	t.decay.Trigger(func() {
		t.local = false
		t.emit(false)
	})
}

// LocalTyping reports whether typing(true) is currently in effect for self.
func (t *TypingSignal) LocalTyping() bool {
	return t.local
}

// OnRemoteTyping records the flag announced by username.
func (t *TypingSignal) OnRemoteTyping(username string, typing bool) {
	if username == "" || username == t.self {
		return
	}
	t.Remove(username)
	if typing {
		t.remote = append(t.remote, username)
	}
}

// Remove forgets the flag of a departed user.
func (t *TypingSignal) Remove(username string) {
	for i, u := range t.remote {
		if u == username {
			t.remote = append(t.remote[:i], t.remote[i+1:]...)
			return
		}
	}
}

// TypingUsers lists the other users currently typing, in the order they started.
func (t *TypingSignal) TypingUsers() []string {
	out := make([]string, len(t.remote))
	copy(out, t.remote)
	return out
}

// Text renders the typing indicator, e.g. "alice and bob are typing…".
func (t *TypingSignal) Text() string {
	return typingText(t.remote)
}

// Stop cancels a pending decay without emitting.
func (t *TypingSignal) Stop() {
	t.decay.Cancel()
	t.local = false
}

// Reset clears both the local and remote state.
func (t *TypingSignal) Reset() {
	t.Stop()
	t.remote = nil
}

func typingText(names []string) string {
	switch n := len(names); {
	case n == 0:
		return ""
	case n == 1:
		return names[0] + " is typing…"
	case n <= maxTypingNames:
		return strings.Join(names[:n-1], ", ") + " and " + names[n-1] + " are typing…"
	default:
		return fmt.Sprintf("%s and %d more are typing…", strings.Join(names[:maxTypingNames], ", "), n-maxTypingNames)
	}
}
