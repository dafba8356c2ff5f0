package client

import (
	"time"

	"github.com/Icerzack/codecollab/internal/models"
)

// DefaultPresenceDebounce bounds the cursor/selection emission rate.
const DefaultPresenceDebounce = 50 * time.Millisecond

// Renderer draws the decorations of other users in the editor.
type Renderer interface {
	Render(p models.Presence)
	Clear(username string)
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) Render(models.Presence) {}
func (NopRenderer) Clear(string) {}

// PresenceTracker keeps the last known cursor and selection of every other
// user and emits the local ones, debounced.
type PresenceTracker struct {
	self     string
	editor   Editor
	renderer Renderer
	debounce *debouncer
	emit     func(cursor *models.Position, selection *models.Range)
	users    map[string]*models.Presence
}

// NewPresenceTracker creates a tracker for self. emit receives the cursor and,
// when non-empty, the selection; either may be nil.
func NewPresenceTracker(
	self string,
	editor Editor,
	renderer Renderer,
	clock Clock,
	debounce time.Duration,
	emit func(cursor *models.Position, selection *models.Range),
) *PresenceTracker {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &PresenceTracker{
		self:     self,
		editor:   editor,
		renderer: renderer,
		debounce: newDebouncer(clock, debounce),
		emit:     emit,
		users:    make(map[string]*models.Presence),
	}
}

// OnLocalCursorOrSelectionChange schedules an emission of the local cursor and selection.
func (p *PresenceTracker) OnLocalCursorOrSelectionChange() {
	p.debounce.Trigger(func() {
		var cursor *models.Position
		var selection *models.Range
		if pos, ok := p.editor.Cursor(); ok {
			cursor = &pos
		}
		if sel, ok := p.editor.Selection(); ok && !sel.Empty() {
			selection = &sel
		}
		if cursor == nil && selection == nil {
			return
		}
		p.emit(cursor, selection)
	})
}

func (p *PresenceTracker) OnRemoteCursor(username string, pos models.Position) {
	p.update(models.Presence{Username: username, Cursor: &pos})
}

func (p *PresenceTracker) OnRemoteSelection(username string, start, end models.Position) {
	p.update(models.Presence{Username: username, Selection: &models.Range{Start: start, End: end}})
}

// OnSnapshot merges a room-wide presence snapshot into the cache.
func (p *PresenceTracker) OnSnapshot(users []models.Presence) {
	for _, u := range users {
		if u.Cursor == nil && u.Selection == nil {
			continue
		}
		p.update(models.Presence{Username: u.Username, Color: u.Color, Cursor: u.Cursor, Selection: u.Selection})
	}
}

func (p *PresenceTracker) update(delta models.Presence) {
	if delta.Username == "" || delta.Username == p.self {
		return
	}
	cur, ok := p.users[delta.Username]
	if !ok {
		cur = &models.Presence{Username: delta.Username, Color: models.ColorFor(delta.Username)}
		p.users[delta.Username] = cur
	}
	cur.Merge(delta)
	cur.LastSeen = time.Now()
	p.renderer.Render(*cur)
}

// Presence returns the cached presence of username.
func (p *PresenceTracker) Presence(username string) (models.Presence, bool) {
	cur, ok := p.users[username]
	if !ok {
		return models.Presence{}, false
	}
	return *cur, true
}

// Remove drops the decorations and cache of a departed user.
func (p *PresenceTracker) Remove(username string) {
	if _, ok := p.users[username]; !ok {
		return
	}
	delete(p.users, username)
	p.renderer.Clear(username)
}

// Clear drops everything and cancels a pending emission.
func (p *PresenceTracker) Clear() {
	p.debounce.Cancel()
	for username := range p.users {
		delete(p.users, username)
		p.renderer.Clear(username)
	}
}
