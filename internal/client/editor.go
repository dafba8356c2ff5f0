package client

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Icerzack/codecollab/internal/models"
)

// Editor is the text-editing widget a session drives.
//
// ReplaceAll must swap the whole content as one edit without invoking the
// change listener: applying a remote update has to look, to edit detection,
// as if nothing happened.
type Editor interface {
	Value() string
	ReplaceAll(content string)

	Cursor() (models.Position, bool)
	SetCursor(pos models.Position)
	Selection() (models.Range, bool)
	SetSelection(r models.Range)

	// OnChange registers the listener for human edits. Nil unregisters.
	OnChange(fn func(content string))
	// OnCursorActivity registers the listener for cursor and selection moves. Nil unregisters.
	OnCursorActivity(fn func())
}

// Buffer is an in-memory Editor.
type Buffer struct {
	mu        sync.Mutex
	value     string
	cursor    *models.Position
	selection *models.Range
	onChange  func(string)
	onCursor  func()
}

// NewBuffer creates a buffer holding content with the cursor at its start.
func NewBuffer(content string) *Buffer {
	return &Buffer{
		value:  content,
		cursor: &models.Position{Line: 1, Column: 1},
	}
}

func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

func (b *Buffer) ReplaceAll(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = content
}

// Type simulates a human edit: the content is replaced and the change
// listener is notified.
func (b *Buffer) Type(content string) {
	b.mu.Lock()
	b.value = content
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(content)
	}
}

func (b *Buffer) Cursor() (models.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor == nil {
		return models.Position{}, false
	}
	return *b.cursor, true
}

func (b *Buffer) SetCursor(pos models.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = &pos
}

func (b *Buffer) Selection() (models.Range, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selection == nil {
		return models.Range{}, false
	}
	return *b.selection, true
}

func (b *Buffer) SetSelection(r models.Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection = &r
}

// MoveCursor simulates the user moving the caret, collapsing any selection.
func (b *Buffer) MoveCursor(pos models.Position) {
	b.mu.Lock()
	b.cursor = &pos
	b.selection = nil
	fn := b.onCursor
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Select simulates the user selecting a range; the caret lands on its end.
func (b *Buffer) Select(r models.Range) {
	b.mu.Lock()
	end := r.End
	b.cursor = &end
	b.selection = &r
	fn := b.onCursor
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (b *Buffer) OnChange(fn func(content string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func (b *Buffer) OnCursorActivity(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCursor = fn
}

// clampPosition keeps pos inside content: the line is clamped to the line
// count and the column to the length of that line.
func clampPosition(pos models.Position, content string) models.Position {
	lines := strings.Split(content, "\n")

	line := pos.Line
	if line > len(lines) {
		line = len(lines)
	}
	if line < 1 {
		line = 1
	}

	maxColumn := utf8.RuneCountInString(lines[line-1])
	if maxColumn < 1 {
		maxColumn = 1
	}
	column := pos.Column
	if column > maxColumn {
		column = maxColumn
	}
	if column < 1 {
		column = 1
	}

	return models.Position{Line: line, Column: column}
}

func clampRange(r models.Range, content string) models.Range {
	return models.Range{
		Start: clampPosition(r.Start, content),
		End:   clampPosition(r.End, content),
	}
}
