// Package protocol defines the duplex channel events exchanged between room
// participants and the relay.
package protocol

// Client to room.
const (
	EventJoinRoom             = "join_room"
	EventRequestExistingUsers = "request_existing_users"
	EventLeaveRoom            = "leave_room"
	EventCodeChange           = "code_change"
	EventCursorMove           = "cursor_move"
	EventSelectionChange      = "selection_change"
	EventLoadProblem          = "load_problem"
	EventLanguageChange       = "language_change"
	EventExecuteCode          = "execute_code"
	EventSubmitCode           = "submit_code"
	EventEndSession           = "end_session"
)

// Room to client.
const (
	EventExistingUsers     = "existing_users"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventCodeUpdate        = "code_update"
	EventPresenceCursor    = "presence_cursor"
	EventPresenceSelection = "presence_selection"
	EventProblemLoaded     = "problem_loaded"
	EventLobbyActivated    = "lobby_activated"
	EventLanguageUpdated   = "language_updated"
	EventExecutionResult   = "execution_result"
	EventSubmitResult      = "submit_result"
	EventSessionEnded      = "session_ended"
	EventPresenceSnapshot  = "presence_snapshot"
	EventError             = "error"
)

// EventTyping travels in both directions.
const EventTyping = "typing"

var knownEvents = map[string]struct{}{
	EventJoinRoom: {}, EventRequestExistingUsers: {}, EventLeaveRoom: {}, EventCodeChange: {},
	EventCursorMove: {}, EventSelectionChange: {}, EventLoadProblem: {}, EventLanguageChange: {},
	EventExecuteCode: {}, EventSubmitCode: {}, EventEndSession: {},
	EventExistingUsers: {}, EventUserJoined: {}, EventUserLeft: {}, EventCodeUpdate: {},
	EventPresenceCursor: {}, EventPresenceSelection: {}, EventProblemLoaded: {}, EventLobbyActivated: {},
	EventLanguageUpdated: {}, EventExecutionResult: {}, EventSubmitResult: {}, EventSessionEnded: {},
	EventPresenceSnapshot: {}, EventError: {}, EventTyping: {},
}

// Known reports whether event is part of the protocol.
func Known(event string) bool {
	_, ok := knownEvents[event]
	return ok
}
