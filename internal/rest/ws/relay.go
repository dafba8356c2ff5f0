package ws

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/broker"
	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
	"github.com/Icerzack/codecollab/internal/room"
	eStorage "github.com/Icerzack/codecollab/internal/storage/event"
	pStorage "github.com/Icerzack/codecollab/internal/storage/problem"
	rStorage "github.com/Icerzack/codecollab/internal/storage/room"
)

const runTimeout = time.Minute

// messageHandler dispatches one inbound frame. Frames of a connection are
// handled one at a time, in arrival order.
func (ws *WebSocketHandler) messageHandler(c *connection, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinRoom:
		ws.joinRoom(c, env)
	case protocol.EventRequestExistingUsers:
		ws.existingUsers(c, env)
	case protocol.EventLeaveRoom:
		ws.leave(c, true)
	case protocol.EventCodeChange:
		ws.codeChange(c, env)
	case protocol.EventCursorMove:
		ws.cursorMove(c, env)
	case protocol.EventSelectionChange:
		ws.selectionChange(c, env)
	case protocol.EventTyping:
		ws.typing(c, env)
	case protocol.EventLoadProblem:
		ws.loadProblem(c, env)
	case protocol.EventLanguageChange:
		ws.languageChange(c, env)
	case protocol.EventExecuteCode:
		ws.executeCode(c, env)
	case protocol.EventSubmitCode:
		ws.submitCode(c, env)
	case protocol.EventEndSession:
		ws.endSession(c)
	default:
		ws.logger.Debug("Ignoring event", zap.String("event", env.Event), zap.String("connID", c.user.ID))
	}
}

func (ws *WebSocketHandler) joinRoom(c *connection, env protocol.Envelope) {
	var req protocol.JoinRoom
	if err := env.Decode(&req); err != nil || req.RoomID == "" || strings.TrimSpace(req.Username) == "" {
		ws.replyError(c, "join_room requires roomId and username")
		return
	}
	if c.user.RoomID != "" {
		ws.leave(c, false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ws.ensureStoredRoom(ctx, req.RoomID, c.identity.Subject); err != nil {
		ws.logger.Error("Failed to create room", zap.String("roomID", req.RoomID), zap.Error(err))
		ws.replyError(c, "room is unavailable")
		return
	}

	c.user.RoomID = req.RoomID
	c.user.Username = req.Username
	c.user.Color = models.ColorFor(req.Username)

	ws.mtx.Lock()
	rm, err := ws.runtimeRoom(req.RoomID)
	if err != nil {
		ws.mtx.Unlock()
		c.user.RoomID = ""
		ws.logger.Error("Failed to subscribe room", zap.String("roomID", req.RoomID), zap.Error(err))
		ws.replyError(c, "room is unavailable")
		return
	}
	unique := rm.AddUser(c.user)
	ws.mtx.Unlock()

	if err := ws.roomStorage.AddMember(ctx, req.RoomID, c.user.Member()); err != nil {
		ws.logger.Error("Failed to store member", zap.String("roomID", req.RoomID), zap.Error(err))
	}
	ws.record(ctx, req.RoomID, models.EventTypeJoin, map[string]string{"username": req.Username})
	ws.logger.Info("User joined",
		zap.String("roomID", req.RoomID),
		zap.String("username", req.Username),
		zap.Bool("authenticated", req.Authenticated),
	)

	if unique {
		ws.broadcast(c, req.RoomID, protocol.EventUserJoined, protocol.UserEvent{Username: req.Username}, true)
	}
	ws.broadcastPresence(ctx, rm)
}

// broadcastPresence sends the presence of the local members of rm to the room.
func (ws *WebSocketHandler) broadcastPresence(ctx context.Context, rm *room.Room) {
	ws.publish(ctx, broker.Message{RoomID: rm.ID}, protocol.EventPresenceSnapshot, protocol.PresenceSnapshot{
		RoomID: rm.ID,
		Users:  rm.Presence(),
	})
}

// ensureStoredRoom creates the stored room on first use.
func (ws *WebSocketHandler) ensureStoredRoom(ctx context.Context, roomID, subject string) error {
	_, err := ws.roomStorage.Get(ctx, roomID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rStorage.ErrRoomNotFound) {
		return err
	}
	err = ws.roomStorage.Create(ctx, models.NewRoom(roomID, subject))
	if errors.Is(err, rStorage.ErrRoomExists) {
		return nil
	}
	if err != nil {
		return err
	}
	ws.record(ctx, roomID, models.EventTypeCreateRoom, map[string]string{"createdBy": subject})
	return nil
}

func (ws *WebSocketHandler) existingUsers(c *connection, env protocol.Envelope) {
	var req protocol.RoomRef
	_ = env.Decode(&req)
	roomID := req.RoomID
	if roomID == "" {
		roomID = c.user.RoomID
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	members, err := ws.roomStorage.Members(ctx, roomID)
	if err != nil {
		ws.logger.Debug("Falling back to live members", zap.String("roomID", roomID), zap.Error(err))
		members = []models.Member{}
		if rm := ws.lookup(roomID); rm != nil {
			members = rm.Members()
		}
	}
	ws.reply(c, protocol.EventExistingUsers, protocol.ExistingUsers{Users: members})
}

// leave removes c from its room. A voluntary leave also returns the room to
// the lobby for the members that remain.
func (ws *WebSocketHandler) leave(c *connection, voluntary bool) {
	roomID, username := c.user.RoomID, c.user.Username
	if roomID == "" {
		return
	}

	ws.mtx.Lock()
	rm := ws.rooms[roomID]
	var gone, empty bool
	if rm != nil {
		_, gone = rm.RemoveUser(c.user.ID)
		if rm.Len() == 0 {
			empty = true
			delete(ws.rooms, roomID)
		}
	}
	ws.mtx.Unlock()
	c.user.RoomID = ""

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if gone {
		if err := ws.roomStorage.RemoveMember(ctx, roomID, username); err != nil {
			ws.logger.Debug("Failed to remove member", zap.String("roomID", roomID), zap.Error(err))
		}
		ws.record(ctx, roomID, models.EventTypeLeave, map[string]string{"username": username})
		ws.publish(ctx, broker.Message{RoomID: roomID, Origin: c.user.ID, ExcludeOrigin: true},
			protocol.EventUserLeft, protocol.UserEvent{Username: username})
		ws.logger.Info("User left", zap.String("roomID", roomID), zap.String("username", username))
		if !empty {
			ws.broadcastPresence(ctx, rm)
		}
	}

	if voluntary {
		stored, err := ws.roomStorage.Get(ctx, roomID)
		if err == nil && stored.ProblemID != nil {
			if err := ws.roomStorage.SetProblem(ctx, roomID, nil, stored.Content); err != nil {
				ws.logger.Error("Failed to reset room", zap.String("roomID", roomID), zap.Error(err))
			}
		}
		ws.publish(ctx, broker.Message{RoomID: roomID, Origin: c.user.ID, ExcludeOrigin: true},
			protocol.EventLobbyActivated, protocol.Empty{})
	}

	if empty {
		rm.Close()
		ws.logger.Info("Room closed", zap.String("roomID", roomID))
	}
}

func (ws *WebSocketHandler) codeChange(c *connection, env protocol.Envelope) {
	var req protocol.CodeChange
	if err := env.Decode(&req); err != nil {
		ws.replyError(c, "malformed code_change")
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok || req.Content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ws.roomStorage.SetContent(ctx, roomID, req.Content); err != nil {
		ws.logger.Error("Failed to store content", zap.String("roomID", roomID), zap.Error(err))
	}
	ws.record(ctx, roomID, models.EventTypeCodeChange, map[string]interface{}{
		"messageId": req.MessageID,
		"length":    len(req.Content),
		"username":  c.user.Username,
	})
	ws.broadcast(c, roomID, protocol.EventCodeUpdate, protocol.CodeUpdate{
		Content:   req.Content,
		MessageID: req.MessageID,
		Username:  c.user.Username,
	}, true)
}

func (ws *WebSocketHandler) cursorMove(c *connection, env protocol.Envelope) {
	var req protocol.CursorMove
	if err := env.Decode(&req); err != nil {
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}
	pos := models.Position{Line: req.Line, Column: req.Column}
	if rm := ws.lookup(roomID); rm != nil {
		rm.UpdatePresence(models.Presence{Username: c.user.Username, Cursor: &pos})
	}
	ws.broadcast(c, roomID, protocol.EventPresenceCursor,
		protocol.PresenceCursor{Username: c.user.Username, Cursor: pos}, true)
}

func (ws *WebSocketHandler) selectionChange(c *connection, env protocol.Envelope) {
	var req protocol.SelectionChange
	if err := env.Decode(&req); err != nil {
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}
	if rm := ws.lookup(roomID); rm != nil {
		rm.UpdatePresence(models.Presence{
			Username:  c.user.Username,
			Selection: &models.Range{Start: req.Start, End: req.End},
		})
	}
	ws.broadcast(c, roomID, protocol.EventPresenceSelection,
		protocol.PresenceSelection{Username: c.user.Username, Start: req.Start, End: req.End}, true)
}

func (ws *WebSocketHandler) typing(c *connection, env protocol.Envelope) {
	var req protocol.Typing
	if err := env.Decode(&req); err != nil {
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}
	if rm := ws.lookup(roomID); rm != nil {
		rm.SetTyping(c.user.Username, req.Typing)
	}
	ws.broadcast(c, roomID, protocol.EventTyping,
		protocol.Typing{Username: c.user.Username, Typing: req.Typing}, true)
}

func (ws *WebSocketHandler) loadProblem(c *connection, env protocol.Envelope) {
	var req protocol.LoadProblem
	if err := env.Decode(&req); err != nil {
		ws.replyError(c, "malformed load_problem")
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	p, err := ws.problemStorage.Get(ctx, req.ProblemID)
	if err != nil {
		if !errors.Is(err, pStorage.ErrProblemNotFound) {
			ws.logger.Error("Failed to get problem", zap.Int64("problemID", req.ProblemID), zap.Error(err))
		}
		ws.replyError(c, "problem not found")
		return
	}
	if err := ws.roomStorage.SetProblem(ctx, roomID, &p.ID, p.TemplateCode); err != nil {
		ws.logger.Error("Failed to load problem", zap.String("roomID", roomID), zap.Error(err))
		ws.replyError(c, "room is unavailable")
		return
	}
	language := models.DefaultLanguage
	if stored, err := ws.roomStorage.Get(ctx, roomID); err == nil && stored.Language != "" {
		language = stored.Language
	}

	ws.record(ctx, roomID, models.EventTypeLoadProblem, map[string]interface{}{
		"problemId": p.ID,
		"title":     p.Title,
	})
	ws.broadcast(c, roomID, protocol.EventProblemLoaded, protocol.ProblemLoaded{
		Problem:  p.Details(),
		Language: language,
		Content:  p.TemplateCode,
	}, false)
}

func (ws *WebSocketHandler) languageChange(c *connection, env protocol.Envelope) {
	var req protocol.LanguageChange
	if err := env.Decode(&req); err != nil || req.Language == "" {
		ws.replyError(c, "language_change requires a language")
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ws.roomStorage.SetLanguage(ctx, roomID, req.Language); err != nil {
		ws.logger.Error("Failed to store language", zap.String("roomID", roomID), zap.Error(err))
	}
	ws.record(ctx, roomID, models.EventTypeLanguageChange, map[string]string{"language": req.Language})
	ws.broadcast(c, roomID, protocol.EventLanguageUpdated, protocol.LanguageUpdated{Language: req.Language}, true)
}

func (ws *WebSocketHandler) executeCode(c *connection, env protocol.Envelope) {
	var req protocol.RunCode
	if err := env.Decode(&req); err != nil {
		ws.replyError(c, "malformed execute_code")
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}
	origin := c.user.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		res := ws.judge.Execute(ctx, req.Code, req.Language)
		ws.record(ctx, roomID, models.EventTypeRun, map[string]interface{}{
			"language": req.Language,
			"failed":   res.Error != "",
		})
		ws.publish(ctx, broker.Message{RoomID: roomID, Origin: origin}, protocol.EventExecutionResult, res)
	}()
}

func (ws *WebSocketHandler) submitCode(c *connection, env protocol.Envelope) {
	var req protocol.RunCode
	if err := env.Decode(&req); err != nil {
		ws.replyError(c, "malformed submit_code")
		return
	}
	roomID, ok := ws.memberOf(c, req.RoomID)
	if !ok {
		return
	}
	origin := c.user.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		var p *models.Problem
		if stored, err := ws.roomStorage.Get(ctx, roomID); err == nil && stored.ProblemID != nil {
			p, err = ws.problemStorage.Get(ctx, *stored.ProblemID)
			if err != nil {
				ws.logger.Debug("Problem of room is gone", zap.String("roomID", roomID), zap.Error(err))
				p = nil
			}
		}
		res := ws.judge.Submit(ctx, p, req.Code, req.Language)
		ws.record(ctx, roomID, models.EventTypeSubmit, map[string]string{
			"language": req.Language,
			"verdict":  res.Verdict,
		})
		ws.publish(ctx, broker.Message{RoomID: roomID, Origin: origin}, protocol.EventSubmitResult, res)
	}()
}

// endSession notifies the whole room and clears its stored roster. Each
// participant closes its own connection on session_ended, which tears the
// runtime room down.
func (ws *WebSocketHandler) endSession(c *connection) {
	roomID, ok := ws.memberOf(c, "")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	ws.record(ctx, roomID, models.EventTypeEndSession, map[string]string{"username": c.user.Username})

	members, err := ws.roomStorage.Members(ctx, roomID)
	if err != nil {
		ws.logger.Debug("Failed to list members", zap.String("roomID", roomID), zap.Error(err))
	}
	for _, m := range members {
		if err := ws.roomStorage.RemoveMember(ctx, roomID, m.Username); err != nil {
			ws.logger.Debug("Failed to remove member", zap.String("roomID", roomID), zap.Error(err))
		}
	}

	ws.broadcast(c, roomID, protocol.EventSessionEnded, protocol.Empty{}, false)
	ws.logger.Info("Session ended", zap.String("roomID", roomID), zap.String("by", c.user.Username))
}

// memberOf returns the room of c when it has joined one and the request
// names either nothing or that same room.
func (ws *WebSocketHandler) memberOf(c *connection, roomID string) (string, bool) {
	if c.user.RoomID == "" || (roomID != "" && roomID != c.user.RoomID) {
		ws.logger.Debug("Event outside joined room",
			zap.String("connID", c.user.ID),
			zap.String("roomID", roomID),
			zap.Error(ErrNotInRoom),
		)
		ws.replyError(c, ErrNotInRoom.Error())
		return "", false
	}
	return c.user.RoomID, true
}

func (ws *WebSocketHandler) lookup(roomID string) *room.Room {
	ws.mtx.Lock()
	defer ws.mtx.Unlock()
	return ws.rooms[roomID]
}

// broadcast sends an event from c to its room, skipping c when excludeSelf is set.
func (ws *WebSocketHandler) broadcast(c *connection, roomID, event string, payload interface{}, excludeSelf bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	ws.publish(ctx, broker.Message{RoomID: roomID, Origin: c.user.ID, ExcludeOrigin: excludeSelf}, event, payload)
}

func (ws *WebSocketHandler) publish(ctx context.Context, msg broker.Message, event string, payload interface{}) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		ws.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	msg.Payload = data
	if err := ws.broker.Publish(ctx, msg); err != nil {
		ws.logger.Error("Failed to publish event",
			zap.String("event", event),
			zap.String("roomID", msg.RoomID),
			zap.Error(err),
		)
	}
}

// reply sends an event to c alone.
func (ws *WebSocketHandler) reply(c *connection, event string, payload interface{}) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		ws.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.queue(data) {
		ws.logger.Warn("Dropping reply to slow connection", zap.String("connID", c.user.ID))
		c.close()
	}
}

func (ws *WebSocketHandler) replyError(c *connection, reason string) {
	ws.reply(c, protocol.EventError, protocol.ErrorMessage{Reason: reason})
}

func (ws *WebSocketHandler) record(ctx context.Context, roomID, eventType string, payload interface{}) {
	if ws.eventStorage == nil {
		return
	}
	e, err := eStorage.NewEvent(roomID, eventType, payload)
	if err == nil {
		err = ws.eventStorage.Record(ctx, e)
	}
	if err != nil {
		ws.logger.Error("Failed to record event",
			zap.String("roomID", roomID),
			zap.String("eventType", eventType),
			zap.Error(err),
		)
	}
}
