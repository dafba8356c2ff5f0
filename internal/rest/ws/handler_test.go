package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/auth"
	localBroker "github.com/Icerzack/codecollab/internal/broker/local"
	"github.com/Icerzack/codecollab/internal/judge"
	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
	inmemEvent "github.com/Icerzack/codecollab/internal/storage/event/inmemory"
	"github.com/Icerzack/codecollab/internal/storage/problem"
	inmemProblem "github.com/Icerzack/codecollab/internal/storage/problem/inmemory"
	inmemRoom "github.com/Icerzack/codecollab/internal/storage/room/inmemory"
	inmemUser "github.com/Icerzack/codecollab/internal/storage/user/inmemory"
)

type stubExecutor struct {
	stdout string
}

func (e stubExecutor) Run(context.Context, judge.Program) (judge.Result, error) {
	return judge.Result{Stdout: e.stdout}, nil
}

type relay struct {
	handler *WebSocketHandler
	rooms   *inmemRoom.Storage
	events  *inmemEvent.Storage
	server  *httptest.Server
}

func newRelay(t *testing.T, mutate func(*Config)) *relay {
	t.Helper()
	logger := zap.NewNop()

	problems := inmemProblem.NewStorage(logger)
	require.NoError(t, problem.Seed(context.Background(), problems, problem.DefaultProblems(), logger))

	r := &relay{
		rooms:  inmemRoom.NewStorage(logger),
		events: inmemEvent.NewStorage(logger),
	}
	cfg := Config{
		Users:    inmemUser.NewStorage(logger),
		Rooms:    r.rooms,
		Problems: problems,
		Events:   r.events,
		Broker:   localBroker.NewBroker(logger),
		Judge:    judge.NewJudge(stubExecutor{stdout: "hi\n"}, logger),
		Logger:   logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	r.handler = NewWebSocketHandler(cfg)
	r.server = httptest.NewServer(http.HandlerFunc(r.handler.Handle))
	t.Cleanup(func() {
		r.handler.Shutdown()
		r.server.Close()
	})
	return r
}

func (r *relay) url(query string) string {
	u := "ws" + strings.TrimPrefix(r.server.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (r *relay) dial(t *testing.T) *peer {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(r.url(""), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn}
}

// join connects username to roomID and waits until the relay has processed it.
func (r *relay) join(t *testing.T, roomID, username string) *peer {
	t.Helper()
	p := r.dial(t)
	p.send(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, Username: username, Authenticated: true})
	p.roster(roomID)
	return p
}

func (p *peer) send(event string, payload interface{}) {
	p.t.Helper()
	data, err := protocol.Encode(event, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, data))
}

func (p *peer) next() protocol.Envelope {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	env, err := protocol.Parse(raw)
	require.NoError(p.t, err)
	return env
}

// expect reads frames until one carries event and decodes it into v.
func (p *peer) expect(event string, v interface{}) {
	p.t.Helper()
	for {
		env := p.next()
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(p.t, env.Decode(v))
		}
		return
	}
}

// roster asks for the member list. The reply also proves that every frame
// sent before it has been handled. Presence snapshots in between are skipped.
func (p *peer) roster(roomID string) []models.Member {
	p.t.Helper()
	p.send(protocol.EventRequestExistingUsers, protocol.RoomRef{RoomID: roomID})
	env := p.next()
	for env.Event == protocol.EventPresenceSnapshot {
		env = p.next()
	}
	require.Equal(p.t, protocol.EventExistingUsers, env.Event)
	users, ok := protocol.ParseExistingUsers(env.Data)
	require.True(p.t, ok)
	return users
}

func usernames(members []models.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Username)
	}
	return out
}

func TestJoinAnnouncesAndListsMembers(t *testing.T) {
	r := newRelay(t, nil)

	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")

	var joined protocol.UserEvent
	alice.expect(protocol.EventUserJoined, &joined)
	assert.Equal(t, "bob", joined.Username)

	members := bob.roster("room1")
	assert.Equal(t, []string{"alice", "bob"}, usernames(members))
	assert.Equal(t, models.ColorFor("alice"), members[0].Color)

	stored, err := r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultContent, stored.Content)

	bob.conn.Close()
	var left protocol.UserEvent
	alice.expect(protocol.EventUserLeft, &left)
	assert.Equal(t, "bob", left.Username)
	assert.Equal(t, []string{"alice"}, usernames(alice.roster("room1")))
}

func TestDuplicateUsernameKeepsOneMember(t *testing.T) {
	r := newRelay(t, nil)

	first := r.join(t, "room1", "alice")
	second := r.join(t, "room1", "alice")

	assert.Equal(t, []string{"alice"}, usernames(second.roster("room1")))

	// No user_joined reaches the first tab: the next frame is its own roster reply.
	assert.Equal(t, []string{"alice"}, usernames(first.roster("room1")))

	second.conn.Close()
	bob := r.join(t, "room1", "bob")
	first.expect(protocol.EventUserJoined, nil)
	assert.Equal(t, []string{"alice", "bob"}, usernames(bob.roster("room1")))
}

func TestCodeChangeIsRelayedWithoutEcho(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventCodeChange, protocol.CodeChange{RoomID: "room1", Content: "x = 1", MessageID: 7})

	var update protocol.CodeUpdate
	bob.expect(protocol.EventCodeUpdate, &update)
	assert.Equal(t, protocol.CodeUpdate{Content: "x = 1", MessageID: 7, Username: "alice"}, update)

	assert.Len(t, alice.roster("room1"), 2)

	stored, err := r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", stored.Content)

	events, err := r.events.List(context.Background(), "room1")
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		models.EventTypeCreateRoom,
		models.EventTypeJoin,
		models.EventTypeJoin,
		models.EventTypeCodeChange,
	}, types)
}

func TestEmptyContentIsIgnored(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventCodeChange, protocol.CodeChange{RoomID: "room1", Content: "", MessageID: 1})
	alice.roster("room1")

	assert.Len(t, bob.roster("room1"), 2)
	stored, err := r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultContent, stored.Content)
}

func TestEventsBeforeJoinAreRejected(t *testing.T) {
	r := newRelay(t, nil)
	p := r.dial(t)

	p.send(protocol.EventCodeChange, protocol.CodeChange{RoomID: "room1", Content: "x"})
	var msg protocol.ErrorMessage
	p.expect(protocol.EventError, &msg)
	assert.Equal(t, ErrNotInRoom.Error(), msg.Reason)

	p.send(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "room1"})
	p.expect(protocol.EventError, &msg)
	assert.Contains(t, msg.Reason, "username")
}

func TestPresenceIsRelayedAndCached(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventCursorMove, protocol.CursorMove{RoomID: "room1", Username: "mallory", Line: 3, Column: 4})
	var cursor protocol.PresenceCursor
	bob.expect(protocol.EventPresenceCursor, &cursor)
	assert.Equal(t, "alice", cursor.Username)
	assert.Equal(t, models.Position{Line: 3, Column: 4}, cursor.Cursor)

	start, end := models.Position{Line: 1, Column: 1}, models.Position{Line: 2, Column: 5}
	alice.send(protocol.EventSelectionChange, protocol.SelectionChange{RoomID: "room1", Start: start, End: end})
	var selection protocol.PresenceSelection
	bob.expect(protocol.EventPresenceSelection, &selection)
	assert.Equal(t, protocol.PresenceSelection{Username: "alice", Start: start, End: end}, selection)

	alice.send(protocol.EventTyping, protocol.Typing{RoomID: "room1", Typing: true})
	var typing protocol.Typing
	bob.expect(protocol.EventTyping, &typing)
	assert.Equal(t, protocol.Typing{Username: "alice", Typing: true}, typing)

	presence := r.handler.Presence("room1")
	require.Len(t, presence, 2)
	assert.Equal(t, "alice", presence[0].Username)
	require.NotNil(t, presence[0].Cursor)
	assert.Equal(t, 3, presence[0].Cursor.Line)
	require.NotNil(t, presence[0].Selection)
	assert.Equal(t, end, presence[0].Selection.End)
	assert.True(t, presence[0].Typing)

	assert.Empty(t, r.handler.Presence("missing"))
}

// snapshot reads presence snapshots until one lists n users.
func (p *peer) snapshot(n int) map[string]models.Presence {
	p.t.Helper()
	for {
		var msg protocol.PresenceSnapshot
		p.expect(protocol.EventPresenceSnapshot, &msg)
		if len(msg.Users) != n {
			continue
		}
		out := make(map[string]models.Presence, n)
		for _, u := range msg.Users {
			out[u.Username] = u
		}
		return out
	}
}

func TestPresenceSnapshotFollowsJoinAndLeave(t *testing.T) {
	r := newRelay(t, nil)

	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.send(protocol.EventCursorMove, protocol.CursorMove{RoomID: "room1", Line: 2, Column: 7})
	alice.roster("room1")

	carol := r.join(t, "room1", "carol")
	users := bob.snapshot(3)
	require.Contains(t, users, "alice")
	require.NotNil(t, users["alice"].Cursor)
	assert.Equal(t, models.Position{Line: 2, Column: 7}, *users["alice"].Cursor)
	assert.Equal(t, models.ColorFor("carol"), users["carol"].Color)

	carol.conn.Close()
	users = bob.snapshot(2)
	assert.NotContains(t, users, "carol")
	assert.Contains(t, users, "bob")
}

func TestLoadProblemAndLeaveReturnsToLobby(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventLoadProblem, protocol.LoadProblem{RoomID: "room1", ProblemID: 404})
	var msg protocol.ErrorMessage
	alice.expect(protocol.EventError, &msg)
	assert.Equal(t, "problem not found", msg.Reason)

	alice.send(protocol.EventLoadProblem, protocol.LoadProblem{RoomID: "room1", ProblemID: 1})
	var loaded protocol.ProblemLoaded
	bob.expect(protocol.EventProblemLoaded, &loaded)
	assert.Equal(t, int64(1), loaded.Problem.ID)
	assert.Equal(t, models.DefaultLanguage, loaded.Language)
	assert.Equal(t, loaded.Problem.TemplateCode, loaded.Content)

	var own protocol.ProblemLoaded
	alice.expect(protocol.EventProblemLoaded, &own)
	assert.Equal(t, loaded, own)

	stored, err := r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	require.NotNil(t, stored.ProblemID)
	assert.Equal(t, loaded.Content, stored.Content)

	alice.send(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "room1", Username: "alice"})
	var left protocol.UserEvent
	bob.expect(protocol.EventUserLeft, &left)
	assert.Equal(t, "alice", left.Username)
	bob.expect(protocol.EventLobbyActivated, nil)

	stored, err = r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Nil(t, stored.ProblemID)
	assert.Equal(t, []string{"bob"}, usernames(bob.roster("room1")))
}

func TestLanguageChangeReachesOthers(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventLanguageChange, protocol.LanguageChange{RoomID: "room1", Language: "javascript"})
	var updated protocol.LanguageUpdated
	bob.expect(protocol.EventLanguageUpdated, &updated)
	assert.Equal(t, "javascript", updated.Language)

	stored, err := r.rooms.Get(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, "javascript", stored.Language)
}

func TestExecuteAndSubmitResultsReachTheRoom(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	alice.send(protocol.EventExecuteCode, protocol.RunCode{RoomID: "room1", Code: "print('hi')", Language: "python"})
	var executed protocol.ExecutionResult
	bob.expect(protocol.EventExecutionResult, &executed)
	assert.Equal(t, protocol.ExecutionResult{Output: "hi\n"}, executed)
	alice.expect(protocol.EventExecutionResult, nil)

	alice.send(protocol.EventSubmitCode, protocol.RunCode{RoomID: "room1", Code: "x", Language: "python"})
	var submitted protocol.SubmitResult
	bob.expect(protocol.EventSubmitResult, &submitted)
	assert.Equal(t, judge.VerdictError, submitted.Verdict)
	assert.Equal(t, "No problem associated with this room.", submitted.Details)
}

func TestEndSessionNotifiesEveryone(t *testing.T) {
	r := newRelay(t, nil)
	alice := r.join(t, "room1", "alice")
	bob := r.join(t, "room1", "bob")
	alice.expect(protocol.EventUserJoined, nil)

	bob.send(protocol.EventEndSession, protocol.RoomRef{RoomID: "room1"})
	alice.expect(protocol.EventSessionEnded, nil)
	bob.expect(protocol.EventSessionEnded, nil)

	members, err := r.rooms.Members(context.Background(), "room1")
	require.NoError(t, err)
	assert.Empty(t, members)

	events, err := r.events.List(context.Background(), "room1")
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeEndSession, events[len(events)-1].Type)
}

func TestRequiredTokenIsEnforced(t *testing.T) {
	validator := auth.NewJWTValidator("secret")
	r := newRelay(t, func(cfg *Config) {
		cfg.Validator = validator
		cfg.JWTRequired = true
	})

	_, resp, err := websocket.DefaultDialer.Dial(r.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	token, err := validator.Sign("u-1", "alice", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	conn, resp, err := websocket.DefaultDialer.Dial(r.url("token="+token), nil)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}
