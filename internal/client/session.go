package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

// State is the lifecycle stage of a session.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateLobby
	StateCoding
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateLobby:
		return "lobby"
	case StateCoding:
		return "coding"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const eventQueueSize = 256

// Config describes a session to open with Connect.
type Config struct {
	RoomID   string
	Username string

	Tokens TokenProvider
	Dial   Dialer
	// Store is optional; without it the session enters the lobby right after joining.
	Store RoomStore

	Editor   Editor
	Listener Listener
	Renderer Renderer
	Clock    Clock
	Logger   *zap.Logger

	CodeDebounce     time.Duration
	PresenceDebounce time.Duration
	TypingDecay      time.Duration
}

func (c *Config) setDefaults() {
	if c.Listener == nil {
		c.Listener = NopListener{}
	}
	if c.Renderer == nil {
		c.Renderer = NopRenderer{}
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.CodeDebounce <= 0 {
		c.CodeDebounce = DefaultCodeDebounce
	}
	if c.PresenceDebounce <= 0 {
		c.PresenceDebounce = DefaultPresenceDebounce
	}
	if c.TypingDecay <= 0 {
		c.TypingDecay = DefaultTypingDecay
	}
}

// Snapshot is a consistent view of a session's state.
type Snapshot struct {
	State        State
	Users        []models.Member
	RosterLoaded bool
	TypingUsers  []string
	Language     string
	Problem      *models.ProblemDetails
	Content      string
	Output       string
	LastSentID   int64
}

// Session is one participant's connection to a room.
//
// All inbound frames, timer expiries and editor notifications run on a single
// event loop goroutine, one at a time and in arrival order. None of the
// components it drives are locked.
type Session struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger

	roster   *Roster
	typing   *TypingSignal
	presence *PresenceTracker
	engine   *SyncEngine
	code     *debouncer

	state    State
	language string
	problem  *models.ProblemDetails
	output   string

	// rawContent is the most recent editor value, ahead of the code debounce.
	rawContent string
	applying   atomic.Bool
	// remoteSeen is set once a live code update was applied; the stored room
	// content is older from then on.
	remoteSeen bool

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
	cause     error
}

// Connect opens a session: it dials the room, sends join_room and
// request_existing_users, and fetches the persisted room state in the
// background to pick lobby or coding mode.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Tokens == nil || !cfg.Tokens.HasValidToken() {
		return nil, &UnauthenticatedError{PendingRoomID: cfg.RoomID}
	}
	if cfg.Editor == nil || cfg.Dial == nil {
		return nil, errors.New("session needs an editor and a dialer")
	}
	cfg.setDefaults()

	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger.With(zap.String("roomID", cfg.RoomID), zap.String("username", cfg.Username)),
		roster:   NewRoster(),
		state:    StateConnecting,
		language: models.DefaultLanguage,
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
	}
	clock := loopClock{base: cfg.Clock, post: s.post}
	s.engine = NewSyncEngine(cfg.RoomID, cfg.Username, cfg.Editor, clock)
	s.rawContent = s.engine.Content()
	s.code = newDebouncer(clock, cfg.CodeDebounce)
	s.typing = NewTypingSignal(cfg.Username, clock, cfg.TypingDecay, s.emitTyping)
	s.presence = NewPresenceTracker(cfg.Username, cfg.Editor, cfg.Renderer, clock, cfg.PresenceDebounce, s.emitPresence)

	cfg.Listener.OnStateChange(StateConnecting)
	cfg.Listener.OnStatus("Connecting...")

	transport, err := cfg.Dial(ctx)
	if err != nil {
		cfg.Listener.OnStatus("Connection failed")
		s.state = StateDisconnected
		cfg.Listener.OnStateChange(StateDisconnected)
		if errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	s.transport = transport

	go s.run()
	go s.read()

	s.post(func() {
		s.setState(StateJoined)
		cfg.Listener.OnStatus("Connected!")
		cfg.Editor.OnChange(s.LocalEdit)
		cfg.Editor.OnCursorActivity(s.CursorActivity)
		s.send(protocol.EventJoinRoom, protocol.JoinRoom{
			RoomID:        cfg.RoomID,
			Username:      cfg.Username,
			Authenticated: true,
		})
		s.send(protocol.EventRequestExistingUsers, protocol.RoomRef{RoomID: cfg.RoomID})
	})
	go s.fetchRoom(ctx)

	return s, nil
}

// Reconnect closes the session and opens a fresh one with the same
// configuration. Nothing survives the disconnect: roster and buffer state are
// rebuilt from the join handshake.
func (s *Session) Reconnect(ctx context.Context) (*Session, error) {
	s.Close()
	return Connect(ctx, s.cfg)
}

// LocalEdit is the editor change listener.
func (s *Session) LocalEdit(content string) {
	if s.applying.Load() {
		return
	}
	s.post(func() {
		if s.state == StateDisconnected || s.engine.Applying() || content == s.rawContent {
			return
		}
		s.rawContent = content
		s.typing.OnLocalEdit()
		s.code.Trigger(s.flushCode)
	})
}

// CursorActivity is the editor cursor/selection listener.
func (s *Session) CursorActivity() {
	s.post(func() {
		if s.state == StateDisconnected {
			return
		}
		s.presence.OnLocalCursorOrSelectionChange()
	})
}

// LoadProblem asks the room to switch to problemID.
func (s *Session) LoadProblem(problemID int64) error {
	return s.request(protocol.EventLoadProblem, protocol.LoadProblem{RoomID: s.cfg.RoomID, ProblemID: problemID})
}

// ChangeLanguage sets the active language tag for everyone.
func (s *Session) ChangeLanguage(language string) error {
	return s.do(func() error {
		s.language = language
		s.cfg.Listener.OnLanguage(language)
		return s.send(protocol.EventLanguageChange, protocol.LanguageChange{RoomID: s.cfg.RoomID, Language: language})
	})
}

// Execute runs the current buffer without judging it.
func (s *Session) Execute() error {
	return s.runCode(protocol.EventExecuteCode)
}

// Submit judges the current buffer against the loaded problem.
func (s *Session) Submit() error {
	return s.runCode(protocol.EventSubmitCode)
}

func (s *Session) runCode(event string) error {
	return s.do(func() error {
		return s.send(event, protocol.RunCode{
			RoomID:   s.cfg.RoomID,
			Code:     s.cfg.Editor.Value(),
			Language: s.language,
		})
	})
}

// EndSession terminates the room for all participants.
func (s *Session) EndSession() error {
	return s.request(protocol.EventEndSession, protocol.RoomRef{RoomID: s.cfg.RoomID})
}

// Leave departs voluntarily and disconnects.
func (s *Session) Leave() error {
	return s.do(func() error {
		err := s.send(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: s.cfg.RoomID, Username: s.cfg.Username})
		s.teardown(ErrClosed)
		return err
	})
}

// Close disconnects without announcing a departure; the relay notices the
// dropped channel.
func (s *Session) Close() {
	s.post(func() { s.teardown(ErrClosed) })
	<-s.done
}

// Done is closed once the session is disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err is the cause of the disconnect, nil while connected.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.cause
	default:
		return nil
	}
}

// Snapshot returns the session state as seen by its event loop.
func (s *Session) Snapshot() Snapshot {
	result := make(chan Snapshot, 1)
	snap := func() {
		result <- Snapshot{
			State:        s.state,
			Users:        s.roster.Users(),
			RosterLoaded: s.roster.Loaded(),
			TypingUsers:  s.typing.TypingUsers(),
			Language:     s.language,
			Problem:      s.problem,
			Content:      s.engine.Content(),
			Output:       s.output,
			LastSentID:   s.engine.Counter(),
		}
	}
	if !s.post(snap) {
		// The loop is gone; nothing mutates the fields any more.
		snap()
	}
	return <-result
}

// Presence returns the cached presence of another user.
func (s *Session) Presence(username string) (models.Presence, bool) {
	type result struct {
		p  models.Presence
		ok bool
	}
	ch := make(chan result, 1)
	if !s.post(func() {
		p, ok := s.presence.Presence(username)
		ch <- result{p, ok}
	}) {
		return models.Presence{}, false
	}
	r := <-ch
	return r.p, r.ok
}

func (s *Session) request(event string, payload interface{}) error {
	return s.do(func() error { return s.send(event, payload) })
}

// do runs fn on the event loop and waits for its result.
func (s *Session) do(fn func() error) error {
	errc := make(chan error, 1)
	if !s.post(func() {
		if s.state == StateDisconnected {
			errc <- ErrClosed
			return
		}
		errc <- fn()
	}) {
		return ErrClosed
	}
	return <-errc
}

func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.events:
			// Nothing runs after teardown, even if it was queued before.
			select {
			case <-s.done:
				return
			default:
			}
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *Session) read() {
	for env := range s.transport.Receive() {
		env := env
		if !s.post(func() { s.dispatch(env) }) {
			return
		}
	}
	s.post(func() {
		s.cfg.Listener.OnStatus("Disconnected")
		s.teardown(fmt.Errorf("%w: channel closed", ErrTransport))
	})
}

func (s *Session) fetchRoom(ctx context.Context) {
	if s.cfg.Store == nil {
		s.post(func() {
			if s.state == StateJoined || s.state == StateConnecting {
				s.setState(StateLobby)
			}
		})
		return
	}

	view, err := s.cfg.Store.GetRoom(ctx, s.cfg.RoomID)
	s.post(func() {
		if err != nil {
			s.logger.Warn("Failed to fetch room state", zap.Error(err))
			s.cfg.Listener.OnStatus("Failed to load room state")
			return
		}
		// A problem_loaded or lobby_activated broadcast may already have decided the mode.
		if s.state != StateJoined && s.state != StateConnecting {
			return
		}
		if view.Language != "" {
			s.language = view.Language
			s.cfg.Listener.OnLanguage(view.Language)
		}
		if view.Problem == nil || view.Problem.Title == "" {
			s.setState(StateLobby)
			return
		}
		s.problem = view.Problem
		s.cfg.Listener.OnProblem(view.Problem)
		if !s.remoteSeen {
			content := view.Content
			if content == "" {
				content = view.Problem.TemplateCode
			}
			s.resetBuffer(content)
		}
		s.setState(StateCoding)
	})
}

func (s *Session) dispatch(env protocol.Envelope) {
	if s.state == StateDisconnected {
		return
	}
	switch env.Event {
	case protocol.EventExistingUsers:
		if !s.roster.ApplyExistingUsers(env.Data) {
			s.logger.Debug("Roster snapshot in unexpected shape, treated as empty")
		}
		s.rosterChanged()

	case protocol.EventUserJoined:
		var msg protocol.UserEvent
		if s.decode(env, &msg) {
			s.roster.ApplyJoin(msg.Username)
			s.rosterChanged()
		}

	case protocol.EventUserLeft:
		var msg protocol.UserEvent
		if s.decode(env, &msg) {
			s.roster.ApplyLeave(msg.Username)
			s.presence.Remove(msg.Username)
			s.typing.Remove(msg.Username)
			s.rosterChanged()
			s.cfg.Listener.OnTyping(s.typing.Text())
		}

	case protocol.EventCodeUpdate:
		var msg protocol.CodeUpdate
		if s.decode(env, &msg) {
			s.applyRemote(msg)
		}

	case protocol.EventPresenceCursor:
		var msg protocol.PresenceCursor
		if s.decode(env, &msg) {
			s.presence.OnRemoteCursor(msg.Username, msg.Cursor)
		}

	case protocol.EventPresenceSelection:
		var msg protocol.PresenceSelection
		if s.decode(env, &msg) {
			s.presence.OnRemoteSelection(msg.Username, msg.Start, msg.End)
		}

	case protocol.EventPresenceSnapshot:
		var msg protocol.PresenceSnapshot
		if s.decode(env, &msg) {
			s.presence.OnSnapshot(msg.Users)
		}

	case protocol.EventTyping:
		var msg protocol.Typing
		if s.decode(env, &msg) {
			s.typing.OnRemoteTyping(msg.Username, msg.Typing)
			s.cfg.Listener.OnTyping(s.typing.Text())
		}

	case protocol.EventProblemLoaded:
		var msg protocol.ProblemLoaded
		if s.decode(env, &msg) {
			problem := msg.Problem
			s.problem = &problem
			if msg.Language != "" {
				s.language = msg.Language
				s.cfg.Listener.OnLanguage(msg.Language)
			}
			s.cfg.Listener.OnProblem(&problem)
			content := msg.Content
			if content == "" {
				content = problem.TemplateCode
			}
			s.resetBuffer(content)
			s.setState(StateCoding)
		}

	case protocol.EventLobbyActivated:
		s.problem = nil
		s.cfg.Listener.OnProblem(nil)
		s.setState(StateLobby)

	case protocol.EventLanguageUpdated:
		var msg protocol.LanguageUpdated
		if s.decode(env, &msg) {
			s.language = msg.Language
			s.cfg.Listener.OnLanguage(msg.Language)
		}

	case protocol.EventExecutionResult:
		var msg protocol.ExecutionResult
		if s.decode(env, &msg) {
			s.output = msg.Output
			if msg.Error != "" {
				s.output = msg.Error
			}
			s.cfg.Listener.OnOutput(s.output)
		}

	case protocol.EventSubmitResult:
		var msg protocol.SubmitResult
		if s.decode(env, &msg) {
			s.output = fmt.Sprintf("Verdict: %s\n\n%s", msg.Verdict, msg.Details)
			s.cfg.Listener.OnOutput(s.output)
		}

	case protocol.EventSessionEnded:
		s.cfg.Listener.OnStatus("The room session has ended")
		s.teardown(ErrSessionEnded)
		// Done is already closed, so the listener may call Leave or Close.
		s.cfg.Listener.OnSessionEnded()

	case protocol.EventError:
		var msg protocol.ErrorMessage
		if s.decode(env, &msg) {
			s.cfg.Listener.OnStatus(msg.Reason)
		}

	default:
		s.logger.Debug("Ignoring event", zap.String("event", env.Event))
	}
}

func (s *Session) decode(env protocol.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		s.logger.Debug("Failed to decode payload", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) applyRemote(msg protocol.CodeUpdate) {
	s.applying.Store(true)
	err := s.engine.RemoteUpdate(msg)
	s.applying.Store(false)
	if err != nil {
		s.logger.Debug("Discarded code update", zap.Int64("messageID", msg.MessageID), zap.Error(err))
		return
	}
	s.remoteSeen = true
	s.rawContent = s.engine.Content()
}

func (s *Session) resetBuffer(content string) {
	s.applying.Store(true)
	s.engine.Reset(content)
	s.applying.Store(false)
	s.rawContent = content
}

func (s *Session) flushCode() {
	if s.state == StateDisconnected {
		return
	}
	msg, ok := s.engine.LocalChange(s.rawContent)
	if !ok {
		return
	}
	s.send(protocol.EventCodeChange, msg)
}

func (s *Session) emitTyping(typing bool) {
	if s.state == StateDisconnected {
		return
	}
	s.send(protocol.EventTyping, protocol.Typing{RoomID: s.cfg.RoomID, Username: s.cfg.Username, Typing: typing})
}

func (s *Session) emitPresence(cursor *models.Position, selection *models.Range) {
	if s.state == StateDisconnected {
		return
	}
	if cursor != nil {
		s.send(protocol.EventCursorMove, protocol.CursorMove{
			RoomID:   s.cfg.RoomID,
			Username: s.cfg.Username,
			Line:     cursor.Line,
			Column:   cursor.Column,
		})
	}
	if selection != nil {
		s.send(protocol.EventSelectionChange, protocol.SelectionChange{
			RoomID:   s.cfg.RoomID,
			Username: s.cfg.Username,
			Start:    selection.Start,
			End:      selection.End,
		})
	}
}

func (s *Session) rosterChanged() {
	s.cfg.Listener.OnRoster(s.roster.Users(), s.roster.Loaded())
	s.cfg.Listener.OnStatus(s.roster.Status())
}

func (s *Session) send(event string, payload interface{}) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := s.transport.Send(env); err != nil {
		s.logger.Warn("Failed to send", zap.String("event", event), zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) setState(state State) {
	if s.state == state || s.state == StateDisconnected {
		return
	}
	s.logger.Debug("Session state changed", zap.Stringer("from", s.state), zap.Stringer("to", state))
	s.state = state
	s.cfg.Listener.OnStateChange(state)
}

// teardown cancels every pending timer so nothing is emitted after the
// disconnect, drops presence and closes the channel.
func (s *Session) teardown(cause error) {
	if s.state == StateDisconnected {
		return
	}
	s.setState(StateDisconnected)
	s.code.Cancel()
	s.typing.Reset()
	s.presence.Clear()
	s.cfg.Editor.OnChange(nil)
	s.cfg.Editor.OnCursorActivity(nil)
	if s.transport != nil {
		_ = s.transport.Close()
	}
	s.closeOnce.Do(func() {
		s.cause = cause
		close(s.done)
	})
}

// loopClock delivers timer expiries onto the session's event loop.
type loopClock struct {
	base Clock
	post func(func()) bool
}

func (c loopClock) Now() time.Time {
	return c.base.Now()
}

func (c loopClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}
