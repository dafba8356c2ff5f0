package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Icerzack/codecollab/internal/auth"
	"github.com/Icerzack/codecollab/internal/rest/ws"
	"github.com/Icerzack/codecollab/internal/storage/event"
	"github.com/Icerzack/codecollab/internal/storage/problem"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

const shutdownTimeout = 10 * time.Second

type Rest struct {
	config *Config

	server *http.Server

	wsServer  *ws.WebSocketHandler
	validator auth.Validator
	rooms     room.Storage
	problems  problem.Storage
	events    event.Storage

	// pools are the postgres connections keyed by dsn
	pools map[string]*gorm.DB

	// closers release backend connections on Stop, in reverse order
	closers []func() error
}

func NewRest(config *Config) *Rest {
	return &Rest{
		config: config,
	}
}

// Handler builds the backends and returns the router serving them.
func (rest *Rest) Handler() (http.Handler, error) {
	usersStorage := rest.defineUserStorage()

	var err error
	if rest.rooms, err = rest.defineRoomStorage(); err != nil {
		return nil, err
	}
	if rest.problems, err = rest.defineProblemStorage(); err != nil {
		return nil, err
	}
	if rest.events, err = rest.defineEventStorage(); err != nil {
		return nil, err
	}
	selectedBroker, err := rest.defineBroker()
	if err != nil {
		return nil, err
	}
	rest.validator = rest.defineValidator()

	rest.wsServer = ws.NewWebSocketHandler(ws.Config{
		JWTHeaderName: rest.config.JwtHeaderName,
		JWTRequired:   rest.config.JwtRequired,
		Validator:     rest.validator,
		Users:         usersStorage,
		Rooms:         rest.rooms,
		Problems:      rest.problems,
		Events:        rest.events,
		Broker:        selectedBroker,
		Judge:         rest.defineJudge(),
		Logger:        rest.config.Logger,
	})

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Define the /ping endpoint
	router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("pong"))
		if err != nil {
			return
		}
	})

	// Define the /ws endpoint
	router.HandleFunc("/ws", rest.wsServer.Handle)

	router.Route("/api", func(r chi.Router) {
		r.Use(rest.authenticate)

		r.Post("/rooms", rest.createRoom)
		r.Get("/rooms/{id}", rest.getRoom)
		r.Get("/rooms/{id}/presence", rest.getPresence)
		r.Get("/problems", rest.listProblems)
		r.Get("/sessions/{id}/timeline", rest.getTimeline)
		r.Get("/sessions/{id}/summary", rest.getSummary)
	})

	return router, nil
}

func (rest *Rest) Start() {
	handler, err := rest.Handler()
	if err != nil {
		rest.config.Logger.Error("Failed to set up server", zap.Error(err))
		return
	}

	rest.server = &http.Server{
		Addr:              ":" + strconv.Itoa(rest.config.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rest.config.Logger.Info("Listening", zap.Int("port", rest.config.Port))
	if err := rest.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rest.config.Logger.Error("server error", zap.Error(err))
		return
	}
}

func (rest *Rest) Stop() {
	if rest.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rest.server.Shutdown(ctx); err != nil {
			rest.config.Logger.Error("server error", zap.Error(err))
		}
	}
	if rest.wsServer != nil {
		rest.wsServer.Shutdown()
	}
	rest.close()
}

func (rest *Rest) close() {
	for i := len(rest.closers) - 1; i >= 0; i-- {
		if err := rest.closers[i](); err != nil {
			rest.config.Logger.Error("Failed to release backend", zap.Error(err))
		}
	}
	rest.closers = nil
}
