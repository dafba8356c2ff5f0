package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/auth"
	"github.com/Icerzack/codecollab/internal/models"
	eStorage "github.com/Icerzack/codecollab/internal/storage/event"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 8
)

type identityKey struct{}

// authenticate resolves the caller's identity. Unless tokens are required,
// callers without a valid token go through anonymously.
func (rest *Rest) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rest.validator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := auth.TokenFromRequest(r, rest.config.JwtHeaderName)
		identity, err := rest.validator.Validate(r.Context(), token)
		if err != nil {
			if rest.config.JwtRequired {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func identityFrom(ctx context.Context) auth.Identity {
	identity, _ := ctx.Value(identityKey{}).(auth.Identity)
	return identity
}

func (rest *Rest) createRoom(w http.ResponseWriter, r *http.Request) {
	subject := identityFrom(r.Context()).Subject

	var id string
	for attempt := 0; attempt < 3; attempt++ {
		candidate, err := gonanoid.Generate(roomIDAlphabet, roomIDLength)
		if err != nil {
			rest.config.Logger.Error("Failed to generate room id", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}
		err = rest.rooms.Create(r.Context(), models.NewRoom(candidate, subject))
		if errors.Is(err, room.ErrRoomExists) {
			continue
		}
		if err != nil {
			rest.config.Logger.Error("Failed to create room", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}
		id = candidate
		break
	}
	if id == "" {
		writeError(w, http.StatusConflict, "failed to allocate a room id")
		return
	}

	if e, err := eStorage.NewEvent(id, models.EventTypeCreateRoom, map[string]string{"createdBy": subject}); err == nil {
		if err := rest.events.Record(r.Context(), e); err != nil {
			rest.config.Logger.Error("Failed to record event", zap.String("roomID", id), zap.Error(err))
		}
	}
	rest.config.Logger.Info("Room created", zap.String("roomID", id))
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": id})
}

func (rest *Rest) getRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stored, err := rest.rooms.Get(r.Context(), id)
	if errors.Is(err, room.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		rest.config.Logger.Error("Failed to get room", zap.String("roomID", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get room")
		return
	}

	view := models.RoomView{
		ID:       stored.ID,
		Content:  stored.Content,
		Language: stored.Language,
	}
	if stored.ProblemID != nil {
		p, err := rest.problems.Get(r.Context(), *stored.ProblemID)
		if err != nil {
			rest.config.Logger.Warn("Room problem is missing", zap.String("roomID", id), zap.Error(err))
		} else {
			details := p.Details()
			view.Problem = &details
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (rest *Rest) getPresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rest.wsServer.Presence(chi.URLParam(r, "id")))
}

func (rest *Rest) listProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := rest.problems.List(r.Context())
	if err != nil {
		rest.config.Logger.Error("Failed to list problems", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	writeJSON(w, http.StatusOK, problems)
}

func (rest *Rest) getTimeline(w http.ResponseWriter, r *http.Request) {
	events, ok := rest.timeline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (rest *Rest) getSummary(w http.ResponseWriter, r *http.Request) {
	events, ok := rest.timeline(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(chi.URLParam(r, "id"), events))
}

func (rest *Rest) timeline(w http.ResponseWriter, r *http.Request) ([]models.SessionEvent, bool) {
	id := chi.URLParam(r, "id")
	events, err := rest.events.List(r.Context(), id)
	if err != nil {
		rest.config.Logger.Error("Failed to list session events", zap.String("roomID", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list session events")
		return nil, false
	}
	if events == nil {
		events = []models.SessionEvent{}
	}
	return events, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}
