package client

import "github.com/Icerzack/codecollab/internal/models"

// Listener receives what a session surfaces to the participant. Methods are
// called from the session's event loop and must not block. Apart from
// OnSessionEnded they must not call back into the Session: its methods wait on
// that same loop.
type Listener interface {
	OnStateChange(state State)
	OnStatus(text string)
	OnRoster(users []models.Member, loaded bool)
	OnTyping(text string)
	OnLanguage(language string)
	OnProblem(problem *models.ProblemDetails)
	OnOutput(text string)
	// OnSessionEnded is the terminal notice; the participant must leave the room.
	// It runs after the session is torn down, so Leave and Close return at once.
	OnSessionEnded()
}

// NopListener ignores everything. Embed it to implement a subset of Listener.
type NopListener struct{}

func (NopListener) OnStateChange(State) {}
func (NopListener) OnStatus(string) {}
func (NopListener) OnRoster([]models.Member, bool) {}
func (NopListener) OnTyping(string) {}
func (NopListener) OnLanguage(string) {}
func (NopListener) OnProblem(*models.ProblemDetails) {}
func (NopListener) OnOutput(string) {}
func (NopListener) OnSessionEnded() {}
