package problem

import (
	"context"
	"errors"

	"github.com/Icerzack/codecollab/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
	PostgresStorageType = "postgres"
)

var ErrProblemNotFound = errors.New("problem not found")

// Storage is the problem catalogue.
type Storage interface {
	List(ctx context.Context) ([]models.ProblemSummary, error)
	// Get returns the problem with its test cases.
	Get(ctx context.Context, id int64) (*models.Problem, error)
	// Create stores p and its test cases, assigning ids that are zero.
	Create(ctx context.Context, p *models.Problem) error
}
