package inmemory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/problem"
)

func TestSeedDefaults(t *testing.T) {
	s := NewStorage(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, problem.Seed(ctx, s, problem.DefaultProblems(), zap.NewNop()))
	require.NoError(t, problem.Seed(ctx, s, problem.DefaultProblems(), zap.NewNop()))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ProblemSummary{{ID: 1, Title: "Reverse a String"}, {ID: 2, Title: "Two Sum"}}, list)

	p, err := s.Get(ctx, 2)
	require.NoError(t, err)
	require.Len(t, p.TestCases, 3)
	assert.Equal(t, int64(2), p.TestCases[0].ProblemID)
	assert.Equal(t, "[0, 1]", p.TestCases[0].ExpectedOutput)

	_, err = s.Get(ctx, 9)
	assert.ErrorIs(t, err, problem.ErrProblemNotFound)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problems.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
problems:
  - title: FizzBuzz
    description: Print fizz and buzz.
    template_code: |
      def solve(n):
          return
    test_cases:
      - input: "3"
        expected_output: Fizz
      - input: "5"
        expected_output: Buzz
        hidden: true
`), 0o600))

	problems, err := problem.LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "FizzBuzz", problems[0].Title)
	assert.Equal(t, "def solve(n):\n    return\n", problems[0].TemplateCode)
	require.Len(t, problems[0].TestCases, 2)
	assert.False(t, problems[0].TestCases[0].Hidden)
	assert.True(t, problems[0].TestCases[1].Hidden)

	_, err = problem.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStorage(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &models.Problem{Title: "A", TestCases: []models.TestCase{{Input: "1"}}}))

	p, err := s.Get(ctx, 1)
	require.NoError(t, err)
	p.TestCases[0].Input = "changed"

	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", again.TestCases[0].Input)
}
