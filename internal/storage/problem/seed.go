package problem

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Icerzack/codecollab/internal/models"
)

type seedFile struct {
	Problems []models.Problem `yaml:"problems"`
}

// DefaultProblems is the catalogue used when no seed file is configured.
func DefaultProblems() []models.Problem {
	return []models.Problem{
		{
			Title:        "Reverse a String",
			Description:  "Write a Python function `solve(s)` that takes a string `s` and returns the string reversed.",
			TemplateCode: "def solve(s):\n    # Your code here\n    return",
			TestCases: []models.TestCase{
				{Input: `"hello"`, ExpectedOutput: "olleh", Hidden: true},
				{Input: `"world"`, ExpectedOutput: "dlrow", Hidden: true},
				{Input: `""`, ExpectedOutput: "", Hidden: true},
			},
		},
		{
			Title: "Two Sum",
			Description: "Write a Python function `solve(nums, target)` that takes a list of integers `nums` and an " +
				"integer `target`, and returns the indices of the two numbers that add up to the target.",
			TemplateCode: "def solve(nums, target):\n    # Your code here\n    return",
			TestCases: []models.TestCase{
				{Input: "[2, 7, 11, 15], 9", ExpectedOutput: "[0, 1]", Hidden: true},
				{Input: "[3, 2, 4], 6", ExpectedOutput: "[1, 2]", Hidden: true},
				{Input: "[3, 3], 6", ExpectedOutput: "[0, 1]", Hidden: true},
			},
		},
	}
}

// LoadSeedFile reads a YAML catalogue of the form {problems: [...]}.
func LoadSeedFile(path string) ([]models.Problem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening seed file %w", err)
	}
	defer file.Close()

	var seed seedFile
	if err := yaml.NewDecoder(file).Decode(&seed); err != nil {
		return nil, fmt.Errorf("error decoding seed file %w", err)
	}
	return seed.Problems, nil
}

// Seed adds the problems whose title is not in s yet.
func Seed(ctx context.Context, s Storage, problems []models.Problem, logger *zap.Logger) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	titles := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		titles[p.Title] = struct{}{}
	}

	for i := range problems {
		p := problems[i]
		if _, ok := titles[p.Title]; ok {
			continue
		}
		if err := s.Create(ctx, &p); err != nil {
			return fmt.Errorf("error seeding problem %q: %w", p.Title, err)
		}
		titles[p.Title] = struct{}{}
		logger.Info("Seeded problem", zap.Int64("problemID", p.ID), zap.String("title", p.Title))
	}
	return nil
}
