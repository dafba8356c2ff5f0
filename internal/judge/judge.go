// Package judge runs room code and judges submissions against a problem's test cases.
package judge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

const (
	VerdictAccepted     = "Accepted"
	VerdictWrongAnswer  = "Wrong Answer"
	VerdictRuntimeError = "Runtime Error"
	VerdictError        = "Error"
)

type Judge struct {
	executor Executor
	logger   *zap.Logger
}

func NewJudge(executor Executor, logger *zap.Logger) *Judge {
	if executor == nil {
		executor = Unavailable{}
	}
	return &Judge{executor: executor, logger: logger}
}

// Execute runs code as is.
func (j *Judge) Execute(ctx context.Context, code, language string) protocol.ExecutionResult {
	res, err := j.executor.Run(ctx, Program{Language: language, Source: code})
	if err != nil {
		j.logger.Debug("Execution failed", zap.String("language", language), zap.Error(err))
		return protocol.ExecutionResult{Error: err.Error()}
	}
	return protocol.ExecutionResult{Output: res.Stdout, Error: res.Stderr}
}

// Submit judges code against every test case of p, stopping at the first failure.
func (j *Judge) Submit(ctx context.Context, p *models.Problem, code, language string) protocol.SubmitResult {
	if p == nil {
		return protocol.SubmitResult{Verdict: VerdictError, Details: "No problem associated with this room."}
	}
	if len(p.TestCases) == 0 {
		return protocol.SubmitResult{Verdict: VerdictError, Details: "Could not find test cases for this problem."}
	}

	for i, tc := range p.TestCases {
		program, err := harness(language, code, tc.Input)
		if err != nil {
			return protocol.SubmitResult{Verdict: VerdictError, Details: err.Error()}
		}
		res, err := j.executor.Run(ctx, program)
		if err != nil {
			return protocol.SubmitResult{Verdict: VerdictError, Details: err.Error()}
		}
		if res.Stderr != "" {
			return protocol.SubmitResult{
				Verdict: VerdictRuntimeError,
				Details: fmt.Sprintf("Test Case #%d failed with an error:\n%s", i+1, res.Stderr),
			}
		}
		if strings.TrimSpace(res.Stdout) != strings.TrimSpace(tc.ExpectedOutput) {
			return protocol.SubmitResult{
				Verdict: VerdictWrongAnswer,
				Details: fmt.Sprintf("Test Case #%d failed.\nExpected: %s\nGot: %s", i+1, tc.ExpectedOutput, res.Stdout),
			}
		}
	}

	return protocol.SubmitResult{
		Verdict: VerdictAccepted,
		Details: fmt.Sprintf("Congratulations! You passed all %d test cases.", len(p.TestCases)),
	}
}

// harness wraps the user's solve function so that it is called with the test
// case arguments and its result printed.
func harness(language, code, args string) (Program, error) {
	switch language {
	case "python":
		src := code + "\n\n" +
			"try:\n" +
			"    print(solve(" + args + "))\n" +
			"except Exception as e:\n" +
			"    import sys\n" +
			"    print(e, file=sys.stderr)\n"
		return Program{Language: language, Source: src}, nil
	case "javascript":
		src := code + "\n\n" +
			"try {\n" +
			"  const result = solve(" + args + ");\n" +
			"  console.log(Array.isArray(result) ? '[' + result.join(', ') + ']' : String(result));\n" +
			"} catch (e) {\n" +
			"  console.error(String(e));\n" +
			"}\n"
		return Program{Language: language, Source: src}, nil
	}
	return Program{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
}
