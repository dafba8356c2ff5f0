package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	NoExecutorType      = "none"
	ProcessExecutorType = "process"
)

var (
	ErrExecutorUnavailable = errors.New("code execution is not configured")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Program is a piece of source to run once.
type Program struct {
	Language string
	Source   string
	Stdin    string
}

// Result is what a finished program printed.
type Result struct {
	Stdout string
	Stderr string
}

// Executor runs untrusted programs. Implementations own sandboxing.
type Executor interface {
	Run(ctx context.Context, p Program) (Result, error)
}

// Unavailable refuses every program.
type Unavailable struct{}

func (Unavailable) Run(context.Context, Program) (Result, error) {
	return Result{}, ErrExecutorUnavailable
}

type interpreter struct {
	command []string
	ext     string
}

var interpreters = map[string]interpreter{
	"python":     {command: []string{"python3"}, ext: ".py"},
	"javascript": {command: []string{"node"}, ext: ".js"},
}

// ProcessExecutor runs programs with a local interpreter, killing them after
// timeout. It does no sandboxing and is meant for trusted deployments.
type ProcessExecutor struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewProcessExecutor(timeout time.Duration, logger *zap.Logger) *ProcessExecutor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProcessExecutor{timeout: timeout, logger: logger}
}

func (e *ProcessExecutor) Run(ctx context.Context, p Program) (Result, error) {
	in, ok := interpreters[p.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, p.Language)
	}

	dir, err := os.MkdirTemp("", "codecollab-run-*")
	if err != nil {
		return Result{}, fmt.Errorf("error creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "main"+in.ext)
	if err := os.WriteFile(path, []byte(p.Source), 0o600); err != nil {
		return Result{}, fmt.Errorf("error writing program: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, in.command[1:]...), path)
	cmd := exec.CommandContext(ctx, in.command[0], args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(p.Stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Stderr = fmt.Sprintf("time limit of %s exceeded", e.timeout)
		return res, nil
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Result{}, fmt.Errorf("error starting %s: %w", in.command[0], err)
	}
	if exitErr != nil && res.Stderr == "" {
		res.Stderr = exitErr.Error()
	}
	e.logger.Debug("Program finished", zap.String("language", p.Language), zap.Bool("failed", res.Stderr != ""))
	return res, nil
}
