// Package evaluate adapts an external command interpreter behind the
// narrow interface the line editor consumes. The editor never parses or
// interprets a line; it hands the accepted text over and receives an exit
// status back.
package evaluate

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Executor runs one finalized command line.
type Executor interface {
	// Execute interprets line and returns its exit status. A non-zero
	// status is not an error; err is reserved for interpreter-level
	// failures (parse errors report status 2 with err == nil, matching
	// shell convention).
	Execute(ctx context.Context, line string) (int, error)
}

// ShellExecutor interprets lines with a POSIX shell interpreter.
type ShellExecutor struct {
	runner *interp.Runner
	parser *syntax.Parser
	logger *zap.Logger
}

// NewShellExecutor builds an interpreter wired to the process's standard
// streams and environment.
func NewShellExecutor(logger *zap.Logger) (*ShellExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner, err := interp.New(
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.Interactive(true),
	)
	if err != nil {
		return nil, err
	}
	return &ShellExecutor{
		runner: runner,
		parser: syntax.NewParser(),
		logger: logger,
	}, nil
}

// Execute implements Executor.
func (e *ShellExecutor) Execute(ctx context.Context, line string) (int, error) {
	prog, err := e.parser.Parse(strings.NewReader(line), "lusush")
	if err != nil {
		e.logger.Debug("parse error", zap.Error(err))
		os.Stderr.WriteString("lusush: " + err.Error() + "\n")
		return 2, nil
	}

	err = e.runner.Run(ctx, prog)
	if code, ok := interp.IsExitStatus(err); ok {
		return int(code), nil
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

// Dir returns the interpreter's current working directory, used to stamp
// history archive records.
func (e *ShellExecutor) Dir() string {
	return e.runner.Dir
}

// Exited reports whether the interpreter has seen an exit builtin and the
// session should end.
func (e *ShellExecutor) Exited() bool {
	return e.runner.Exited()
}

// Builtins lists the interpreter builtins offered to command completion.
func Builtins() []string {
	return []string{
		"alias", "bg", "cd", "command", "echo", "eval", "exec", "exit",
		"export", "false", "fg", "getopts", "hash", "jobs", "kill",
		"printf", "pwd", "read", "readonly", "return", "set", "shift",
		"source", "test", "times", "trap", "true", "type", "ulimit",
		"umask", "unalias", "unset", "wait",
	}
}
