// Package executor runs external commands locally or over SSH and captures
// their output streams.
package executor

import (
	"context"
	"io"
)

// Executor runs a command to completion with nothing on stdin.
type Executor interface {
	Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (exitCode int, err error)
	Name() string
}

// Result holds both captured output streams of one command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}

// Failed reports whether the command could not run or exited non-zero.
func (r *Result) Failed() bool {
	return r.Error != nil || r.ExitCode != 0
}
