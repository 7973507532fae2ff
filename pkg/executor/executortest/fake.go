// Package executortest provides a scripted executor.Executor for tests.
package executortest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Response is what one scripted invocation writes and returns.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Fake replays Responses in order and records every invocation.
type Fake struct {
	mu        sync.Mutex
	responses []Response
	Calls     []string
}

func New(responses ...Response) *Fake {
	return &Fake{responses: responses}
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))

	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if len(f.responses) == 0 {
		return -1, fmt.Errorf("fake executor: no response scripted for call %d", len(f.Calls))
	}

	resp := f.responses[0]
	f.responses = f.responses[1:]

	_, _ = io.WriteString(stdout, resp.Stdout)
	_, _ = io.WriteString(stderr, resp.Stderr)

	if resp.Err != nil {
		return resp.ExitCode, resp.Err
	}
	if resp.ExitCode != 0 {
		return resp.ExitCode, fmt.Errorf("command exited with code %d", resp.ExitCode)
	}
	return 0, nil
}
