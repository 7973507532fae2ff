package executor

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewLocal(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunAndCapture_SeparatesStreams(t *testing.T) {
	local := newTestLocal(t)

	result, err := RunAndCapture(context.Background(), local, "sh", "-c", "printf key; printf addr >&2")
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "key", result.Stdout)
	assert.Equal(t, "addr", result.Stderr)
	assert.False(t, result.Failed())
}

func TestRunAndCapture_NonZeroExit(t *testing.T) {
	local := newTestLocal(t)

	result, err := RunAndCapture(context.Background(), local, "sh", "-c", "printf oops >&2; exit 3")
	require.Error(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "oops", result.Stderr)
	assert.True(t, result.Failed())
}

func TestRunAndCapture_MissingBinary(t *testing.T) {
	local := NewLocal(slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, err := RunAndCapture(context.Background(), local, "/nonexistent/prism", "keygen")
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
}

func TestLocal_Timeout(t *testing.T) {
	local := newTestLocal(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := local.Execute(ctx, io.Discard, io.Discard, "sh", "-c", "sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildCommandString(t *testing.T) {
	assert.Equal(t, "prism", buildCommandString("prism", nil))
	assert.Equal(t, "prism keygen --addr", buildCommandString("prism", []string{"keygen", "--addr"}))
}
