package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/pkg/executor"
	"github.com/terabiome/testbed/pkg/executor/executortest"
	"github.com/terabiome/testbed/pkg/executor/prismkey"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKeypairService(fs afero.Fs, exec executor.Executor, timeout time.Duration) *KeypairService {
	return NewKeypairService(fs, exec, KeypairConfig{
		PrismBinary: "./prism",
		KeypairDir:  "keypairs",
		Timeout:     timeout,
	}, discardLogger())
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestProvision(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := executortest.New(
		executortest.Response{Stdout: "K0\n", Stderr: "X0\n"},
		executortest.Response{Stdout: "K1\n", Stderr: "X1\n"},
	)
	svc := newKeypairService(fs, fake, 0)

	result, err := svc.Provision(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, "K0", readFile(t, fs, "keypairs/0.pkcs8"))
	assert.Equal(t, "K1", readFile(t, fs, "keypairs/1.pkcs8"))
	assert.Equal(t, "--fund-addr X0 --fund-addr X1", readFile(t, fs, "keypairs/fund_addr.txt"))

	assert.Equal(t, []string{"keypairs/0.pkcs8", "keypairs/1.pkcs8"}, result.KeyFiles)
	assert.Equal(t, "--fund-addr X0 --fund-addr X1", result.FundingToken)
	assert.Equal(t, []string{"./prism keygen --addr", "./prism keygen --addr"}, fake.Calls)
}

func TestProvision_ZeroCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := executortest.New()
	svc := newKeypairService(fs, fake, 0)

	result, err := svc.Provision(context.Background(), 0)
	require.NoError(t, err)

	assert.Empty(t, fake.Calls)
	assert.Empty(t, result.KeyFiles)
	assert.Equal(t, "", readFile(t, fs, "keypairs/fund_addr.txt"))
}

func TestProvision_NegativeCount(t *testing.T) {
	svc := newKeypairService(afero.NewMemMapFs(), executortest.New(), 0)

	_, err := svc.Provision(context.Background(), -1)
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestProvision_FailureAbortsBeforeToken(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := executortest.New(
		executortest.Response{Stdout: "K0", Stderr: "X0"},
		executortest.Response{Stderr: "segfault", ExitCode: 139},
	)
	svc := newKeypairService(fs, fake, 0)

	_, err := svc.Provision(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrProvisioning)
	assert.ErrorContains(t, err, "slot 1")

	// the slot written before the failure stays, no token is produced
	assert.Equal(t, "K0", readFile(t, fs, "keypairs/0.pkcs8"))
	exists, err := afero.Exists(fs, "keypairs/fund_addr.txt")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Len(t, fake.Calls, 2)
}

func TestProvision_EmptyAddress(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := newKeypairService(fs, executortest.New(executortest.Response{Stdout: "K0", Stderr: "  \n"}), 0)

	_, err := svc.Provision(context.Background(), 1)
	assert.ErrorIs(t, err, errdefs.ErrProvisioning)
	assert.ErrorIs(t, err, prismkey.ErrEmptyAddress)

	exists, _ := afero.Exists(fs, "keypairs/0.pkcs8")
	assert.False(t, exists)
}

// blockingExecutor never finishes until its context ends.
type blockingExecutor struct{}

func (blockingExecutor) Name() string { return "blocking" }

func (blockingExecutor) Execute(ctx context.Context, _, _ io.Writer, _ string, _ ...string) (int, error) {
	<-ctx.Done()
	return -1, ctx.Err()
}

func TestProvision_Timeout(t *testing.T) {
	svc := newKeypairService(afero.NewMemMapFs(), blockingExecutor{}, 20*time.Millisecond)

	_, err := svc.Provision(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrProvisioning)
	assert.ErrorContains(t, err, "did not finish within")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadFundingToken(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := ReadFundingToken(fs, "keypairs/fund_addr.txt")
	assert.ErrorIs(t, err, errdefs.ErrMissingInput)

	require.NoError(t, afero.WriteFile(fs, "keypairs/fund_addr.txt", []byte("--fund-addr X0\n"), 0o644))
	token, err := ReadFundingToken(fs, "keypairs/fund_addr.txt")
	require.NoError(t, err)
	assert.Equal(t, "--fund-addr X0", token)
}
