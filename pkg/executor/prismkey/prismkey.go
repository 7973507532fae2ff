// Package prismkey wraps the node binary's key generation subcommand.
package prismkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terabiome/testbed/pkg/executor"
)

var (
	ErrEmptyKey     = errors.New("keygen printed no key material")
	ErrEmptyAddress = errors.New("keygen printed no address")
)

// KeyPair is one generated secret key and the address derived from it.
type KeyPair struct {
	Key     string
	Address string
}

// Generate runs `<binary> keygen --addr`. The binary prints the key on stdout
// and the derived address on stderr.
func Generate(ctx context.Context, exec executor.Executor, binary string) (*KeyPair, error) {
	result, err := executor.RunAndCapture(ctx, exec, binary, "keygen", "--addr")
	if err != nil {
		return nil, fmt.Errorf("%s keygen failed: %w\nstderr: %s", binary, err, strings.TrimSpace(result.Stderr))
	}

	keyPair := &KeyPair{
		Key:     strings.TrimSpace(result.Stdout),
		Address: strings.TrimSpace(result.Stderr),
	}

	if keyPair.Key == "" {
		return nil, ErrEmptyKey
	}
	if keyPair.Address == "" {
		return nil, ErrEmptyAddress
	}

	return keyPair, nil
}
