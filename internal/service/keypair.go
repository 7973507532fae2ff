package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/pkg/constants"
	"github.com/terabiome/testbed/pkg/executor"
	"github.com/terabiome/testbed/pkg/executor/prismkey"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// KeypairConfig locates the key-generation binary and the keypair directory.
type KeypairConfig struct {
	PrismBinary string
	KeypairDir  string
	// Timeout bounds each keygen invocation. Zero waits forever.
	Timeout time.Duration
}

// KeypairService generates keypairs with the node binary and persists them
// together with the aggregated funding token.
type KeypairService struct {
	fs     afero.Fs
	exec   executor.Executor
	config KeypairConfig
	logger *slog.Logger

	keygenCounter     metric.Int64Counter
	provisionDuration metric.Float64Histogram
}

// NewKeypairService creates a new KeypairService.
func NewKeypairService(fs afero.Fs, exec executor.Executor, config KeypairConfig, logger *slog.Logger) *KeypairService {
	meter := otel.Meter("testbed/service")

	keygenCounter, err := meter.Int64Counter(
		"testbed.keypair.generate",
		metric.WithDescription("Number of keygen invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		logger.Warn("failed to create keygenCounter metric", slog.String("error", err.Error()))
	}

	provisionDuration, err := meter.Float64Histogram(
		"testbed.keypair.provision.duration",
		metric.WithDescription("Duration of keypair provisioning runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create provisionDuration metric", slog.String("error", err.Error()))
	}

	return &KeypairService{
		fs:                fs,
		exec:              exec,
		config:            config,
		logger:            logger.With(slog.String("service", "keypair"), slog.String("executor", exec.Name())),
		keygenCounter:     keygenCounter,
		provisionDuration: provisionDuration,
	}
}

// KeyFilePath returns the slot file of keypair index.
func (s *KeypairService) KeyFilePath(index int) string {
	return filepath.Join(s.config.KeypairDir, strconv.Itoa(index)+constants.KeyFileExtension)
}

// FundingTokenPath returns where the funding token is persisted.
func (s *KeypairService) FundingTokenPath() string {
	return filepath.Join(s.config.KeypairDir, constants.FundingTokenFileName)
}

// Provision generates count keypairs, writes each key to its slot file and
// writes the funding token once every slot has succeeded.
func (s *KeypairService) Provision(ctx context.Context, count int) (*ProvisionResult, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: keypair count must not be negative, got %d", errdefs.ErrConfiguration, count)
	}

	tracer := otel.Tracer("testbed/service")
	ctx, span := tracer.Start(ctx, "Provision")
	defer span.End()
	span.SetAttributes(attribute.Int("keypair.count", count))

	startTime := time.Now()
	s.logger.Info("provisioning keypairs",
		slog.Int("count", count),
		slog.String("binary", s.config.PrismBinary),
		slog.String("dir", s.config.KeypairDir),
	)

	if err := s.fs.MkdirAll(s.config.KeypairDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create keypair directory %s: %w", s.config.KeypairDir, err)
	}

	result := &ProvisionResult{
		KeyFiles:         make([]string, 0, count),
		FundingTokenPath: s.FundingTokenPath(),
	}
	segments := make([]string, 0, count)

	for i := 0; i < count; i++ {
		keyPair, err := s.generate(ctx, i)
		if err != nil {
			s.keygenCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
			s.logger.Error("keygen failed",
				slog.Int("slot", i),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: slot %d: %w", errdefs.ErrProvisioning, i, err)
		}
		s.keygenCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))

		path := s.KeyFilePath(i)
		if err := afero.WriteFile(s.fs, path, []byte(keyPair.Key), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
		}

		s.logger.Debug("wrote keypair",
			slog.Int("slot", i),
			slog.String("path", path),
			slog.String("address", keyPair.Address),
		)

		result.KeyFiles = append(result.KeyFiles, path)
		segments = append(segments, constants.FundAddrFlag+" "+keyPair.Address)
	}

	result.FundingToken = strings.Join(segments, " ")
	if err := afero.WriteFile(s.fs, result.FundingTokenPath, []byte(result.FundingToken), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write funding token %s: %w", result.FundingTokenPath, err)
	}

	s.provisionDuration.Record(ctx, time.Since(startTime).Seconds())
	s.logger.Info("keypairs provisioned",
		slog.Int("count", count),
		slog.String("funding_token", result.FundingTokenPath),
	)

	return result, nil
}

func (s *KeypairService) generate(ctx context.Context, slot int) (*prismkey.KeyPair, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	keyPair, err := prismkey.Generate(ctx, s.exec, s.config.PrismBinary)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("keygen did not finish within %s: %w", s.config.Timeout, err)
		}
		return nil, err
	}
	return keyPair, nil
}

// ReadFundingToken returns the persisted funding token with surrounding whitespace trimmed.
func ReadFundingToken(fs afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		exists, statErr := afero.Exists(fs, path)
		if statErr == nil && !exists {
			return "", fmt.Errorf("%w: funding token %s not found, run keygen first", errdefs.ErrMissingInput, path)
		}
		return "", fmt.Errorf("failed to read funding token %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
