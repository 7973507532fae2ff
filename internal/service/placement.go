package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/internal/manifest"
	"github.com/terabiome/testbed/pkg/constants"
	"github.com/terabiome/testbed/pkg/placement"
	"github.com/terabiome/testbed/pkg/templator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PlacementConfig controls port allocation, rendering and the output layout.
type PlacementConfig struct {
	BasePort         int
	FundingTokenPath string
	PayloadDir       string
	NodePayloadDir   string
	ManifestPath     string
	RemotePayloadDir string
	NodeBinary       string
	NodeDataDir      string
	ExtraNodeFlags   string
}

// PlacementService places topology nodes onto hosts and emits their startup
// scripts and the placement manifest.
type PlacementService struct {
	fs     afero.Fs
	engine *templator.Engine
	config PlacementConfig
	logger *slog.Logger

	nodePlacedCounter metric.Int64Counter
	placeDuration     metric.Float64Histogram
}

// NewPlacementService creates a new PlacementService. The engine must hold
// the startup template under constants.TemplateStartup.
func NewPlacementService(fs afero.Fs, engine *templator.Engine, config PlacementConfig, logger *slog.Logger) *PlacementService {
	meter := otel.Meter("testbed/service")

	nodePlacedCounter, err := meter.Int64Counter(
		"testbed.node.placed",
		metric.WithDescription("Number of nodes placed onto hosts"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		logger.Warn("failed to create nodePlacedCounter metric", slog.String("error", err.Error()))
	}

	placeDuration, err := meter.Float64Histogram(
		"testbed.placement.duration",
		metric.WithDescription("Duration of place-and-emit runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create placeDuration metric", slog.String("error", err.Error()))
	}

	return &PlacementService{
		fs:                fs,
		engine:            engine,
		config:            config,
		logger:            logger.With(slog.String("service", "placement")),
		nodePlacedCounter: nodePlacedCounter,
		placeDuration:     placeDuration,
	}
}

// Validate checks the preconditions of a placement run without touching the filesystem.
func (s *PlacementService) Validate(params PlaceParams) error {
	if len(params.Hosts) == 0 {
		return fmt.Errorf("%w: host list is empty, nothing to place nodes on", errdefs.ErrConfiguration)
	}
	if params.KeySlots < 0 {
		return fmt.Errorf("%w: keypair count must not be negative, got %d", errdefs.ErrConfiguration, params.KeySlots)
	}
	if params.KeySlots > constants.MaxKeySlots {
		return fmt.Errorf("%w: keypair count %d exceeds the limit of %d", errdefs.ErrConfiguration, params.KeySlots, constants.MaxKeySlots)
	}
	if len(params.Nodes) > constants.MaxNodes {
		return fmt.Errorf("%w: %d nodes exceed the limit of %d", errdefs.ErrConfiguration, len(params.Nodes), constants.MaxNodes)
	}
	if err := placement.ValidateHosts(params.Hosts); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrConfiguration, err)
	}
	if err := placement.Validate(params.Nodes, params.Connections); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrTopology, err)
	}
	return nil
}

// Plan computes placements, peers and rendered commands for every node.
// It is pure: nothing is read from or written to the filesystem.
func (s *PlacementService) Plan(params PlaceParams, fundingToken string) (*Deployment, error) {
	if err := s.Validate(params); err != nil {
		return nil, err
	}

	placements, _, err := placement.Assign(params.Hosts, params.Nodes, placement.NewPortCounters(params.Hosts, s.config.BasePort))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrConfiguration, err)
	}

	// every node is placed before any peer is resolved
	peers, err := placement.ResolvePeers(placements, params.Connections)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrTopology, err)
	}

	loadKeyOpt := s.loadKeyOpt(params.KeySlots)

	deployment := &Deployment{Nodes: make([]NodeConfig, len(placements))}
	for i, p := range placements {
		peerOpt := peerOpt(peers[i])

		command, err := s.engine.RenderCommand(constants.TemplateStartup, templator.StartupVars{
			Name:       p.Node,
			IP:         p.Host.PrivateAddress,
			P2PPort:    p.P2PPort,
			APIPort:    p.APIPort,
			VisPort:    p.VisPort,
			PeerOpt:    peerOpt,
			LoadKeyOpt: loadKeyOpt,
			FundOpt:    fundingToken,
			BinaryPath: s.config.NodeBinary,
			DataDir:    s.config.NodeDataDir,
			ExtraFlags: s.config.ExtraNodeFlags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render startup command for node %s: %w", p.Node, err)
		}

		deployment.Nodes[i] = NodeConfig{
			Placement:  p,
			Peers:      peers[i],
			PeerOpt:    peerOpt,
			LoadKeyOpt: loadKeyOpt,
			Command:    command,
		}
	}

	return deployment, nil
}

// PlaceAndEmit validates the topology, reads the funding token, plans every
// node and writes one startup script per node plus a fresh manifest.
// Any failure aborts the run; files already written stay in place.
func (s *PlacementService) PlaceAndEmit(ctx context.Context, params PlaceParams) (*Deployment, error) {
	tracer := otel.Tracer("testbed/service")
	ctx, span := tracer.Start(ctx, "PlaceAndEmit")
	defer span.End()

	span.SetAttributes(
		attribute.Int("host.count", len(params.Hosts)),
		attribute.Int("node.count", len(params.Nodes)),
		attribute.Int("connection.count", len(params.Connections)),
	)

	startTime := time.Now()

	if err := s.Validate(params); err != nil {
		return nil, err
	}

	fundingToken, err := ReadFundingToken(s.fs, s.config.FundingTokenPath)
	if err != nil {
		return nil, err
	}

	deployment, err := s.Plan(params, fundingToken)
	if err != nil {
		return nil, err
	}

	s.logger.Info("placing nodes",
		slog.Int("hosts", len(params.Hosts)),
		slog.Int("nodes", len(params.Nodes)),
		slog.Int("key_slots", params.KeySlots),
	)

	if err := s.emit(ctx, deployment); err != nil {
		return nil, err
	}

	s.placeDuration.Record(ctx, time.Since(startTime).Seconds())
	s.logger.Info("payload emitted",
		slog.Int("nodes", len(deployment.Nodes)),
		slog.String("manifest", s.config.ManifestPath),
	)

	return deployment, nil
}

// ScriptPath returns payload/<host>/<node payload dir>/<node>.sh.
func (s *PlacementService) ScriptPath(host, node string) string {
	return filepath.Join(s.config.PayloadDir, host, s.config.NodePayloadDir, node+constants.StartupScriptExt)
}

func (s *PlacementService) emit(ctx context.Context, deployment *Deployment) (err error) {
	writer, err := manifest.Create(s.fs, s.config.ManifestPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close manifest: %w", closeErr))
		}
	}()

	for _, node := range deployment.Nodes {
		p := node.Placement
		scriptPath := s.ScriptPath(p.Host.Label, p.Node)

		if err := s.fs.MkdirAll(filepath.Dir(scriptPath), 0o755); err != nil {
			return fmt.Errorf("failed to create payload directory for node %s: %w", p.Node, err)
		}
		if err := afero.WriteFile(s.fs, scriptPath, []byte(node.Command), 0o755); err != nil {
			return fmt.Errorf("failed to write startup script for node %s: %w", p.Node, err)
		}

		if err := writer.Append(manifest.Entry{
			Name:           p.Node,
			Host:           p.Host.Label,
			PublicAddress:  p.Host.PublicAddress,
			PrivateAddress: p.Host.PrivateAddress,
			P2PPort:        p.P2PPort,
			APIPort:        p.APIPort,
			VisPort:        p.VisPort,
		}); err != nil {
			return err
		}

		s.nodePlacedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("host", p.Host.Label)))
		s.logger.Debug("emitted node",
			slog.String("node", p.Node),
			slog.String("host", p.Host.Label),
			slog.Int("p2p_port", p.P2PPort),
			slog.Int("peers", len(node.Peers)),
			slog.String("path", scriptPath),
		)
	}

	return nil
}

func (s *PlacementService) loadKeyOpt(keySlots int) string {
	opts := make([]string, keySlots)
	for i := range opts {
		opts[i] = constants.LoadKeyFlag + " " + path.Join(s.config.RemotePayloadDir, strconv.Itoa(i)+constants.KeyFileExtension)
	}
	return strings.Join(opts, " ")
}

func peerOpt(peers []placement.Peer) string {
	opts := make([]string, len(peers))
	for i, peer := range peers {
		opts[i] = constants.PeerFlag + " " + peer.String()
	}
	return strings.Join(opts, " ")
}
