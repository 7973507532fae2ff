package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/terabiome/testbed/internal/adapter"
	"github.com/terabiome/testbed/internal/config"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/internal/handler"
	"github.com/terabiome/testbed/internal/inventory"
	"github.com/terabiome/testbed/internal/manifest"
	"github.com/terabiome/testbed/internal/routes"
	"github.com/terabiome/testbed/internal/service"
	"github.com/terabiome/testbed/pkg/constants"
	"github.com/terabiome/testbed/pkg/executor"
	"github.com/terabiome/testbed/pkg/logger"
	"github.com/terabiome/testbed/pkg/telemetry"
	"github.com/terabiome/testbed/pkg/templator"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With(slog.String("run_id", uuid.NewString()))
	log.Debug("testbed starting",
		slog.String("log_level", cfg.LogLevel),
		slog.String("log_format", cfg.LogFormat),
		slog.Bool("telemetry_enabled", cfg.TelemetryEnabled),
	)

	if cfg.TelemetryEnabled {
		tel, err := telemetry.Initialize("testbed", os.Stderr)
		if err != nil {
			log.Error("failed to initialize telemetry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
			}
		}()
		log.Debug("telemetry initialized")
	}

	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	fs := afero.NewOsFs()

	app := &cli.App{
		Name:                 "testbed",
		Usage:                "Generate keypairs and per-host startup payloads for a node testbed",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "keygen",
				Usage:     "Generate keypairs and the funding token",
				ArgsUsage: "[count]",
				Action: func(cliCtx *cli.Context) error {
					count, err := adapter.ParseCount(cliCtx.Args().First())
					if err != nil {
						return err
					}
					return runKeygen(ctx, cfg, fs, log, count)
				},
			},
			{
				Name:      "payload",
				Usage:     "Place topology nodes onto hosts and write startup scripts and the manifest",
				ArgsUsage: "<hosts> <topology> [count]",
				Action: func(cliCtx *cli.Context) error {
					params, err := loadPlaceParams(cliCtx, fs)
					if err != nil {
						return err
					}

					placementService, err := initPlacementService(cfg, fs, log)
					if err != nil {
						return err
					}

					deployment, err := placementService.PlaceAndEmit(ctx, params)
					if err != nil {
						return fmt.Errorf("unable to emit payload: %w", err)
					}

					log.Info("payload written",
						slog.Int("nodes", len(deployment.Nodes)),
						slog.String("payload_dir", cfg.PayloadDir),
						slog.String("manifest", cfg.ManifestPath),
					)
					return nil
				},
			},
			{
				Name:      "plan",
				Usage:     "Show where every node would be placed without writing anything",
				ArgsUsage: "<hosts> <topology> [count]",
				Action: func(cliCtx *cli.Context) error {
					params, err := loadPlaceParams(cliCtx, fs)
					if err != nil {
						return err
					}

					placementService, err := initPlacementService(cfg, fs, log)
					if err != nil {
						return err
					}

					fundingToken, err := service.ReadFundingToken(fs, fundingTokenPath(cfg))
					if err != nil {
						if !errors.Is(err, errdefs.ErrMissingInput) {
							return err
						}
						log.Warn("no funding token yet, planning without one", slog.String("error", err.Error()))
					}

					deployment, err := placementService.Plan(params, fundingToken)
					if err != nil {
						return err
					}

					return renderPlan(os.Stdout, adapter.AdaptDeploymentToAPI(deployment))
				},
			},
			{
				Name:      "manifest",
				Usage:     "Print a placement manifest",
				ArgsUsage: "[nodes.txt]",
				Action: func(cliCtx *cli.Context) error {
					path := cliCtx.Args().First()
					if path == "" {
						path = cfg.ManifestPath
					}

					entries, err := manifest.Read(fs, path)
					if err != nil {
						return err
					}
					return renderManifest(os.Stdout, entries)
				},
			},
			{
				Name:  "server",
				Usage: "Start HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "address",
						Aliases: []string{"a"},
						Usage:   "Server address",
						Value:   ":8080",
					},
				},
				Action: func(cliCtx *cli.Context) error {
					return runServer(ctx, cfg, fs, log, cliCtx.String("address"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func fundingTokenPath(cfg *config.Config) string {
	return filepath.Join(cfg.KeypairDir, constants.FundingTokenFileName)
}

func runKeygen(ctx context.Context, cfg *config.Config, fs afero.Fs, log *slog.Logger, count int) error {
	var exec executor.Executor = executor.NewLocal(log)
	if cfg.KeygenSSH.Host != "" {
		sshExec, err := executor.NewSSH(executor.SSHConfig{
			Host:           cfg.KeygenSSH.Host,
			Port:           cfg.KeygenSSH.Port,
			User:           cfg.KeygenSSH.User,
			KeyPath:        cfg.KeygenSSH.KeyPath,
			KnownHostsPath: cfg.KeygenSSH.KnownHostsPath,
		}, log)
		if err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrProvisioning, err)
		}
		defer sshExec.Close()
		exec = sshExec
	}

	keypairService := service.NewKeypairService(fs, exec, service.KeypairConfig{
		PrismBinary: cfg.PrismBinary,
		KeypairDir:  cfg.KeypairDir,
		Timeout:     cfg.KeygenTimeout,
	}, log)

	result, err := keypairService.Provision(ctx, count)
	if err != nil {
		return fmt.Errorf("unable to generate keypairs: %w", err)
	}

	log.Info("keypairs written",
		slog.Int("count", len(result.KeyFiles)),
		slog.String("funding_token", result.FundingTokenPath),
	)
	return nil
}

func loadPlaceParams(cliCtx *cli.Context, fs afero.Fs) (service.PlaceParams, error) {
	args := cliCtx.Args()
	if args.Len() < 2 {
		return service.PlaceParams{}, fmt.Errorf("%w: expected <hosts> <topology> [count]", errdefs.ErrConfiguration)
	}

	count, err := adapter.ParseCount(args.Get(2))
	if err != nil {
		return service.PlaceParams{}, err
	}

	hosts, err := inventory.LoadHosts(fs, args.Get(0))
	if err != nil {
		return service.PlaceParams{}, err
	}

	topology, err := inventory.LoadTopology(fs, args.Get(1))
	if err != nil {
		return service.PlaceParams{}, err
	}

	return adapter.AdaptPlacement(hosts, *topology, count), nil
}

func initPlacementService(cfg *config.Config, fs afero.Fs, log *slog.Logger) (*service.PlacementService, error) {
	engine := templator.NewEngine()

	if cfg.StartupTemplate != "" {
		log.Debug("loading startup template", slog.String("path", cfg.StartupTemplate))
		if err := engine.LoadTemplate(constants.TemplateStartup, cfg.StartupTemplate); err != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrConfiguration, err)
		}
	} else if err := engine.LoadTemplateText(constants.TemplateStartup, templator.DefaultStartupTemplate); err != nil {
		return nil, err
	}

	return service.NewPlacementService(fs, engine, service.PlacementConfig{
		BasePort:         cfg.BasePort,
		FundingTokenPath: fundingTokenPath(cfg),
		PayloadDir:       cfg.PayloadDir,
		NodePayloadDir:   cfg.NodePayloadDir,
		ManifestPath:     cfg.ManifestPath,
		RemotePayloadDir: cfg.RemotePayloadDir,
		NodeBinary:       cfg.NodeBinary,
		NodeDataDir:      cfg.NodeDataDir,
		ExtraNodeFlags:   cfg.ExtraNodeFlags,
	}, log), nil
}

// runServer starts the HTTP API server
func runServer(ctx context.Context, cfg *config.Config, fs afero.Fs, log *slog.Logger, address string) error {
	log.Info("initializing HTTP server", slog.String("address", address))

	placementService, err := initPlacementService(cfg, fs, log)
	if err != nil {
		return fmt.Errorf("failed to initialize placement service: %w", err)
	}

	router := routes.SetupMux(handler.NewPlacement(placementService, log))

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	}
}
