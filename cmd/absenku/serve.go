package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/skariga/absenku/internal/attendance"
	"github.com/skariga/absenku/internal/classifier"
	"github.com/skariga/absenku/internal/clock"
	"github.com/skariga/absenku/internal/config"
	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/ingest"
	"github.com/skariga/absenku/internal/scheduler"
	"github.com/skariga/absenku/internal/server"
	"github.com/skariga/absenku/internal/session"
	"github.com/skariga/absenku/internal/store/postgres"
	attsync "github.com/skariga/absenku/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the absenku server",
	GroupID: "system",
	// No client connection for the server itself.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		lateness, err := attendance.ParseLatenessPolicy(cfg.LatenessPolicy)
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("serve: events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("serve: events disabled (ABSENKU_NATS_URL not set)")
		}

		// Core: the server is the event sink for the gateway and the scheduler.
		clk := clock.Real{}
		registry := session.New()
		attendanceServer := server.NewAttendanceServer(store, publisher)
		gateway := attendance.New(store, registry, classifier.New(cfg.MaxAccuracy), clk, attendanceServer, attendance.Options{
			Location:    cfg.Location,
			MinDuration: cfg.MinDuration,
			MaxSilence:  cfg.MaxSilence,
			Lateness:    lateness,
		})
		attendanceServer.Gateway = gateway

		sweeper := scheduler.New(registry, store, clk, attendanceServer, logger, scheduler.Config{
			MinDuration: cfg.MinDuration,
			MaxSilence:  cfg.MaxSilence,
			Interval:    cfg.SweepInterval,
			Concurrency: cfg.SweepConcurrency,
			Location:    cfg.Location,
		})
		sweeper.Start()

		// gRPC: health and reflection.
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			sweeper.Stop()
			publisher.Close()
			store.Close()
			return err
		}
		go func() {
			logger.Info("serve: gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("serve: gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           attendanceServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("serve: HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("serve: HTTP server error", "err", err)
			}
		}()

		// Chat bridge ingestion over NATS.
		var consumer *ingest.Consumer
		var ingestSub *events.NATSSubscriber
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("serve: failed to create ingest subscriber", "err", err)
			} else {
				consumer = ingest.New(sub, publisher, gateway, logger).WithConcurrency(cfg.IngestConcurrency)
				if err := consumer.Start(context.Background()); err != nil {
					logger.Error("serve: failed to start ingest", "err", err)
					sub.Close()
					consumer = nil
				} else {
					ingestSub = sub
					logger.Info("serve: ingest subscriber started")
				}
			}
		}

		syncer := startSync(cfg, store, logger)

		logger.Info("serve: absenku server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"timezone", cfg.Location.String(),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("serve: received signal, shutting down", "signal", sig)

		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		if consumer != nil {
			consumer.Stop()
			ingestSub.Close()
			logger.Info("serve: ingest subscriber stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("serve: HTTP server shutdown error", "err", err)
		}
		logger.Info("serve: HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("serve: gRPC server stopped")

		sweeper.Stop()
		logger.Info("serve: validation scheduler stopped")

		if syncer != nil {
			syncer.Stop()
			// Final export so the backup reflects the last validations.
			syncer.SyncOnce(shutdownCtx)
			logger.Info("serve: sync scheduler stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("serve: error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("serve: error closing store", "err", err)
		}

		logger.Info("serve: shutdown complete")
		return nil
	},
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, source attsync.Source, logger *slog.Logger) *attsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []attsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := attsync.NewS3Destination(context.Background(), attsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
			Archive:  true,
			Location: cfg.Location,
		})
		if err != nil {
			logger.Error("serve: failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("serve: sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		gitDest := attsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, gitDest)
		logger.Info("serve: sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	s := attsync.NewScheduler(source, dests, cfg.SyncInterval, logger)
	s.Start()
	logger.Info("serve: sync scheduler started", "interval", cfg.SyncInterval)
	return s
}

func init() {
	serveCmd.Flags().String("env-file", ".env", "optional dotenv file loaded before reading the environment")
}
