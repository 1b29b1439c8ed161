package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/mediclaim/internal/app"
	"github.com/joseph-ayodele/mediclaim/internal/async"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "mediclaimd",
		Short:         "Serve discharge-summary analysis over HTTP and gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("MEDICLAIM_CONFIG")
			}
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (default $MEDICLAIM_CONFIG)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mediclaimd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := common.NewLogger(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", zap.Error(err))
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("app.init.failed", zap.Error(err))
		return err
	}
	logger.Info("app.ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Int("packages", a.Corpus.Len()),
		zap.String("ranking", a.Retriever.Ranking()),
	)

	pool := async.NewPool(a.Processor, logger,
		async.WithWorkers(cfg.Workers.Count),
		async.WithQueueSize(cfg.Workers.QueueSize),
		async.WithJobTimeout(cfg.Workers.JobTimeout),
	)
	deps := server.Deps{
		Queue:    pool,
		Searcher: a.Retriever,
		Corpus:   a.Corpus,
		Exporter: a.Exporter,
		Logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	httpSrv, err := server.NewHTTPServer(deps, server.HTTPConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	})
	if err != nil {
		return err
	}
	hs := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	svc, err := server.NewAnalysisService(deps)
	if err != nil {
		return err
	}
	grpcSrv := server.NewGRPCServer(svc, server.MaxRecvMsgSize(cfg.Server.MaxUploadBytes()))
	reflection.Register(grpcSrv)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http.serving", zap.String("addr", cfg.Server.HTTPAddr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc.serving", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown.started")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			logger.Warn("http.shutdown.failed", zap.Error(err))
		}
		grpcSrv.GracefulStop()
		pool.Shutdown(sctx)
		logger.Info("shutdown.completed")
		return nil
	})

	return g.Wait()
}
