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
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/internal/searchd"
	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

var (
	serverConfigPath string
	serveFlags       = config.DefaultServerConfig()

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP and gRPC",
		RunE:  serve,
	}
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serverConfigPath, "server-config", "", "server config YAML; flags override it")
	f.StringVar(&serveFlags.HTTPAddr, "http-addr", serveFlags.HTTPAddr, "HTTP listen address")
	f.StringVar(&serveFlags.GRPCAddr, "grpc-addr", serveFlags.GRPCAddr, "gRPC listen address")
	f.StringVar(&serveFlags.DataDir, "data-dir", "", "directory for persisted runs (default: in memory)")
	f.BoolVar(&serveFlags.WatchCatalogue, "watch-catalogue", false, "reload --catalogue when it changes")
	f.IntVar(&serveFlags.MaxConcurrentRuns, "max-runs", serveFlags.MaxConcurrentRuns, "searches executed at once")
	f.Float64Var(&serveFlags.RunCreateRate, "create-rate", serveFlags.RunCreateRate, "run creations per second (0 disables the limit)")
	f.IntVar(&serveFlags.RunCreateBurst, "create-burst", serveFlags.RunCreateBurst, "run creation burst")
}

// serverConfig merges the config file with explicitly set flags.
func serverConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg := serveFlags
	if serverConfigPath != "" {
		loaded, err := config.LoadServerConfig(serverConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
		flags := cmd.Flags()
		if flags.Changed("http-addr") {
			cfg.HTTPAddr = serveFlags.HTTPAddr
		}
		if flags.Changed("grpc-addr") {
			cfg.GRPCAddr = serveFlags.GRPCAddr
		}
		if flags.Changed("data-dir") {
			cfg.DataDir = serveFlags.DataDir
		}
		if flags.Changed("watch-catalogue") {
			cfg.WatchCatalogue = serveFlags.WatchCatalogue
		}
		if flags.Changed("max-runs") {
			cfg.MaxConcurrentRuns = serveFlags.MaxConcurrentRuns
		}
		if flags.Changed("create-rate") {
			cfg.RunCreateRate = serveFlags.RunCreateRate
		}
		if flags.Changed("create-burst") {
			cfg.RunCreateBurst = serveFlags.RunCreateBurst
		}
	}
	if cataloguePath != "" {
		cfg.CataloguePath = cataloguePath
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if err := config.ValidateServer(&cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return &cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := serverConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.New(cfg.LogLevel, os.Stdout))
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalogue(cfg.CataloguePath)
	if err != nil {
		return err
	}
	source := catalogue.NewSource(cat)
	if cfg.WatchCatalogue {
		if err := source.Watch(ctx, cfg.CataloguePath); err != nil {
			return err
		}
		logger.Info("watching catalogue", "path", cfg.CataloguePath)
	}

	store, err := searchd.OpenRunStore(cfg.DataDir, logger.Default)
	if err != nil {
		return err
	}
	defer store.Close()

	executor := searchd.NewRunExecutor(store, source, cfg.MaxConcurrentRuns)
	notifier := searchd.NewNotifier()
	executor.SetNotifier(notifier)

	grpcServer := grpc.NewServer()
	searchd.RegisterSearchService(grpcServer, searchd.NewSearchGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
	}

	api := searchd.NewHTTPServer(store, executor, searchd.HTTPOptions{
		CreateRate:  cfg.RunCreateRate,
		CreateBurst: cfg.RunCreateBurst,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("executor shutdown error", "error", err)
	}
	notifier.Wait()
	return nil
}
