// Command xetra-server serves daily Xetra summaries over HTTP and gRPC.
// Each request runs the pipeline for its date; runs are serialised.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"xetra/internal/config"
	"xetra/internal/etl"
	"xetra/internal/httpapi"
	"xetra/internal/rpc"
	"xetra/internal/util"
	"xetra/internal/version"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pc, err := cfg.Pipeline()
	if err != nil {
		log.Fatalf("pipeline config: %v", err)
	}
	stores, err := cfg.OpenStores()
	if err != nil {
		log.Fatalf("opening stores: %v", err)
	}
	defer stores.Close()

	var opts []etl.Option
	if cfg.Storage.MetaKey != "" {
		opts = append(opts, etl.WithMetaKey(cfg.Storage.MetaKey))
	}
	runner := etl.NewRunner(stores.Source, stores.Target, pc, logger, opts...)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           httpapi.NewServer(runner, pc.Target, pc.Source.DateFormat, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("listening on %s: %v", grpcAddr, err)
	}
	gs := grpc.NewServer()
	rpc.NewServer(runner, pc.Source.DateFormat, logger).RegisterGRPC(gs)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("xetra-server starting", "version", version.String(), "source", stores.Source.Location(), "target", stores.Target.Location())

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()
	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := gs.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down xetra-server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	gs.GracefulStop()
}
