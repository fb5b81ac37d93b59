package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/archive"
	"github.com/GoSim-25-26J-441/natsim/internal/metrics"
	"github.com/GoSim-25-26J-441/natsim/internal/resource"
	"github.com/GoSim-25-26J-441/natsim/internal/simd"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"google.golang.org/grpc"
)

func main() {
	var grpcAddr string
	var httpAddr string
	var logLevel string
	var archivePath string

	flag.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&archivePath, "archive", "", "SQLite file for completed runs (disabled when empty)")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := []simd.ExecutorOption{
		simd.WithRecorder(metrics.NewRecorder()),
		simd.WithHostProbe(resource.NewSystemProbe(0)),
	}
	if archivePath != "" {
		arc, err := archive.Open(archivePath)
		if err != nil {
			logger.Error("failed to open archive", "path", archivePath, "error", err)
			stop()
			os.Exit(1)
		}
		defer arc.Close()
		opts = append(opts, simd.WithArchive(arc))
		logger.Info("archiving completed runs", "path", archivePath)
	}

	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store, opts...)

	// TODO: Configure gRPC server security (e.g., TLS, authentication, rate limiting)
	// before using this service in a production environment.
	grpcServer := grpc.NewServer()
	simd.RegisterSimulationService(grpcServer, simd.NewSimulationGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           simd.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: /v1/runs/{id}/stream responses live as long as the run.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start servers.
	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	// Ending the runs first lets open event streams finish.
	executor.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
