package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/refinery/config"
	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
	"github.com/xiaot623/gogo/refinery/internal/observability"
	"github.com/xiaot623/gogo/refinery/internal/service"
	handler "github.com/xiaot623/gogo/refinery/internal/transport/http"
	"github.com/xiaot623/gogo/refinery/internal/transport/rpc"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides HTTP_PORT)")
}

// buildService wires the backend client, policy and service from cfg.
func buildService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*service.Service, error) {
	llmClient := llm.NewLLMClient(cfg.Mode, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	policyEngine, err := service.NewPolicyEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return service.New(llmClient, cfg, policyEngine, logger), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.HTTPPort = servePort
	}
	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "refinery", service.Version, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracer(flushCtx); err != nil {
				logger.Warnj(log.JSON{"event": "tracer_shutdown_failed", "error": err.Error()})
			}
		}()
	}

	svc, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	server := handler.NewServer(svc, cfg, logger)

	logger.Infoj(log.JSON{
		"event":                   "server_starting",
		"port":                    cfg.HTTPPort,
		"llm_base_url":            cfg.LLMBaseURL,
		"default_model":           cfg.DefaultModel,
		"max_concurrent_requests": cfg.MaxConcurrent,
		"generation_timeout_s":    cfg.GenerationTimeoutSecs,
	})

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := rpcServer.Start(cfg.RPCAddr); err != nil {
				errCh <- err
			}
		}()
		logger.Infoj(log.JSON{"event": "rpc_server_starting", "addr": cfg.RPCAddr})
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Infoj(log.JSON{"event": "server_stopping"})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnj(log.JSON{"event": "rpc_shutdown_failed", "error": err.Error()})
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Infoj(log.JSON{"event": "server_stopped"})
	return nil
}
