package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicolaspernoud/vestibule/internal/auth"
	"github.com/nicolaspernoud/vestibule/internal/config"
	"github.com/nicolaspernoud/vestibule/internal/router"
	"github.com/nicolaspernoud/vestibule/internal/slogutil"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vestibule edge server",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

// runServe implements §4.5's lifecycle: load config, derive the
// Snapshot, listen, and on every GET /reload drain the current server
// and rebuild (Config, HostMap) from the on-disk document before
// starting a fresh server on the same address. The loop itself exits
// only on SIGINT/SIGTERM, per §4.5's last sentence.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("vestibule starting", "hostname", cfg.Hostname, "http_port", cfg.HTTPPort)

	manager, err := config.NewManager(cfg, configFile)
	if err != nil {
		logger.Error("failed to build config manager", "err", err)
		return err
	}

	session := auth.NewSessionService(cfg.SessionSecret, cfg.Hostname, cfg.AutoTLS)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		reloadCh := make(chan struct{}, 1)
		rtr := router.New(manager, session, logger, reloadCh)

		addr := fmt.Sprintf(":%d", manager.Snapshot().Config.HTTPPort)
		server := &http.Server{Addr: addr, Handler: rtr}

		serveErrCh := make(chan error, 1)
		go func() {
			serveErrCh <- server.ListenAndServe()
		}()
		logger.Info("listening", "addr", addr)

		select {
		case <-reloadCh:
			logger.Info("reload requested, draining current server")
			drain(server, logger)
			<-serveErrCh

			fresh, err := config.LoadConfig(manager.ConfigFile())
			if err != nil {
				logger.Error("reload: failed to reparse config, keeping previous snapshot", "err", err)
				continue
			}
			if err := manager.Apply(fresh); err != nil {
				logger.Error("reload: failed to apply reparsed config, keeping previous snapshot", "err", err)
			}
			continue

		case err := <-serveErrCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server exited unexpectedly", "err", err)
				return err
			}
			continue

		case sig := <-sigCh:
			logger.Info("shutdown signal received", "signal", sig.String())
			drain(server, logger)
			<-serveErrCh
			logger.Info("vestibule shut down gracefully")
			return nil
		}
	}
}

func drain(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown error", "err", err)
	}
}
