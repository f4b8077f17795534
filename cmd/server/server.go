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
)

const shutdownTimeout = 10 * time.Second

// run starts the worker pool, the queue janitor and the HTTP server, then
// blocks until a shutdown signal arrives and everything drains.
func (app *application) run() error {
	app.pool.Start()
	app.queue.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("HTTP server listening",
			"addr", server.Addr,
			"backend", app.queue.Backend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		app.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-stop:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown failed", "error", err)
	}

	app.shutdown()
	app.logger.Info("server stopped")
	return nil
}

// shutdown stops the background components in dependency order: workers
// first so in-flight tasks finish, then the janitor, then the backend.
func (app *application) shutdown() {
	app.pool.Stop()
	app.queue.Stop()
	if err := app.backend.Close(); err != nil {
		app.logger.Error("failed to close queue backend", "error", err)
	}
}
