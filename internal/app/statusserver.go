package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vk/shotmatrix/internal/orchestrator"
)

// statusServer exposes live run progress over HTTP while a run is in
// flight. It is read-only: nothing it serves can mutate the run.
type statusServer struct {
	httpServer *http.Server
}

// startStatusServer runs the status endpoint in the background.
func (a *App) startStatusServer(ctx context.Context, orch *orchestrator.Orchestrator) {
	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orch.Progress()); err != nil {
			a.logger.Debug("Encoding status response failed.", "error", err)
		}
	})

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	a.status = &statusServer{
		httpServer: &http.Server{Addr: addr, Handler: router},
	}

	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := a.status.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

// stopStatusServer shuts the endpoint down gracefully.
func (a *App) stopStatusServer(ctx context.Context) {
	if a.status == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.status.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Status server shutdown failed", "error", err)
		return
	}
	a.status = nil
	a.logger.Debug("Status server shut down gracefully.")
}
