package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-ha/zway-bridge/addon/internal/http/handlers"
)

// NewRouter builds the HTTP routing tree for the bridge API.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(api))
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	r.Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/bridge", api.Bridge)
		apiRouter.Get("/locations", api.ListLocations)

		apiRouter.Get("/devices", api.ListDevices)
		apiRouter.Get("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
			api.GetDevice(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Put("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
			api.PutDevice(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Patch("/devices/{id}/level", func(w http.ResponseWriter, r *http.Request) {
			api.PatchLevel(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Post("/devices/{id}/command", func(w http.ResponseWriter, r *http.Request) {
			api.RunCommand(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Get("/devices/{id}/commands", func(w http.ResponseWriter, r *http.Request) {
			api.ListCommands(w, r, chi.URLParam(r, "id"))
		})
	})
	return r
}

// RunServer starts and gracefully stops HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
