package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/pkg/cookie"
	"github.com/vango-dev/statesync/pkg/storage"
)

// maxBodyBytes caps PUT bodies.
const maxBodyBytes = 1 << 20

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured store, cookies and metrics over HTTP",
		Long: `Start an HTTP endpoint for inspecting statesync state.

Routes:
  GET    /kv/{key}        stored value of key
  PUT    /kv/{key}        store the request body under key
  DELETE /kv/{key}        remove key
  GET    /cookies/{name}  decoded cookie from the request
  PUT    /cookies/{name}  respond with a Set-Cookie line for the body
  GET    /metrics         Prometheus metrics
  GET    /healthz         liveness

Examples:
  statesync serve --addr=:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				return a.serve(ctx, cmd.OutOrStdout(), addr, s)
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:7070", "Address to listen on")

	return cmd
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context, out io.Writer, addr string, s storage.Store) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	success(out, "Listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// router builds the HTTP routes over s.
func (a *app) router(s storage.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Get("/kv/{key}", a.handleGet(s))
	r.Put("/kv/{key}", a.handleSet(s))
	r.Delete("/kv/{key}", a.handleRemove(s))

	r.Get("/cookies/{name}", a.handleCookieGet)
	r.Put("/cookies/{name}", a.handleCookieSet)

	return r
}

func (a *app) handleGet(s storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		v, ok, err := s.Get(r.Context(), key)
		if err != nil {
			a.storeFailed(w, "get", key, err)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, v)
	}
}

func (a *app) handleSet(s storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if err := s.Set(r.Context(), key, string(body)); err != nil {
			a.storeFailed(w, "set", key, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *app) handleRemove(s storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := s.Remove(r.Context(), key); err != nil {
			a.storeFailed(w, "remove", key, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *app) storeFailed(w http.ResponseWriter, op, key string, err error) {
	a.logger.Error("storage request failed", "op", op, "key", key, "error", err)
	a.metrics.StoreError("serve", op)
	http.Error(w, "storage unavailable", http.StatusBadGateway)
}

func (a *app) handleCookieGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := cookie.Get(cookie.NewHTTPJar(w, r), name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (a *app) handleCookieSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	// JSON bodies are stored as values, anything else as a raw string.
	var value any = string(body)
	if json.Valid(body) {
		json.Unmarshal(body, &value)
	}

	if err := cookie.Set(cookie.NewHTTPJar(w, r), name, value, a.cfg.CookieOptions()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
