package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/Sternrassler/swapi-search/pkg/logging"
	"github.com/Sternrassler/swapi-search/pkg/metrics"
	"github.com/spf13/cobra"
)

// pinger reports whether a backing store is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// searcher is the part of the SWAPI client the proxy needs.
type searcher interface {
	Search(ctx context.Context, q character.SearchQuery) (character.PageResult, error)
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve ordered search results over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg.ListenAddr, newMux(a.gateway, a.gateway))
		},
	}
}

func newMux(s searcher, ready pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /people", peopleHandler(s))
	return mux
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := logging.NewLogger("serve")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting SWAPI search server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			http.Error(w, "redis unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// peopleResponse mirrors the SWAPI page shape with the results ordered.
type peopleResponse struct {
	Count   int                   `json:"count"`
	Page    int                   `json:"page"`
	Results []character.Character `json:"results"`
}

func peopleHandler(s searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := character.NewSearchQuery(r.URL.Query().Get("search"))
		if raw := r.URL.Query().Get("page"); raw != "" {
			page, err := strconv.Atoi(raw)
			if err != nil || page < 1 {
				http.Error(w, "page must be a positive integer", http.StatusBadRequest)
				return
			}
			q.Page = page
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		result, err := s.Search(ctx, q)
		if err != nil {
			http.Error(w, fmt.Sprintf("SWAPI request failed: %v", err), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(peopleResponse{
			Count:   result.TotalCount,
			Page:    q.Page,
			Results: character.Merge(result.Characters),
		})
	}
}

// statusFor maps a gateway error to the proxy's response status.
func statusFor(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	switch client.ClassOf(err) {
	case client.ErrorClassQuota, client.ErrorClassRateLimit:
		return http.StatusTooManyRequests
	case client.ErrorClassNetwork:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
	}
	return http.StatusBadGateway
}
