package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
)

// ServeMetrics exposes the default prometheus registry on addr for the
// background workers, which have no API router of their own. An empty addr
// blocks until ctx ends without listening.
func ServeMetrics(ctx context.Context, addr string, logg *logger.Logger) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	logg.Info(logg.WithField(ctx, "metrics_addr", addr), "serving worker metrics")
	return Serve(ctx, NewServer(addr, r), logg)
}
