package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/metrics"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/mqtt"
)

type statusSource interface {
	Status() mqtt.Status
}

func newMux(m *metrics.Metrics, src statusSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := src.Status()
		if st.State != mqtt.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintln(w, st.String())
	})
	return mux
}

// serveMetrics runs the HTTP endpoint until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, src statusSource, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(m, src),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("metrics listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
