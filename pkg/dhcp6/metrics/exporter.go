package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/dhcp6d/pkg/component"
	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

// Exporter serves a prometheus registry over HTTP.
type Exporter struct {
	*component.Base
	logger   *slog.Logger
	addr     string
	path     string
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
	mu       sync.RWMutex
}

func NewExporter(cfg config.Monitoring, gatherer prometheus.Gatherer) *Exporter {
	return &Exporter{
		Base:     component.NewBase("metrics"),
		logger:   logger.Get(logger.Metrics),
		addr:     cfg.Listen,
		path:     cfg.Path,
		gatherer: gatherer,
	}
}

// Addr returns the bound address once the exporter has started.
func (e *Exporter) Addr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

func (e *Exporter) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(e.path, promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{}))

	e.mu.Lock()
	e.listener = ln
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.mu.Unlock()

	e.StartContext(ctx)
	e.logger.Info("Starting Prometheus exporter", "addr", ln.Addr().String(), "path", e.path)

	e.Go(func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("Prometheus HTTP server error", "error", err)
		}
	})

	return nil
}

func (e *Exporter) Stop(ctx context.Context) error {
	e.logger.Info("Stopping Prometheus exporter")

	e.mu.RLock()
	server := e.server
	e.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	e.StopContext()
	return nil
}
