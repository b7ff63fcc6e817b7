package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/veesix-networks/dhcp6d/internal/listener"
	"github.com/veesix-networks/dhcp6d/pkg/component"
	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/metrics"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
	"github.com/veesix-networks/dhcp6d/pkg/version"
)

func main() {
	configPath := flag.String("config", "/etc/dhcp6d/dhcp6d.yaml", "Path to configuration file (YAML or TOML)")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("dhcp6d"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	configureLogging(cfg.Logging)

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting dhcp6d", "version", version.Version, "commit", version.Commit, "config", *configPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	srv, err := server.New(cfg, protocol.NewRegistry(), server.WithMetrics(collector))
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	orch := component.NewOrchestrator()
	orch.Register(listener.New(cfg.Listener, srv))
	if cfg.Monitoring.Enabled {
		orch.Register(metrics.NewExporter(cfg.Monitoring, registry))
	}

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start components: %v", err)
	}

	mainLog.Info("dhcp6d started successfully", "server_id", protocol.DUIDString(srv.ServerID()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		reload(srv, *configPath)
	}

	mainLog.Info("Shutting down dhcp6d...")

	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}
	if err := srv.Close(); err != nil {
		mainLog.Error("Error closing assignment source", "error", err)
	}

	mainLog.Info("dhcp6d stopped")
}

// reload applies a changed configuration. Listener and monitoring settings
// only take effect after a restart. Logging is reconfigured only once the
// server has accepted the new configuration.
func reload(srv *server.Server, path string) error {
	mainLog := logger.Get(logger.Main)
	mainLog.Info("Reloading configuration", "config", path)

	cfg, err := config.Load(path)
	if err != nil {
		mainLog.Error("Failed to load config, keeping the running one", "error", err)
		return err
	}

	if err := srv.Reload(cfg); err != nil {
		mainLog.Error("Failed to apply config, keeping the running one", "error", err)
		return err
	}

	configureLogging(cfg.Logging)
	return nil
}

func configureLogging(cfg config.Logging) {
	components := make(map[string]logger.LogLevel, len(cfg.Components))
	for name, level := range cfg.Components {
		components[name] = logger.LogLevel(level)
	}
	logger.Configure(cfg.Format, logger.LogLevel(cfg.Level), components)
}
