// Command dhcp6shell decodes DHCPv6 messages and runs them through a local
// server instance interactively.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

var configPath = flag.String("config", "", "Path to configuration file; defaults apply when empty")

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.Parse(nil, "yaml")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Logging.Format, logger.LogLevelWarn, nil)

	srv, err := server.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)

	shell := NewShell(srv, *configPath, os.Stdout)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		shell.Stop()
		srv.Close()
		os.Exit(0)
	}()

	if err := shell.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
