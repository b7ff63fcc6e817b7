// Command dhcp6replay runs the packets of a capture file through the server
// pipeline without opening any sockets.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file; defaults apply when empty")
	inPath := flag.String("in", "", "Capture file to replay (pcap)")
	outPath := flag.String("out", "", "Write replies to this capture file")
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Configure(cfg.Logging.Format, logger.LogLevel(cfg.Logging.Level), nil)
	replayLog := logger.Get(logger.Replay)

	srv, err := server.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Close()

	in, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer in.Close()

	var replayer *Replayer
	if *outPath != "" {
		out, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create output capture: %v", err)
		}
		defer out.Close()
		replayer, err = NewReplayer(srv, replayLog, out)
		if err != nil {
			log.Fatalf("Failed to create replayer: %v", err)
		}
	} else {
		replayer, _ = NewReplayer(srv, replayLog, nil)
	}

	stats, err := replayer.Run(context.Background(), in)
	replayLog.Info("Replay finished",
		"packets", stats.Packets,
		"dhcpv6", stats.DHCPv6,
		"replied", stats.Replied,
		"dropped", stats.Dropped,
		"errors", stats.Errors,
	)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil, "yaml")
	}
	return config.Load(path)
}
