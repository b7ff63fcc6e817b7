// Package server turns received packets into replies. It owns the
// configuration snapshot and the handler pipeline built from it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/assignment"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/handlers"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/metrics"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

// Packet is one datagram as received by a transport.
type Packet struct {
	Data                  []byte
	ReceivedOverMulticast bool
	// Marks are passed on to the transaction, e.g. the interface name.
	Marks []string
}

type Option func(*Server)

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithHandlers adds handlers to the chain built from the configuration.
// They run before the unanswered binding cleanup.
func WithHandlers(extra ...handlers.Handler) Option {
	return func(s *Server) {
		s.extra = append(s.extra, extra...)
	}
}

// state is everything a reload replaces.
type state struct {
	cfg      *config.Config
	serverID protocol.DUID
	pipeline *handlers.Pipeline
	source   assignment.Source
}

type Server struct {
	registry *protocol.Registry
	metrics  *metrics.Collector
	extra    []handlers.Handler
	logger   *slog.Logger

	mu    sync.RWMutex
	state *state
}

// New builds a server for cfg. A nil reg uses protocol.NewRegistry.
func New(cfg *config.Config, reg *protocol.Registry, opts ...Option) (*Server, error) {
	if reg == nil {
		reg = protocol.NewRegistry()
	}

	s := &Server{
		registry: reg,
		logger:   logger.Get(logger.Server),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}

	st, err := s.build(cfg)
	if err != nil {
		return nil, err
	}
	s.state = st

	s.logger.Info("Server ready", "server_id", protocol.DUIDString(st.serverID), "handlers", len(st.pipeline.Handlers()))
	return s, nil
}

func (s *Server) build(cfg *config.Config) (*state, error) {
	serverID, err := ServerDUID(cfg.Server)
	if err != nil {
		return nil, err
	}

	source, err := assignment.Open(cfg.Assignments)
	if err != nil {
		return nil, err
	}

	chain, err := handlers.Default(cfg, serverID, source, s.extra...)
	if err != nil {
		if source != nil {
			source.Close()
		}
		return nil, fmt.Errorf("build handlers: %w", err)
	}

	return &state{
		cfg:      cfg,
		serverID: serverID,
		pipeline: handlers.NewPipeline(serverID, chain...),
		source:   source,
	}, nil
}

// ServerDUID returns the configured DUID, or a DUID-UUID derived from the
// host name when none is configured.
func ServerDUID(cfg config.Server) (protocol.DUID, error) {
	if cfg.DUID != "" {
		duid, err := protocol.ParseDUIDHex(cfg.DUID)
		if err != nil {
			return nil, fmt.Errorf("server duid: %w", err)
		}
		return duid, nil
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("derive server duid: %w", err)
	}
	return protocol.NameBasedDUID(host), nil
}

func (s *Server) ServerID() protocol.DUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.serverID
}

// Assignments returns the running assignment source, or nil when none is
// configured. It is closed by the next successful Reload.
func (s *Server) Assignments() assignment.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.source
}

// Handlers returns the names of the running handler chain in order.
func (s *Server) Handlers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.state.pipeline.Handlers()
	names := make([]string, len(chain))
	for i, h := range chain {
		names[i] = h.Name()
	}
	return names
}

func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.cfg
}

// HandlePacket answers one packet. It returns nil data and a nil error when
// the packet is dropped without a reply; an error means the packet was
// dropped because something went wrong.
func (s *Server) HandlePacket(ctx context.Context, pkt Packet) ([]byte, error) {
	start := time.Now()
	defer s.metrics.ObserveDuration(start)

	msg, err := s.registry.DecodeMessage(pkt.Data)
	if err != nil {
		s.metrics.Dropped(metrics.ReasonParseError)
		return nil, fmt.Errorf("decode: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b := transaction.New(ctx, msg, pkt.ReceivedOverMulticast,
		transaction.WithMarks(pkt.Marks...),
		transaction.WithRapidCommit(s.state.cfg.Server.AllowRapidCommit))
	if b.Request == nil {
		s.metrics.Dropped(metrics.ReasonMisrouted)
		return nil, nil
	}
	s.metrics.Received(b.Request.MsgType.String())

	verdict, err := s.state.pipeline.Run(b)
	if err != nil {
		s.metrics.Dropped(metrics.ReasonHandlerError)
		return nil, fmt.Errorf("%s: %w", b, err)
	}
	if verdict == handlers.Drop {
		s.metrics.Dropped(metrics.ReasonHandlerDrop)
		return nil, nil
	}

	out, err := b.OutgoingMessage()
	if err != nil {
		s.metrics.Dropped(metrics.ReasonEncodeError)
		return nil, fmt.Errorf("%s: %w", b, err)
	}
	if out == nil {
		s.metrics.Dropped(metrics.ReasonNoResponse)
		return nil, nil
	}

	data, err := protocol.EncodeMessage(out)
	if err != nil {
		s.metrics.Dropped(metrics.ReasonEncodeError)
		b.Logger().Error("Built an invalid response", "error", err)
		return nil, fmt.Errorf("%s: encode response: %w", b, err)
	}

	s.metrics.Replied(b.Response.MsgType.String())
	b.Logger().Debug("Sending response", "response", b.Response.MsgType.String(), "verdict", verdict.String())
	return data, nil
}

// Reload swaps in a pipeline built from cfg. Packets being handled finish
// with the old one. On error the running configuration is kept.
func (s *Server) Reload(cfg *config.Config) error {
	st, err := s.build(cfg)
	s.metrics.Reloaded(err)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	s.mu.Lock()
	old := s.state
	s.state = st
	s.mu.Unlock()

	if old.source != nil {
		if err := old.source.Close(); err != nil {
			s.logger.Warn("Failed to close previous assignment source", "error", err)
		}
	}

	s.logger.Info("Configuration reloaded", "server_id", protocol.DUIDString(st.serverID), "handlers", len(st.pipeline.Handlers()))
	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.source != nil {
		return s.state.source.Close()
	}
	return nil
}
