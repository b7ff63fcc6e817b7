// Package listener receives DHCPv6 datagrams on UDP and hands them to the
// server.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/ipv6"

	"github.com/veesix-networks/dhcp6d/pkg/component"
	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

const maxDatagram = 65535

type PacketHandler interface {
	HandlePacket(ctx context.Context, pkt server.Packet) ([]byte, error)
}

type Option func(*Component)

// WithReplyPorts overrides the destination ports used for replies to
// clients and to relay agents.
func WithReplyPorts(client, relay int) Option {
	return func(c *Component) {
		c.clientPort = client
		c.relayPort = relay
	}
}

type Component struct {
	*component.Base

	logger     *slog.Logger
	cfg        config.Listener
	handler    PacketHandler
	clientPort int
	relayPort  int

	mu     sync.RWMutex
	conn   net.PacketConn
	pc     *ipv6.PacketConn
	ifaces map[int]string
}

func New(cfg config.Listener, handler PacketHandler, opts ...Option) *Component {
	c := &Component{
		Base:       component.NewBase("listener"),
		logger:     logger.Get(logger.Listener),
		cfg:        cfg,
		handler:    handler,
		clientPort: protocol.ClientPort,
		relayPort:  protocol.ServerPort,
		ifaces:     make(map[int]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.ReadTimeout <= 0 {
		c.cfg.ReadTimeout = config.DefaultReadTimeout
	}
	return c
}

// Addr returns the bound address once the listener has started.
func (c *Component) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *Component) Start(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Address, strconv.Itoa(c.cfg.Port))
	lc := net.ListenConfig{Control: reuseAddr}

	conn, err := lc.ListenPacket(ctx, "udp6", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		conn.Close()
		return fmt.Errorf("enable control messages: %w", err)
	}

	group := &net.UDPAddr{IP: protocol.AllDHCPRelayAgentsAndServers.AsSlice()}
	for _, name := range c.cfg.Interfaces {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			conn.Close()
			return fmt.Errorf("interface %s: %w", name, err)
		}
		if err := pc.JoinGroup(ifi, group); err != nil {
			conn.Close()
			return fmt.Errorf("join %s on %s: %w", protocol.AllDHCPRelayAgentsAndServers, name, err)
		}
		c.ifaces[ifi.Index] = ifi.Name
		c.logger.Debug("Joined multicast group", "interface", ifi.Name, "group", protocol.AllDHCPRelayAgentsAndServers.String())
	}

	c.mu.Lock()
	c.conn = conn
	c.pc = pc
	c.mu.Unlock()

	c.StartContext(ctx)
	c.logger.Info("Starting DHCPv6 listener", "addr", conn.LocalAddr().String(), "interfaces", c.cfg.Interfaces)

	c.Go(c.readLoop)

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping DHCPv6 listener")

	c.StopContext()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.pc = nil
		return err
	}
	return nil
}

func (c *Component) readLoop() {
	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-c.Ctx.Done():
			return
		default:
		}

		if err := c.pc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			if c.Ctx.Err() == nil {
				c.logger.Error("Failed to set read deadline, stopping receive loop", "error", err)
			}
			return
		}

		n, cm, src, err := c.pc.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-c.Ctx.Done():
				return
			default:
				c.logger.Warn("Error reading from socket", "error", err)
				continue
			}
		}

		peer, ok := src.(*net.UDPAddr)
		if !ok || n == 0 {
			continue
		}

		var ifIndex int
		multicast := false
		if cm != nil {
			ifIndex = cm.IfIndex
			multicast = cm.Dst.IsMulticast()
		}
		ifName := c.interfaceName(ifIndex)

		if multicast && len(c.ifaces) > 0 {
			if _, ok := c.ifaces[ifIndex]; !ok {
				c.logger.Debug("Ignoring multicast packet on unconfigured interface", "interface", ifName)
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		c.handle(peer, ifIndex, ifName, multicast, data)
	}
}

func (c *Component) handle(peer *net.UDPAddr, ifIndex int, ifName string, multicast bool, data []byte) {
	pkt := server.Packet{
		Data:                  data,
		ReceivedOverMulticast: multicast,
	}
	if ifName != "" {
		pkt.Marks = []string{ifName}
	}

	reply, err := c.handler.HandlePacket(c.Ctx, pkt)
	if err != nil {
		c.logger.Debug("Dropped packet", "peer", peer.String(), "interface", ifName, "error", err)
		return
	}
	if reply == nil {
		return
	}

	dst := &net.UDPAddr{IP: peer.IP, Zone: peer.Zone, Port: c.ReplyPort(reply)}
	var cm *ipv6.ControlMessage
	if ifIndex != 0 {
		cm = &ipv6.ControlMessage{IfIndex: ifIndex}
	}

	if _, err := c.pc.WriteTo(reply, cm, dst); err != nil {
		c.logger.Warn("Failed to send reply", "peer", dst.String(), "interface", ifName, "error", err)
	}
}

// ReplyPort picks the destination port for an encoded reply: relay agents
// listen on the server port, clients on the client port.
func (c *Component) ReplyPort(reply []byte) int {
	if len(reply) > 0 && protocol.MessageType(reply[0]) == protocol.MessageTypeRelayReply {
		return c.relayPort
	}
	return c.clientPort
}

func (c *Component) interfaceName(index int) string {
	if index == 0 {
		return ""
	}
	if name, ok := c.ifaces[index]; ok {
		return name
	}
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return ""
	}
	return ifi.Name
}
