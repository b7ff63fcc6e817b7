package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/server"
)

type PacketHandler interface {
	HandlePacket(ctx context.Context, pkt server.Packet) ([]byte, error)
}

type Stats struct {
	Packets int
	DHCPv6  int
	Replied int
	Dropped int
	Errors  int
}

type Replayer struct {
	handler PacketHandler
	logger  *slog.Logger
	out     *pcapgo.Writer
}

// NewReplayer feeds captured client and relay packets to handler. When out
// is not nil the replies are written to it as a raw IPv6 capture.
func NewReplayer(handler PacketHandler, log *slog.Logger, out io.Writer) (*Replayer, error) {
	r := &Replayer{handler: handler, logger: log}
	if out != nil {
		w := pcapgo.NewWriter(out)
		if err := w.WriteFileHeader(65536, layers.LinkTypeRaw); err != nil {
			return nil, fmt.Errorf("write capture header: %w", err)
		}
		r.out = w
	}
	return r, nil
}

func (r *Replayer) Run(ctx context.Context, in io.Reader) (Stats, error) {
	var stats Stats

	reader, err := pcapgo.NewReader(in)
	if err != nil {
		return stats, fmt.Errorf("open capture: %w", err)
	}

	for {
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		ip6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok {
			continue
		}
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || udp.DstPort != layers.UDPPort(protocol.ServerPort) {
			continue
		}
		stats.DHCPv6++

		reply, err := r.handler.HandlePacket(ctx, server.Packet{
			Data:                  udp.Payload,
			ReceivedOverMulticast: ip6.DstIP.IsMulticast(),
		})
		switch {
		case err != nil:
			stats.Errors++
			r.logger.Warn("Packet rejected", "packet", stats.Packets, "src", ip6.SrcIP.String(), "error", err)
			continue
		case reply == nil:
			stats.Dropped++
			r.logger.Debug("Packet dropped", "packet", stats.Packets, "src", ip6.SrcIP.String())
			continue
		}
		stats.Replied++
		r.logger.Info("Reply", "packet", stats.Packets, "src", ip6.SrcIP.String(), "type", protocol.MessageType(reply[0]).String(), "len", len(reply))

		if r.out != nil {
			if err := r.write(ci, ip6, udp, reply); err != nil {
				return stats, err
			}
		}
	}
}

func (r *Replayer) write(ci gopacket.CaptureInfo, req *layers.IPv6, reqUDP *layers.UDP, reply []byte) error {
	dstPort := layers.UDPPort(protocol.ClientPort)
	if protocol.MessageType(reply[0]) == protocol.MessageTypeRelayReply {
		dstPort = layers.UDPPort(protocol.ServerPort)
	}

	src := req.DstIP
	if src.IsMulticast() {
		src = net.IPv6unspecified
	}

	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      src,
		DstIP:      req.SrcIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(protocol.ServerPort),
		DstPort: dstPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ip6); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip6, udp, gopacket.Payload(reply)); err != nil {
		return fmt.Errorf("serialize reply: %w", err)
	}

	out := buf.Bytes()
	ci.CaptureLength = len(out)
	ci.Length = len(out)
	if err := r.out.WritePacket(ci, out); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
