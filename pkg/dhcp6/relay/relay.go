// Package relay unwraps Relay-forward chains into the client message they
// carry and wraps responses into the mirrored Relay-reply chain.
package relay

import (
	"fmt"
	"log/slog"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

// Split peels relay envelopes off msg until it reaches a client-server
// message. Envelopes are returned client-nearest first, so the last entry
// is the outermost relay.
//
// A nil request means the packet must be dropped: the leaf is of an unknown
// type or does not travel from client to server.
func Split(msg protocol.Message) (*protocol.ClientServerMessage, []*protocol.RelayMessage) {
	return split(logger.Get(logger.Relay), msg)
}

func split(log *slog.Logger, msg protocol.Message) (*protocol.ClientServerMessage, []*protocol.RelayMessage) {
	var chain []*protocol.RelayMessage

	for {
		rm, ok := msg.(*protocol.RelayMessage)
		if !ok {
			break
		}
		if rm.MsgType != protocol.MessageTypeRelayForward {
			log.Warn("Dropping relay envelope travelling the wrong way", "type", rm.MsgType.String())
			return nil, nil
		}
		chain = append([]*protocol.RelayMessage{rm}, chain...)
		msg = rm.RelayedMessage()
		if msg == nil {
			log.Warn("Dropping relay envelope without relayed message", "hop_count", rm.HopCount)
			return nil, nil
		}
	}

	switch m := msg.(type) {
	case *protocol.ClientServerMessage:
		if !m.MsgType.FromClientToServer() {
			log.Warn("Dropping message sent in the wrong direction", "type", m.MsgType.String())
			return nil, nil
		}
		return m, chain
	case *protocol.UnknownMessage:
		log.Warn("Dropping message of unknown type", "type", uint8(m.MsgType))
		return nil, nil
	default:
		log.Warn("Dropping unsupported message", "type", fmt.Sprintf("%T", msg))
		return nil, nil
	}
}

// Mirror builds Relay-reply envelopes matching the incoming chain level by
// level. Interface-ID options are copied into the reply of the same level.
func Mirror(incoming []*protocol.RelayMessage) []*protocol.RelayMessage {
	out := make([]*protocol.RelayMessage, 0, len(incoming))
	for _, in := range incoming {
		reply := &protocol.RelayMessage{
			MsgType:     protocol.MessageTypeRelayReply,
			HopCount:    in.HopCount,
			LinkAddress: in.LinkAddress,
			PeerAddress: in.PeerAddress,
		}
		if id, ok := in.Option(protocol.OptionInterfaceID).(*protocol.InterfaceIDOption); ok {
			reply.AddOption(&protocol.InterfaceIDOption{InterfaceID: id.InterfaceID})
		}
		out = append(out, reply)
	}
	return out
}

// Embed nests response inside the reply envelopes (client-nearest first) and
// returns the outermost message. With no envelopes the response itself is
// returned.
func Embed(envelopes []*protocol.RelayMessage, response protocol.Message) protocol.Message {
	if len(envelopes) == 0 {
		return response
	}
	envelopes[0].SetRelayedMessage(response)
	return Embed(envelopes[1:], envelopes[0])
}

// Wrap mirrors the incoming chain and embeds response at its innermost
// level.
func Wrap(incoming []*protocol.RelayMessage, response protocol.Message) (protocol.Message, error) {
	if response == nil {
		return nil, fmt.Errorf("wrap: nil response")
	}
	if !response.Type().FromServerToClient() {
		return nil, fmt.Errorf("wrap: %s is not a server to client message", response.Type())
	}
	return Embed(Mirror(incoming), response), nil
}
