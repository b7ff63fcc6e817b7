package handlers

import (
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// ServerID drops requests meant for another server and puts our server
// identifier in every response.
type ServerID struct {
	Base
	option *protocol.ServerIDOption
}

func NewServerID(duid protocol.DUID) *ServerID {
	return &ServerID{option: &protocol.ServerIDOption{DUID: duid}}
}

func (h *ServerID) Name() string { return "server-id" }

func (h *ServerID) Pre(b *transaction.Bundle) (Verdict, error) {
	opt, _ := b.Request.Option(protocol.OptionServerID).(*protocol.ServerIDOption)

	if opt != nil && !protocol.EqualDUID(opt.DUID, h.option.DUID) {
		b.Logger().Debug("Request is for another server", "server_id", protocol.DUIDString(opt.DUID))
		return Drop, nil
	}

	switch b.Request.MsgType {
	case protocol.MessageTypeSolicit, protocol.MessageTypeConfirm, protocol.MessageTypeRebind:
		if opt != nil {
			b.Logger().Debug("Request must not carry a server id")
			return Drop, nil
		}
	case protocol.MessageTypeRequest, protocol.MessageTypeRenew,
		protocol.MessageTypeRelease, protocol.MessageTypeDecline:
		if opt == nil {
			b.Logger().Debug("Request lacks a server id")
			return Drop, nil
		}
	}

	return Continue, nil
}

func (h *ServerID) Handle(b *transaction.Bundle) (Verdict, error) {
	if b.Response.Option(protocol.OptionServerID) == nil {
		b.Response.AddOption(h.option)
	}
	return Continue, nil
}

// ClientID drops requests that need a client identifier but lack one and
// echoes the client identifier in the response.
type ClientID struct {
	Base
}

func NewClientID() *ClientID {
	return &ClientID{}
}

func (h *ClientID) Name() string { return "client-id" }

func (h *ClientID) Pre(b *transaction.Bundle) (Verdict, error) {
	if b.Request.MsgType == protocol.MessageTypeInformationRequest {
		return Continue, nil
	}
	if b.Request.Option(protocol.OptionClientID) == nil {
		b.Logger().Debug("Request lacks a client id")
		return Drop, nil
	}
	return Continue, nil
}

func (h *ClientID) Handle(b *transaction.Bundle) (Verdict, error) {
	cid := b.Request.Option(protocol.OptionClientID)
	if cid != nil && b.Response.Option(protocol.OptionClientID) == nil {
		b.Response.AddOption(cid)
	}
	return Continue, nil
}
