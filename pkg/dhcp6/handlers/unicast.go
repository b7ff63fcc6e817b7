package handlers

import (
	"net/netip"

	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// UnicastPolicy sends clients that unicast a Request, Renew, Release or
// Decline back to multicast unless unicast is allowed. When it is allowed
// and a unicast address is set, responses advertise that address.
type UnicastPolicy struct {
	Base
	allow  bool
	option *protocol.ServerUnicastOption
}

func NewUnicastPolicy(allow bool, address netip.Addr) *UnicastPolicy {
	h := &UnicastPolicy{allow: allow}
	if allow && address.IsValid() {
		h.option = &protocol.ServerUnicastOption{Address: address}
	}
	return h
}

func (h *UnicastPolicy) Name() string { return "unicast-policy" }

func (h *UnicastPolicy) Pre(b *transaction.Bundle) (Verdict, error) {
	if h.allow || b.ReceivedOverMulticast || b.Relayed() {
		return Continue, nil
	}

	switch b.Request.MsgType {
	case protocol.MessageTypeRequest, protocol.MessageTypeRenew,
		protocol.MessageTypeRelease, protocol.MessageTypeDecline:
		return RedirectMulticast, nil
	}
	return Continue, nil
}

func (h *UnicastPolicy) Handle(b *transaction.Bundle) (Verdict, error) {
	if h.option != nil && !b.Relayed() && b.Response.Option(protocol.OptionServerUnicast) == nil {
		b.Response.AddOption(h.option)
	}
	return Continue, nil
}
