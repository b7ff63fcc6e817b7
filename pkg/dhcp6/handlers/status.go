package handlers

import (
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// StatusDefault adds a Success status to replies to Confirm, Release and
// Decline that have none. It must come after every handler that may set a
// status.
type StatusDefault struct {
	Base
}

func NewStatusDefault() *StatusDefault {
	return &StatusDefault{}
}

func (h *StatusDefault) Name() string { return "status-default" }

func (h *StatusDefault) Handle(b *transaction.Bundle) (Verdict, error) {
	switch b.Request.MsgType {
	case protocol.MessageTypeConfirm:
		h.ensure(b, "Assigned addresses are appropriate on this link")
	case protocol.MessageTypeRelease:
		h.ensure(b, "Bindings released")
	case protocol.MessageTypeDecline:
		h.ensure(b, "Addresses declined")
	}
	return Continue, nil
}

func (h *StatusDefault) ensure(b *transaction.Bundle, message string) {
	if b.Response.Option(protocol.OptionStatusCode) == nil {
		b.Response.AddOption(status(protocol.StatusSuccess, message))
	}
}
