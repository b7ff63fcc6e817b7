package handlers

import (
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// RapidCommit turns the Advertise for a Solicit with a Rapid Commit option
// into a Reply when the transaction allows it. With rejections disabled an
// Advertise that refuses or leaves out any binding is sent as is, so the
// client can look for a better server.
type RapidCommit struct {
	Base
	rejections bool
}

func NewRapidCommit(rejections bool) *RapidCommit {
	return &RapidCommit{rejections: rejections}
}

func (h *RapidCommit) Name() string { return "rapid-commit" }

func (h *RapidCommit) Post(b *transaction.Bundle) (Verdict, error) {
	if !b.AllowRapidCommit() || b.Response == nil {
		return Continue, nil
	}
	if b.Request.MsgType != protocol.MessageTypeSolicit || b.Response.MsgType != protocol.MessageTypeAdvertise {
		return Continue, nil
	}
	if b.Request.Option(protocol.OptionRapidCommit) == nil {
		return Continue, nil
	}

	if !h.rejections {
		if len(b.UnhandledOptions(protocol.GroupIA...)) > 0 || refuses(b.Response) {
			b.Logger().Debug("Not using rapid commit for a response with rejections")
			b.DisallowRapidCommit()
			return Continue, nil
		}
	}

	b.Response.MsgType = protocol.MessageTypeReply
	b.Response.Opts = append([]protocol.Option{&protocol.RapidCommitOption{}}, b.Response.Opts...)
	return Continue, nil
}

// refuses reports whether msg, or any IA in it, carries NoAddrsAvail or
// NoPrefixAvail.
func refuses(msg *protocol.ClientServerMessage) bool {
	if refusal(msg.Opts) {
		return true
	}
	for _, opt := range msg.OptionsOf(protocol.GroupIA...) {
		if c, ok := opt.(protocol.Container); ok && refusal(c.Options()) {
			return true
		}
	}
	return false
}

func refusal(opts []protocol.Option) bool {
	for _, opt := range protocol.FindOptions(opts, protocol.OptionStatusCode) {
		s, ok := opt.(*protocol.StatusCodeOption)
		if !ok {
			continue
		}
		switch s.Status {
		case protocol.StatusNoAddrsAvail, protocol.StatusNoPrefixAvail:
			return true
		}
	}
	return false
}
