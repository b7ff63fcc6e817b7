package handlers

import (
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// Unanswered answers every identity association of the request that no
// earlier handler claimed. It belongs near the end of the chain.
type Unanswered struct {
	Base
	name          string
	codes         []protocol.OptionCode
	noAvail       protocol.StatusCode
	noAvailText   string
	authoritative bool
}

// NewUnansweredIA handles IA_NA and IA_TA options.
func NewUnansweredIA(authoritative bool) *Unanswered {
	return &Unanswered{
		name:          "unanswered-ia",
		codes:         protocol.GroupAddress,
		noAvail:       protocol.StatusNoAddrsAvail,
		noAvailText:   "No addresses available",
		authoritative: authoritative,
	}
}

// NewUnansweredPD handles IA_PD options.
func NewUnansweredPD(authoritative bool) *Unanswered {
	return &Unanswered{
		name:          "unanswered-pd",
		codes:         []protocol.OptionCode{protocol.OptionIAPD},
		noAvail:       protocol.StatusNoPrefixAvail,
		noAvailText:   "No prefixes available",
		authoritative: authoritative,
	}
}

func (h *Unanswered) Name() string { return h.name }

func (h *Unanswered) Handle(b *transaction.Bundle) (Verdict, error) {
	for _, opt := range b.UnhandledOptions(h.codes...) {
		switch b.Request.MsgType {
		case protocol.MessageTypeSolicit, protocol.MessageTypeRequest:
			b.Response.AddOption(reply(opt, status(h.noAvail, h.noAvailText)))

		case protocol.MessageTypeConfirm:
			if !h.authoritative {
				b.Logger().Debug("Cannot confirm bindings, not authoritative")
				return Drop, nil
			}
			b.Response.RemoveOptions(protocol.OptionStatusCode)
			b.Response.AddOption(status(protocol.StatusNotOnLink, "Those addresses are not appropriate on this link"))

		case protocol.MessageTypeRenew:
			if h.authoritative && hasLeases(opt) {
				b.Response.AddOption(withdraw(opt))
			} else {
				b.Response.AddOption(reply(opt, status(protocol.StatusNoBinding, "No known bindings")))
			}

		case protocol.MessageTypeRebind:
			if !h.authoritative {
				b.Logger().Debug("Cannot rebind unknown bindings, not authoritative")
				return Drop, nil
			}
			b.Response.AddOption(withdraw(opt))

		case protocol.MessageTypeRelease, protocol.MessageTypeDecline:
			b.Response.AddOption(reply(opt, status(protocol.StatusNoBinding, "No known bindings")))

		default:
			continue
		}

		b.MarkHandled(opt)
	}
	return Continue, nil
}

func status(code protocol.StatusCode, message string) *protocol.StatusCodeOption {
	return &protocol.StatusCodeOption{Status: code, Message: message}
}

// reply builds an empty response IA with the same type and IAID as ia.
func reply(ia protocol.Option, children ...protocol.Option) protocol.Option {
	switch v := ia.(type) {
	case *protocol.IANAOption:
		return &protocol.IANAOption{IAID: v.IAID, Opts: children}
	case *protocol.IATAOption:
		return &protocol.IATAOption{IAID: v.IAID, Opts: children}
	case *protocol.IAPDOption:
		return &protocol.IAPDOption{IAID: v.IAID, Opts: children}
	}
	return nil
}

// withdraw returns ia with every address and prefix at zero lifetimes.
func withdraw(ia protocol.Option) protocol.Option {
	c, _ := ia.(protocol.Container)
	var leases []protocol.Option
	if c != nil {
		for _, child := range c.Options() {
			if lease := zeroLifetime(child); lease != nil {
				leases = append(leases, lease)
			}
		}
	}
	return reply(ia, leases...)
}

func zeroLifetime(opt protocol.Option) protocol.Option {
	switch v := opt.(type) {
	case *protocol.IAAddressOption:
		return &protocol.IAAddressOption{Address: v.Address}
	case *protocol.IAPrefixOption:
		return &protocol.IAPrefixOption{Prefix: v.Prefix}
	}
	return nil
}

func hasLeases(ia protocol.Option) bool {
	c, ok := ia.(protocol.Container)
	if !ok {
		return false
	}
	return len(protocol.FindOptions(c.Options(), protocol.OptionIAAddress, protocol.OptionIAPrefix)) > 0
}
