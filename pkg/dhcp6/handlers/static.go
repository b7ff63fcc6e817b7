package handlers

import (
	"fmt"
	"slices"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/assignment"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// StaticOption adds a fixed option to responses. The option is shared
// between transactions and must not be modified.
type StaticOption struct {
	Base
	option protocol.Option

	// OnlyIfRequested limits the option to clients listing it in their
	// Option Request option.
	OnlyIfRequested bool
	// RequestTypes and ResponseTypes restrict the messages the option is
	// added to. Empty means all.
	RequestTypes  []protocol.MessageType
	ResponseTypes []protocol.MessageType
}

func NewStaticOption(opt protocol.Option, onlyIfRequested bool) *StaticOption {
	return &StaticOption{option: opt, OnlyIfRequested: onlyIfRequested}
}

func (h *StaticOption) Name() string {
	return "static-option:" + h.option.Code().String()
}

func (h *StaticOption) Handle(b *transaction.Bundle) (Verdict, error) {
	if len(h.RequestTypes) > 0 && !slices.Contains(h.RequestTypes, b.Request.MsgType) {
		return Continue, nil
	}
	if len(h.ResponseTypes) > 0 && !slices.Contains(h.ResponseTypes, b.Response.MsgType) {
		return Continue, nil
	}
	if h.OnlyIfRequested {
		oro, _ := b.Request.Option(protocol.OptionOptionRequest).(*protocol.OptionRequestOption)
		if oro == nil || !oro.Has(h.option.Code()) {
			return Continue, nil
		}
	}

	b.Response.AddOption(h.option)
	return Continue, nil
}

// StaticAssignment gives clients the address and prefix the assignment
// source holds for them. Only the first IA_NA and the first IA_PD of a
// request are answered; the rest are left to later handlers.
type StaticAssignment struct {
	Base
	source    assignment.Source
	lifetimes config.Assignments
}

func NewStaticAssignment(source assignment.Source, lifetimes config.Assignments) *StaticAssignment {
	return &StaticAssignment{source: source, lifetimes: lifetimes}
}

func (h *StaticAssignment) Name() string {
	return "static-assignment:" + h.source.Info().Name
}

func (h *StaticAssignment) Handle(b *transaction.Bundle) (Verdict, error) {
	if b.Request.MsgType == protocol.MessageTypeInformationRequest {
		return Continue, nil
	}
	if len(b.UnhandledOptions(protocol.OptionIANA, protocol.OptionIAPD)) == 0 {
		return Continue, nil
	}

	a, err := h.source.Assignment(b.Ctx, b)
	if err != nil {
		return Drop, fmt.Errorf("assignment lookup: %w", err)
	}
	if a.IsZero() {
		return Continue, nil
	}

	if a.Address.IsValid() {
		if ia := first(b.UnhandledOptions(protocol.OptionIANA)); ia != nil {
			h.answer(b, ia, &protocol.IAAddressOption{
				Address:           a.Address,
				PreferredLifetime: h.lifetimes.AddressPreferred,
				ValidLifetime:     h.lifetimes.AddressValid,
			})
		}
	}
	if a.Prefix.IsValid() {
		if ia := first(b.UnhandledOptions(protocol.OptionIAPD)); ia != nil {
			h.answer(b, ia, &protocol.IAPrefixOption{
				Prefix:            a.Prefix,
				PreferredLifetime: h.lifetimes.PrefixPreferred,
				ValidLifetime:     h.lifetimes.PrefixValid,
			})
		}
	}
	return Continue, nil
}

// answer handles one request IA. lease is the option carrying our address
// or prefix.
func (h *StaticAssignment) answer(b *transaction.Bundle, ia protocol.Option, lease protocol.Option) {
	requested := ia.(protocol.Container).Options()

	switch b.Request.MsgType {
	case protocol.MessageTypeSolicit, protocol.MessageTypeRequest,
		protocol.MessageTypeRenew, protocol.MessageTypeRebind:
		children := []protocol.Option{lease}
		// Anything else the client asks for is no longer valid.
		for _, child := range requested {
			if old := zeroLifetime(child); old != nil && !sameLease(old, lease) {
				children = append(children, old)
			}
		}
		b.Response.AddOption(reply(ia, children...))
		b.MarkHandled(ia)

	case protocol.MessageTypeConfirm, protocol.MessageTypeRelease, protocol.MessageTypeDecline:
		// Only vouch for IAs that hold nothing but our lease.
		for _, child := range requested {
			if old := zeroLifetime(child); old != nil && !sameLease(old, lease) {
				return
			}
		}
		b.MarkHandled(ia)
	}
}

func sameLease(a, b protocol.Option) bool {
	switch av := a.(type) {
	case *protocol.IAAddressOption:
		bv, ok := b.(*protocol.IAAddressOption)
		return ok && av.Address == bv.Address
	case *protocol.IAPrefixOption:
		bv, ok := b.(*protocol.IAPrefixOption)
		return ok && av.Prefix == bv.Prefix
	}
	return false
}

func first(opts []protocol.Option) protocol.Option {
	if len(opts) == 0 {
		return nil
	}
	return opts[0]
}
