package handlers

import (
	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
)

// TimingLimits fills in and bounds T1 and T2 of the IA_NA or IA_PD options
// in the response so that T1 <= T2 <= the shortest preferred lifetime.
type TimingLimits struct {
	Base
	name   string
	code   protocol.OptionCode
	limits config.Timing
}

func NewIANATimingLimits(limits config.Timing) *TimingLimits {
	return &TimingLimits{name: "iana-timing-limits", code: protocol.OptionIANA, limits: limits}
}

func NewIAPDTimingLimits(limits config.Timing) *TimingLimits {
	return &TimingLimits{name: "iapd-timing-limits", code: protocol.OptionIAPD, limits: limits}
}

func (h *TimingLimits) Name() string { return h.name }

func (h *TimingLimits) Handle(b *transaction.Bundle) (Verdict, error) {
	for _, opt := range b.Response.OptionsOf(h.code) {
		switch ia := opt.(type) {
		case *protocol.IANAOption:
			ia.T1, ia.T2 = h.Limit(ia.T1, ia.T2, ia.Opts)
		case *protocol.IAPDOption:
			ia.T1, ia.T2 = h.Limit(ia.T1, ia.T2, ia.Opts)
		}
	}
	return Continue, nil
}

// Limit returns the timers for an IA holding opts. Zero timers are derived
// from the shortest preferred lifetime; the result is then clamped to the
// configured bounds. IAs without addresses or prefixes keep their timers.
func (h *TimingLimits) Limit(t1, t2 uint32, opts []protocol.Option) (uint32, uint32) {
	shortest, ok := protocol.ShortestPreferredLifetime(opts)
	if !ok {
		return t1, t2
	}

	if t1 == 0 {
		t1 = scale(shortest, h.limits.FactorT1)
	}
	if t2 == 0 {
		t2 = scale(shortest, h.limits.FactorT2)
	}

	t1 = clamp(t1, h.limits.MinT1, h.limits.MaxT1)
	t2 = clamp(t2, h.limits.MinT2, h.limits.MaxT2)

	t2 = min(t2, shortest)
	t1 = min(t1, t2)
	return t1, t2
}

func scale(lifetime uint32, factor float64) uint32 {
	if lifetime == protocol.Infinity {
		return protocol.Infinity
	}
	return uint32(float64(lifetime) * factor)
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}
