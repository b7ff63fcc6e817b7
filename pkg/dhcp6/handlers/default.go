package handlers

import (
	"fmt"
	"net/netip"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/assignment"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/protocol"
)

// Default builds the handler chain for cfg. source may be nil when no
// static assignments are configured. extra handlers run after the built-in
// ones that answer requests and before those that clean up the response.
func Default(cfg *config.Config, serverID protocol.DUID, source assignment.Source, extra ...Handler) ([]Handler, error) {
	var unicast netip.Addr
	if cfg.Server.UnicastAddress != "" {
		addr, err := config.ParseIPv6(cfg.Server.UnicastAddress)
		if err != nil {
			return nil, fmt.Errorf("unicast address: %w", err)
		}
		unicast = addr
	}

	chain := []Handler{
		NewServerID(serverID),
		NewClientID(),
		NewUnicastPolicy(cfg.Server.AllowUnicast, unicast),
	}

	if source != nil {
		chain = append(chain, NewStaticAssignment(source, cfg.Assignments))
	}

	static, err := StaticOptions(cfg)
	if err != nil {
		return nil, err
	}
	for _, h := range static {
		chain = append(chain, h)
	}
	chain = append(chain, extra...)

	chain = append(chain,
		NewUnansweredIA(cfg.Server.Authoritative),
		NewUnansweredPD(cfg.Server.Authoritative),
		NewIANATimingLimits(cfg.IANATiming),
		NewIAPDTimingLimits(cfg.IAPDTiming),
		NewStatusDefault(),
		NewRapidCommit(cfg.Server.RapidCommitRejections),
	)

	return chain, nil
}

// StaticOptions returns a StaticOption handler for every option set in the
// options and server sections of cfg.
func StaticOptions(cfg *config.Config) ([]*StaticOption, error) {
	opts := cfg.Options
	var out []*StaticOption

	add := func(opt protocol.Option, onlyIfRequested bool, requestTypes ...protocol.MessageType) *StaticOption {
		h := NewStaticOption(opt, onlyIfRequested)
		h.RequestTypes = requestTypes
		out = append(out, h)
		return h
	}

	if cfg.Server.Preference != nil {
		h := add(&protocol.PreferenceOption{Preference: *cfg.Server.Preference}, false)
		h.ResponseTypes = []protocol.MessageType{protocol.MessageTypeAdvertise}
	}

	if len(opts.DNSServers) > 0 {
		servers, err := config.ParseIPv6List(opts.DNSServers)
		if err != nil {
			return nil, fmt.Errorf("dns servers: %w", err)
		}
		add(&protocol.RecursiveNameServersOption{Servers: servers}, opts.OnlyIfRequested)
	}

	if len(opts.SNTPServers) > 0 {
		servers, err := config.ParseIPv6List(opts.SNTPServers)
		if err != nil {
			return nil, fmt.Errorf("sntp servers: %w", err)
		}
		add(&protocol.SNTPServersOption{Servers: servers}, opts.OnlyIfRequested)
	}

	if opts.InformationRefreshTime != 0 {
		add(&protocol.InformationRefreshTimeOption{RefreshTime: opts.InformationRefreshTime}, false,
			protocol.MessageTypeInformationRequest)
	}

	if opts.SolMaxRT != 0 {
		add(&protocol.SolMaxRTOption{MaxRT: opts.SolMaxRT}, false,
			protocol.MessageTypeSolicit, protocol.MessageTypeRequest, protocol.MessageTypeRenew, protocol.MessageTypeRebind)
	}

	if opts.InfMaxRT != 0 {
		add(&protocol.InfMaxRTOption{MaxRT: opts.InfMaxRT}, false, protocol.MessageTypeInformationRequest)
	}

	for i, rule := range opts.S46Rules {
		v4, v6, err := rule.Prefixes()
		if err != nil {
			return nil, fmt.Errorf("s46 rule %d: %w", i, err)
		}
		opt := &protocol.S46RuleOption{
			EALen:      rule.EALength,
			IPv4Prefix: v4,
			IPv6Prefix: v6,
		}
		if rule.Forwarding {
			opt.Flags |= protocol.S46RuleFlagForwarding
		}
		add(opt, opts.OnlyIfRequested)
	}

	for _, h := range out {
		if err := h.option.Validate(); err != nil {
			return nil, fmt.Errorf("static option %s: %w", h.option.Code(), err)
		}
	}

	return out, nil
}
