package config

import (
	"fmt"
	"net/netip"
	"strings"
)

func ParseIPv6(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address: %w", err)
	}
	if !addr.Is6() || addr.Is4In6() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv6 address", s)
	}
	return addr, nil
}

func ParseIPv6List(list []string) ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(list))
	for _, s := range list {
		addr, err := ParseIPv6(s)
		if err != nil {
			return nil, err
		}
		if addr.IsMulticast() || addr.IsUnspecified() || addr.IsLoopback() {
			return nil, fmt.Errorf("%s is not a routable unicast address", addr)
		}
		out = append(out, addr)
	}
	return out, nil
}

// Prefixes parses both prefixes of a MAP rule.
func (r S46Rule) Prefixes() (v4, v6 netip.Prefix, err error) {
	v4, err = netip.ParsePrefix(strings.TrimSpace(r.IPv4Prefix))
	if err != nil {
		return v4, v6, fmt.Errorf("ipv4_prefix: %w", err)
	}
	if !v4.Addr().Is4() {
		return v4, v6, fmt.Errorf("ipv4_prefix: %s is not an IPv4 prefix", v4)
	}
	v6, err = netip.ParsePrefix(strings.TrimSpace(r.IPv6Prefix))
	if err != nil {
		return v4, v6, fmt.Errorf("ipv6_prefix: %w", err)
	}
	if !v6.Addr().Is6() {
		return v4, v6, fmt.Errorf("ipv6_prefix: %s is not an IPv6 prefix", v6)
	}
	return v4.Masked(), v6.Masked(), nil
}
