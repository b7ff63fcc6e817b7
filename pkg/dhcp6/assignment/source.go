// Package assignment looks up statically configured addresses and prefixes
// for clients. Backends register themselves by name and are selected by the
// assignments section of the configuration.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"inet.af/netaddr"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
	"github.com/veesix-networks/dhcp6d/pkg/provider"
)

var ErrUnknownBackend = errors.New("unknown assignment backend")

// Assignment is what a client is given. Either field may be the zero value.
type Assignment struct {
	Address netip.Addr
	Prefix  netip.Prefix
}

func (a Assignment) IsZero() bool {
	return !a.Address.IsValid() && !a.Prefix.IsValid()
}

// Source is implemented by every backend. Assignment returns the zero
// Assignment and a nil error when the client has no entry. Implementations
// must be safe for concurrent use.
type Source interface {
	provider.Provider
	Assignment(ctx context.Context, b *transaction.Bundle) (Assignment, error)
	Close() error
}

type Factory func(cfg config.Assignments) (Source, error)

var backends = provider.NewRegistry[Factory]("assignment backend")

func Register(name string, factory Factory) {
	backends.Register(name, factory)
}

func Get(name string) (Factory, bool) {
	return backends.Get(name)
}

func List() []string {
	return backends.List()
}

// Open creates the backend selected by cfg.Type. It returns a nil Source
// when no backend is configured.
func Open(cfg config.Assignments) (Source, error) {
	if cfg.Type == "" {
		return nil, nil
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownBackend, cfg.Type, strings.Join(List(), ", "))
	}
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}
	return src, nil
}

type lookupFunc func(ctx context.Context, key string) (Assignment, bool, error)

// resolve tries each key of the bundle in order and returns the first hit.
func resolve(ctx context.Context, b *transaction.Bundle, lookup lookupFunc) (Assignment, error) {
	for _, key := range Keys(b) {
		a, ok, err := lookup(ctx, key)
		if err != nil {
			return Assignment{}, fmt.Errorf("lookup %s: %w", key, err)
		}
		if ok {
			b.Logger().Debug("Found static assignment", "key", key, "address", a.Address, "prefix", a.Prefix)
			return a, nil
		}
	}
	return Assignment{}, nil
}

// parseEntry parses the address and prefix columns of a stored entry. Empty
// columns are allowed.
func parseEntry(address, prefix string) (Assignment, error) {
	var a Assignment

	if address = strings.TrimSpace(address); address != "" {
		ip, err := netaddr.ParseIP(address)
		if err != nil {
			return a, fmt.Errorf("address: %w", err)
		}
		if !ip.Is6() {
			return a, fmt.Errorf("address: %s is not an IPv6 address", ip)
		}
		a.Address = netip.AddrFrom16(ip.As16())
	}

	if prefix = strings.TrimSpace(prefix); prefix != "" {
		p, err := netaddr.ParseIPPrefix(prefix)
		if err != nil {
			return a, fmt.Errorf("prefix: %w", err)
		}
		if !p.IP().Is6() {
			return a, fmt.Errorf("prefix: %s is not an IPv6 prefix", p)
		}
		p = p.Masked()
		a.Prefix = netip.PrefixFrom(netip.AddrFrom16(p.IP().As16()), int(p.Bits()))
	}

	return a, nil
}

// formatEntry is the inverse of parseEntry.
func formatEntry(a Assignment) (address, prefix string) {
	if a.Address.IsValid() {
		address = a.Address.String()
	}
	if a.Prefix.IsValid() {
		prefix = a.Prefix.String()
	}
	return address, prefix
}

func validateEntry(a Assignment) error {
	if a.Address.IsValid() && (a.Address.IsMulticast() || a.Address.IsUnspecified() || a.Address.IsLoopback()) {
		return fmt.Errorf("address %s is not a routable unicast address", a.Address)
	}
	if a.Prefix.IsValid() && a.Prefix.Addr().IsMulticast() {
		return fmt.Errorf("prefix %s is a multicast prefix", a.Prefix)
	}
	return nil
}
