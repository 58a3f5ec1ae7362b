// Package domain provides name resolution for the fetch client.
package domain

import (
	"context"
	"maps"
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

var ErrResolutionFailed = errors.New("name resolution failed")

type Lookuper interface {
	LookupIP(ctx context.Context, host string) (addrs []netip.Addr, err error)
}

type mapLookuper struct {
	set map[string][]netip.Addr
}

var _ Lookuper = (*mapLookuper)(nil)

// NewMapLookuper creates a [Lookuper] backed by a static table.
func NewMapLookuper(set map[string][]netip.Addr) *mapLookuper {
	if set == nil {
		set = make(map[string][]netip.Addr)
	}
	return &mapLookuper{set: maps.Clone(set)}
}

func (m *mapLookuper) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	addrs := m.set[host]
	if len(addrs) == 0 {
		return nil, errors.Wrapf(ErrResolutionFailed, "host %q", host)
	}
	return addrs, nil
}

func (m *mapLookuper) Set(host string, addrs []netip.Addr) {
	if len(addrs) == 0 {
		return
	}
	m.set[host] = addrs
}

func (m *mapLookuper) Del(host string) { delete(m.set, host) }

type netLookuper struct {
	resolver *net.Resolver
}

var _ Lookuper = (*netLookuper)(nil)

// NewNetLookuper creates a [Lookuper] backed by the system resolver.
// A nil resolver uses [net.DefaultResolver].
func NewNetLookuper(resolver *net.Resolver) *netLookuper {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &netLookuper{resolver: resolver}
}

func (n *netLookuper) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	addrs, err := n.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		return nil, errors.Wrapf(ErrResolutionFailed, "host %q: %v", host, err)
	}
	return addrs, nil
}
