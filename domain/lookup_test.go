package domain

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapLookuper(t *testing.T) {
	loopback := netip.MustParseAddr("127.0.0.1")

	l := NewMapLookuper(map[string][]netip.Addr{
		"localhost": {loopback},
	})

	ctx := context.Background()

	addrs, err := l.LookupIP(ctx, "localhost")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{loopback}, addrs)

	_, err = l.LookupIP(ctx, "nowhere.invalid")
	require.ErrorIs(t, err, ErrResolutionFailed)
	assert.Contains(t, err.Error(), "nowhere.invalid")

	v6 := netip.MustParseAddr("::1")
	l.Set("six", []netip.Addr{v6})
	addrs, err = l.LookupIP(ctx, "six")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{v6}, addrs)

	l.Del("localhost")
	_, err = l.LookupIP(ctx, "localhost")
	assert.ErrorIs(t, err, ErrResolutionFailed)

	// Setting no addresses is a no-op.
	l.Set("empty", nil)
	_, err = l.LookupIP(ctx, "empty")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestMapLookuperEmptyEntry(t *testing.T) {
	// A table seeded with an empty entry resolves like a miss, never
	// as a successful zero-address answer.
	l := NewMapLookuper(map[string][]netip.Addr{
		"empty.example": {},
	})

	_, err := l.LookupIP(context.Background(), "empty.example")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}
