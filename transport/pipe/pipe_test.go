package pipe

import (
	"context"
	"net/netip"
	"testing"

	"httpfetch/transport"
	"httpfetch/transport/test"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PipeTestSuite struct {
	test.ConnTestSuite
}

func TestPipeTestSuite(t *testing.T) {
	suite.Run(t, new(PipeTestSuite))
}

func (s *PipeTestSuite) SetupTest() {
	s.ConnTestSuite.SetupTest()
	a := transport.NewAddr(netip.MustParseAddr("127.0.0.1"), 1)
	b := transport.NewAddr(netip.MustParseAddr("127.0.0.1"), 2)
	s.C1, s.C2 = Pair(a, b, s.Clock)
}

func TestTransportDial(t *testing.T) {
	clk := clock.New()
	tr := NewTransport(clk)
	addr := transport.NewAddr(netip.MustParseAddr("127.0.0.1"), 80)

	tr.Serve(addr, func(conn transport.Conn) {
		defer conn.Close()

		buf := make([]byte, 4)
		n, err := conn.Read(buf)
		require.NoError(t, err)

		_, err = conn.Write(buf[:n])
		require.NoError(t, err)
	})

	conn, err := tr.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, addr, conn.RemoteAddr())

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	tr.Wait()
}

func TestTransportDialUnknownAddr(t *testing.T) {
	tr := NewTransport(clock.New())
	addr := transport.NewAddr(netip.MustParseAddr("10.0.0.1"), 9999)

	_, err := tr.Dial(context.Background(), addr)
	assert.ErrorIs(t, err, transport.ErrConnectionFailed)
}
