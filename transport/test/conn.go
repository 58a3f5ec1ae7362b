// Package test holds a reusable conformance suite for
// [transport.Conn] implementations.
package test

import (
	"bytes"
	"sync"
	"time"

	"httpfetch/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnTestSuite exercises the [transport.Conn] contract.
// Embedders must set C1 and C2 to the two ends of a connection
// in their SetupTest, after calling this suite's SetupTest.
type ConnTestSuite struct {
	suite.Suite
	C1, C2 transport.Conn
	Clock  clock.Clock

	done  chan struct{}
	timer *time.Timer
}

func (s *ConnTestSuite) SetupTest() {
	s.done = make(chan struct{})
	s.Clock = clock.New() // Use real-time timer for now.

	s.timer = time.AfterFunc(time.Second, func() {
		select {
		case <-s.done:
		default:
			s.FailNow("timeout exceeded")
		}
	})
}

func (s *ConnTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.NoError(s.C1.Close())
	s.NoError(s.C2.Close())
	close(s.done)
	s.timer.Stop()
}

func (s *ConnTestSuite) TestReadWrite() {
	data := []byte("Hello, World!")

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := s.C1.Write(data)
		s.Require().NoError(err)
		s.Equal(len(data), n)
	}()
	go func() {
		defer wg.Done()
		buf := make([]byte, 10)

		n, err := s.C2.Read(buf)
		s.Require().NoError(err)
		s.Equal(len(buf), n)
		s.Equal(data[:n], buf)

		n, err = s.C2.Read(buf)
		s.Require().NoError(err)
		s.Equal(len(data)-len(buf), n)
		s.Equal(data[len(buf):], buf[:n])
	}()
}

func (s *ConnTestSuite) TestWriteRace() {
	data := []byte("ABCD")
	N := 10

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		result := make([]byte, 0)

		b := make([]byte, 10)
		for {
			n, err := s.C2.Read(b)
			if err != nil {
				s.Require().ErrorIs(err, transport.ErrConnClosed)
				s.Equal(bytes.Repeat(data, N), result)
				return
			}
			result = append(result, b[:n]...)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var wwg sync.WaitGroup
		for range N {
			wwg.Add(1)
			go func() {
				defer wwg.Done()
				n, err := s.C1.Write(data)
				s.Require().NoError(err)
				s.Equal(len(data), n)
			}()
		}
		wwg.Wait()
		s.Require().NoError(s.C1.Close())
	}()
}

func (s *ConnTestSuite) TestClose() {
	s.Require().NoError(s.C1.Close())

	// Double close is a no-op.
	s.Require().NoError(s.C1.Close())

	buf := make([]byte, 10)

	_, err := s.C1.Read(buf)
	s.Require().ErrorIs(err, transport.ErrConnClosed)
	_, err = s.C1.Write(buf)
	s.Require().ErrorIs(err, transport.ErrConnClosed)

	// The counterpart observes the close too.
	_, err = s.C2.Read(buf)
	s.Require().ErrorIs(err, transport.ErrConnClosed)
	_, err = s.C2.Write(buf)
	s.Require().ErrorIs(err, transport.ErrConnClosed)
}

func (s *ConnTestSuite) TestReadDeadline() {
	s.C1.SetReadDeadline(s.Clock.Now().Add(10 * time.Millisecond))

	_, err := s.C1.Read(make([]byte, 1))
	s.Require().ErrorIs(err, transport.ErrDeadlineExceeded)

	// Clearing the deadline makes the conn usable again.
	s.C1.SetReadDeadline(time.Time{})

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.C2.Write([]byte("hi"))
		s.Require().NoError(err)
	}()

	buf := make([]byte, 2)
	n, err := s.C1.Read(buf)
	s.Require().NoError(err)
	s.Equal("hi", string(buf[:n]))
}
