package iolib

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var ErrZeroLenDelim = errors.New("delim has zero length")

// UntilReader wraps a reader with incremental delimiter scanning.
// Bytes read past a delimiter are kept and served by later calls,
// so arbitrary chunking of the underlying stream is transparent.
type UntilReader struct {
	r io.Reader

	buf bytes.Buffer
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if ur.buf.Len() > 0 {
		n, err = ur.buf.Read(p)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	return ur.r.Read(p)
}

// Buffered reports how many overread bytes are waiting to be served.
func (ur *UntilReader) Buffered() int { return ur.buf.Len() }

// ReadN reads exactly n bytes, draining any overread bytes first and
// never requesting more than n from the underlying reader. A stream
// that ends early returns the bytes that did arrive along with
// [io.ErrUnexpectedEOF].
func (ur *UntilReader) ReadN(n uint) ([]byte, error) {
	b := make([]byte, n)

	read := uint(0)
	for read < n {
		nn, err := ur.Read(b[read:])
		read += uint(nn)

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return b[:read:read], err
		}
	}

	return b, nil
}

// ReadUntil reads until delim and returns everything up to and
// including it. Only the unscanned suffix is examined on each new
// chunk; the accumulated prefix is never re-scanned.
//
// When the underlying reader fails before delim is seen, the bytes
// accumulated so far are returned along with the error.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	acc := make([]byte, 0, ur.buf.Len())
	acc = append(acc, ur.buf.Bytes()...)
	ur.buf.Reset()

	scanFrom := 0
	chunk := make([]byte, 1024)

	for {
		if i := bytes.Index(acc[scanFrom:], delim); i >= 0 {
			end := scanFrom + i + len(delim)
			ur.buf.Write(acc[end:])
			return acc[:end:end], nil
		}

		// A partial delim may end the accumulated bytes,
		// so keep the last len(delim)-1 bytes in scan range.
		scanFrom = len(acc) - (len(delim) - 1)
		if scanFrom < 0 {
			scanFrom = 0
		}

		n, err := ur.r.Read(chunk)
		acc = append(acc, chunk[:n]...)

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return acc, err
		}
	}
}
