package http

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

type EncodeOptions struct {
	// UseSoleLF uses a single LF character as the line terminator.
	// A conformant client keeps this off; the knob exists for
	// talking to lenient peers.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF: false,
}

// RequestEncoder serializes requests onto a writer.
type RequestEncoder struct {
	bw   *bufio.Writer
	opts EncodeOptions
}

func NewRequestEncoder(w io.Writer, opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{bw: bufio.NewWriter(w), opts: opts}
}

func (re *RequestEncoder) Encode(request Request) error {
	if err := re.encodeRequestLine(request); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	for _, field := range request.Headers {
		if err := re.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// An empty line terminates the header block.
	if err := re.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing header terminator")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request line & header")
	}

	if request.Body != nil {
		if _, err := re.bw.ReadFrom(request.Body); err != nil {
			return errors.Wrap(err, "writing request body")
		}

		if err := re.bw.Flush(); err != nil {
			return errors.Wrap(err, "flushing request body")
		}
	}

	return nil
}

func (re *RequestEncoder) encodeRequestLine(request Request) error {
	if !isValidToken(request.Method) {
		return errors.Errorf("method %q is not a valid token", request.Method)
	}
	if len(request.Target) == 0 {
		return errors.New("request target should not be empty")
	}

	buf := bytes.NewBuffer(nil)
	buf.WriteString(request.Method)
	buf.WriteByte(SP)
	buf.WriteString(request.Target)
	buf.WriteByte(SP)
	buf.Write(request.Version.Text())

	return re.writeLine(buf.Bytes())
}

func (re *RequestEncoder) writeLine(line []byte) error {
	if _, err := re.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	term := CRLF
	if re.opts.UseSoleLF {
		term = term[1:]
	}

	if _, err := re.bw.Write(term); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}
