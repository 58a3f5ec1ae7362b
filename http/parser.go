package http

import (
	"bytes"
	"io"
	"strconv"

	iolib "httpfetch/lib/io"

	"github.com/pkg/errors"
)

// State is the response parser's position in the message exchange.
type State uint8

const (
	StateReadingHeaders State = iota + 1
	StateHeadersReady
	StateReadingBody
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReadingHeaders:
		return "reading-headers"
	case StateHeadersReady:
		return "headers-ready"
	case StateReadingBody:
		return "reading-body"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type DecodeOptions struct {
	// AllowSoleLF recognizes a single LF as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// MaxStatusLineLength limits the status line length. Zero means no limit.
	MaxStatusLineLength uint

	// MaxFieldLineLength limits each field line's length. Zero means no limit.
	MaxFieldLineLength uint

	// MaxHeaderBytes caps the whole header block. Zero means no limit.
	MaxHeaderBytes uint
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:         false,
	MaxStatusLineLength: 0,
	MaxFieldLineLength:  0,
	MaxHeaderBytes:      0,
}

var (
	errLineTooLong = errors.New("line length exceeds limit")

	ErrMissingCRBeforeLF   = errors.New("missing CR before LF")
	ErrStatusLineTooLong   = errors.New("status line length exceeds limit")
	ErrFieldLineTooLong    = errors.New("field line length exceeds limit")
	ErrHeaderTooLarge      = errors.New("header block exceeds size limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")
	ErrMalformedFieldLine  = errors.New("field line is malformed")

	ErrNoContentLength      = errors.New("response declares no content-length")
	ErrInvalidContentLength = errors.New("content-length is not a valid non-negative integer")

	// ErrConnClosedPrematurely reports a stream that ended before
	// the declared body length arrived.
	ErrConnClosedPrematurely = errors.New("connection closed before full body arrived")
)

// ResponseParser incrementally consumes one response from a byte
// stream. It moves strictly forward through [State]s: headers are
// recognized first, then the body is read on demand, and any failure
// is terminal. The parser owns its buffers; it must not be shared
// across connections.
//
// No bytes are requested from the stream between ReadHeaders and
// ReadBody, so an unwanted body is never pulled off the wire.
type ResponseParser struct {
	r    *iolib.UntilReader
	opts DecodeOptions

	state       State
	headerBytes uint

	response Response
}

func NewResponseParser(r io.Reader, opts DecodeOptions) *ResponseParser {
	return &ResponseParser{
		r:     iolib.NewUntilReader(r),
		opts:  opts,
		state: StateReadingHeaders,
	}
}

func (p *ResponseParser) State() State { return p.state }

func (p *ResponseParser) fail(err error) error {
	p.state = StateFailed
	return err
}

// ReadHeaders consumes the stream through the header terminator and
// returns the parsed status line and headers. It may be called once;
// the parser then holds at [StateHeadersReady] without issuing
// further reads until [ResponseParser.ReadBody].
func (p *ResponseParser) ReadHeaders() (*Response, error) {
	if p.state != StateReadingHeaders {
		return nil, errors.Errorf("parser is in state %q", p.state)
	}

	if err := p.decodeStatusLine(&p.response); err != nil {
		return nil, p.fail(errors.Wrap(err, "parsing status line"))
	}

	fields, err := p.decodeHeaders()
	if err != nil {
		return nil, p.fail(errors.Wrap(err, "parsing headers"))
	}

	p.response.Headers = HeadersFrom(fields)

	length, err := extractContentLength(fields)
	if err != nil {
		return nil, p.fail(err)
	}
	p.response.ContentLength = length

	p.state = StateHeadersReady

	return &p.response, nil
}

// ReadBody consumes exactly the declared content-length and returns
// the body. Completion is determined by byte count alone, never by
// the stream's end-of-file. A declared length of zero returns
// immediately without touching the stream.
func (p *ResponseParser) ReadBody() ([]byte, error) {
	if p.state != StateHeadersReady {
		return nil, errors.Errorf("parser is in state %q", p.state)
	}
	p.state = StateReadingBody

	n := p.response.ContentLength
	if n == 0 {
		p.state = StateDone
		return []byte{}, nil
	}

	body, err := p.r.ReadN(n)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = errors.Wrapf(ErrConnClosedPrematurely,
				"got %d of %d declared bytes", len(body), n)
		}
		return nil, p.fail(err)
	}

	p.state = StateDone

	return body, nil
}

func (p *ResponseParser) readLine(limit uint) ([]byte, error) {
	b, err := p.r.ReadUntil([]byte{LF})
	if err != nil {
		return nil, err
	}

	p.headerBytes += uint(len(b))
	if m := p.opts.MaxHeaderBytes; m > 0 && p.headerBytes > m {
		return nil, ErrHeaderTooLarge
	}

	if limit > 0 && uint(len(b)) > limit {
		return nil, errLineTooLong
	}

	b = b[:len(b)-1] // Remove LF.

	if !p.opts.AllowSoleLF {
		if len(b) == 0 || b[len(b)-1] != CR {
			return nil, ErrMissingCRBeforeLF
		}
		b = b[:len(b)-1] // Remove CR.
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	b = bytes.ReplaceAll(b, []byte{CR}, []byte{SP})

	return b, nil
}

func (p *ResponseParser) decodeStatusLine(response *Response) error {
	var line []byte
	for {
		b, err := p.readLine(p.opts.MaxStatusLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return ErrStatusLineTooLong
			}
			return errors.Wrap(err, "reading line")
		}

		// An empty line can be received before the message.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
		if len(b) > 0 {
			line = b
			break
		}
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return ErrMalformedStatusLine
	}

	response.Version = parsed.Version
	response.StatusCode = parsed.StatusCode
	response.ReasonPhrase = parsed.ReasonPhrase

	return nil
}

func (p *ResponseParser) decodeHeaders() ([]Field, error) {
	fields := make([]Field, 0)
	for {
		fieldLine, err := p.readLine(p.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return nil, ErrFieldLineTooLong
			}
			return nil, errors.Wrap(err, "reading line")
		}

		if len(fieldLine) == 0 {
			// An empty line. No more headers.
			break
		}

		field, err := ParseField(fieldLine)
		if err != nil {
			return nil, ErrMalformedFieldLine
		}

		fields = append(fields, field)
	}

	return fields, nil
}

func parseStatusLine(line []byte) (Response, error) {
	parts := bytes.SplitN(line, []byte{SP}, 3)
	if len(parts) < 2 {
		return Response{}, errors.New("status line is malformed")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return Response{}, errors.Wrap(err, "parsing version")
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 64)
	if err != nil || len(statusCodeStr) != 3 {
		return Response{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}

	// reason-phrase is optional.
	reasonPhrase := ""
	if len(parts) == 3 {
		reasonPhrase = string(parts[2])
	}

	return Response{
		Version:      ver,
		StatusCode:   uint(statusCode),
		ReasonPhrase: reasonPhrase,
	}, nil
}

// extractContentLength finds the body length in the raw fields.
// The first content-length occurrence is authoritative.
func extractContentLength(fields []Field) (uint, error) {
	for _, field := range fields {
		if toLowerFieldName(string(field.Name)) != "content-length" {
			continue
		}

		v := string(field.Value)
		len64, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidContentLength, "value %q", v)
		}
		return uint(len64), nil
	}

	return 0, ErrNoContentLength
}
