package http

import (
	"bytes"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Version is the protocol version as [Major, Minor].
type Version [2]uint

var Version11 = Version{1, 1}

// ParseVersion parses http version text (e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	first, second, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot separator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 64)
	minor, err2 := strconv.ParseUint(string(second), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteString("HTTP/")
	buf.WriteString(strconv.FormatUint(uint64(ver[0]), 10))
	buf.WriteByte('.')
	buf.WriteString(strconv.FormatUint(uint64(ver[1]), 10))
	return buf.Bytes()
}

func (ver Version) String() string { return string(ver.Text()) }

// Field is a single header line, name and value.
type Field struct{ Name, Value []byte }

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon separator not found on header: %q", string(fieldLine))
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	for _, c := range OWS {
		if bytes.HasSuffix(name, []byte{c}) {
			return Field{}, errors.New("field name has trailing whitespace")
		}
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(OWS))

	return Field{Name: name, Value: value}, nil
}

func (f *Field) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(f.Name)
	buf.WriteString(": ")
	buf.Write(f.Value)
	return buf.Bytes()
}

// Headers maps lower-cased field names to values.
// When a name repeats, the last occurrence wins.
type Headers struct{ underlying map[string]string }

func NewHeaders(initial map[string]string) Headers {
	clone := make(map[string]string, len(initial))
	for k, v := range initial {
		clone[toLowerFieldName(k)] = v
	}
	return Headers{underlying: clone}
}

// HeadersFrom collapses raw fields into [Headers].
func HeadersFrom(fields []Field) Headers {
	clone := make(map[string]string, len(fields))
	for _, field := range fields {
		clone[toLowerFieldName(string(field.Name))] = string(field.Value)
	}
	return Headers{underlying: clone}
}

func (h *Headers) Get(key string) (value string, ok bool) {
	value, ok = h.underlying[toLowerFieldName(key)]
	return
}

func (h *Headers) Set(key, value string) {
	if h.underlying == nil {
		h.underlying = make(map[string]string)
	}
	h.underlying[toLowerFieldName(key)] = value
}

func (h *Headers) Del(key string) { delete(h.underlying, toLowerFieldName(key)) }

func (h *Headers) Len() int { return len(h.underlying) }

// Fields returns [name, value] pairs sorted by name.
func (h *Headers) Fields() (fields [][2]string) {
	fields = make([][2]string, 0, len(h.underlying))
	for k, v := range h.underlying {
		fields = append(fields, [2]string{k, v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i][0] < fields[j][0] })
	return fields
}

// Request is a wire-level request message.
type Request struct {
	Method  string
	Target  string
	Version Version
	Headers []Field

	// Body is optional; a GET carries none.
	Body io.Reader
}

// Response is the wire-level view of a response's status line and
// header block.
type Response struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string

	Headers Headers

	// ContentLength is the declared body size. The parser rejects
	// responses that do not declare one.
	ContentLength uint
}
