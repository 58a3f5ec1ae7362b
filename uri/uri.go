// Package uri models absolute "http" URLs.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc3986
package uri

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMalformedURL      = errors.New("malformed URL")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// DefaultPort is used when the authority carries no explicit port.
const DefaultPort uint16 = 80

// URL is the decomposed form of an absolute http URL.
// It is a value type; construct it via [Parse].
type URL struct {
	Scheme   string // lower-cased, always "http"
	Host     string
	Port     uint16
	Path     string // never empty, defaults to "/"
	Query    string
	Fragment string
}

// Parse decomposes raw into a [URL].
// It fails with [ErrMalformedURL] when raw lacks a recognizable
// scheme or host, and with [ErrUnsupportedScheme] when the scheme
// is anything but "http".
func Parse(raw string) (URL, error) {
	if containsCTL(raw) {
		return URL{}, errors.Wrap(ErrMalformedURL, "URL contains CTL bytes")
	}

	scheme, rest, err := cutScheme(raw)
	if err != nil {
		return URL{}, err
	}

	if scheme != "http" {
		return URL{}, errors.Wrapf(ErrUnsupportedScheme, "scheme %q", scheme)
	}

	if !strings.HasPrefix(rest, "//") {
		return URL{}, errors.Wrap(ErrMalformedURL, "authority not found")
	}

	authority := rest[2:]
	rest = ""
	if i := strings.IndexAny(authority, "/?#"); i >= 0 {
		authority, rest = authority[:i], authority[i:]
	}

	host, port, err := splitHostPort(authority)
	if err != nil {
		return URL{}, err
	}

	path, query, frag := splitPathQueryFrag(rest)
	if path == "" {
		path = "/"
	}

	return URL{
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		Query:    query,
		Fragment: frag,
	}, nil
}

// RequestTarget returns the origin-form request target (path plus
// optional query). The fragment is never part of the wire request.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.1
func (u URL) RequestTarget() string {
	if u.Query == "" {
		return u.Path
	}
	return u.Path + "?" + u.Query
}

// HostPort returns the authority in "host:port" form,
// bracketing IPv6 literals.
func (u URL) HostPort() string {
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.FormatUint(uint64(u.Port), 10)
}

// String re-serializes the URL. The port is omitted when it equals
// [DefaultPort], so the result denotes an equivalent origin.
func (u URL) String() string {
	b := new(strings.Builder)
	b.WriteString(u.Scheme)
	b.WriteString("://")

	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	b.WriteString(host)

	if u.Port != DefaultPort {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(u.Port), 10))
	}

	b.WriteString(u.Path)

	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}

	return b.String()
}

// cutScheme cuts the scheme off raw. The scheme is lower-cased on return.
func cutScheme(raw string) (scheme, rest string, err error) {
	before, after, found := strings.Cut(raw, ":")
	if !found {
		return "", "", errors.Wrap(ErrMalformedURL, "scheme separator not found")
	}

	if !isValidScheme(before) {
		return "", "", errors.Wrapf(ErrMalformedURL, "scheme %q is not valid", before)
	}

	return strings.ToLower(before), after, nil
}

func splitHostPort(authority string) (host string, port uint16, err error) {
	if strings.Contains(authority, "@") {
		return "", 0, errors.Wrap(ErrMalformedURL, "userinfo is not supported")
	}

	rawPort := ""
	if strings.HasPrefix(authority, "[") {
		// IPv6 literal.
		end := strings.Index(authority, "]")
		if end < 0 {
			return "", 0, errors.Wrap(ErrMalformedURL, "unterminated IPv6 literal")
		}
		host = authority[1:end]
		if rest := authority[end+1:]; rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return "", 0, errors.Wrap(ErrMalformedURL, "garbage after IPv6 literal")
			}
			rawPort = rest[1:]
		}
	} else if i := strings.LastIndex(authority, ":"); i >= 0 {
		host, rawPort = authority[:i], authority[i+1:]
	} else {
		host = authority
	}

	if host == "" {
		return "", 0, errors.Wrap(ErrMalformedURL, "host is empty")
	}

	port = DefaultPort
	if rawPort != "" {
		p, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil {
			return "", 0, errors.Wrapf(ErrMalformedURL, "port %q is not valid", rawPort)
		}
		port = uint16(p)
	}

	return host, port, nil
}

func splitPathQueryFrag(rest string) (path, query, frag string) {
	// Fragment comes last, so cut it off first.
	if i := strings.Index(rest, "#"); i >= 0 {
		rest, frag = rest[:i], rest[i+1:]
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
	}
	return rest, query, frag
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.1
func isValidScheme(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i, c := range s {
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		case i > 0 && ('0' <= c && c <= '9'):
		case i > 0 && (c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func containsCTL(s string) bool {
	for _, c := range s {
		if c < ' ' || c == 0x7f {
			return true
		}
	}
	return false
}
