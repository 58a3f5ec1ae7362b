package http

const (
	CR byte = '\r'
	LF byte = '\n'
	SP byte = ' '
)

var (
	CRLF = []byte{CR, LF}
	OWS  = []byte{SP, '\t'}
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func isValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		// ALPHA
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			continue
		}
		// DIGIT
		if '0' <= c && c <= '9' {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}

func toLowerFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + capitalDiff
		}
	}
	return string(b)
}
