package textutil

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote reports a quote left open in SplitFields input.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// SplitFields splits a command-line fragment into arguments. Whitespace
// separates fields, single quotes keep their content literally, double quotes
// allow backslash escapes, and a bare backslash escapes the next rune.
func SplitFields(input string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	flush := func() {
		if inField {
			fields = append(fields, current.String())
			current.Reset()
			inField = false
		}
	}
	for _, r := range input {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inField = true
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	flush()
	return fields, nil
}
