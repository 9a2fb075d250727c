package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// dateTokens maps template date-format tokens to Go layout fragments.
// Longer tokens come first so "YYYY" wins over "YY".
var dateTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"A", "PM"},
}

// layoutCheckTime is formatted through each built layout to confirm that
// literal text survives Go's layout parser unchanged.
var layoutCheckTime = time.Date(2009, time.November, 17, 20, 34, 58, 0, time.UTC)

// Layout translates a template date format such as "DD/MM/YYYY" into a Go
// time layout. Separators pass through unchanged. Letters and digits must be
// quoted to be literal, as in "YYYY-MM-DD'T'HH:mm:ss"; a doubled quote is a
// literal apostrophe. Literal text that Go would read as a layout element
// ("Jan", "PM", "_2", ...) is rejected because it cannot be expressed.
func Layout(format string) (string, error) {
	if strings.TrimSpace(format) == "" {
		return "", fmt.Errorf("date format is empty")
	}

	var b, want strings.Builder
	rest := format
	hasDate := false

outer:
	for len(rest) > 0 {
		if rest[0] == '\'' {
			lit, n, err := quotedLiteral(rest)
			if err != nil {
				return "", fmt.Errorf("%w in date format %q", err, format)
			}
			b.WriteString(lit)
			want.WriteString(lit)
			rest = rest[n:]
			continue
		}

		for _, t := range dateTokens {
			if strings.HasPrefix(rest, t.token) {
				b.WriteString(t.layout)
				want.WriteString(layoutCheckTime.Format(t.layout))
				rest = rest[len(t.token):]
				hasDate = true
				continue outer
			}
		}

		c := rest[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return "", fmt.Errorf("unsupported token %q in date format %q", string(c), format)
		}
		b.WriteByte(c)
		want.WriteByte(c)
		rest = rest[1:]
	}

	if !hasDate {
		return "", fmt.Errorf("date format %q has no date tokens", format)
	}
	layout := b.String()
	if layoutCheckTime.Format(layout) != want.String() {
		return "", fmt.Errorf("literal text in date format %q collides with a Go layout element", format)
	}
	return layout, nil
}

// quotedLiteral reads a quoted literal at the start of s and returns its
// text and the number of bytes consumed. "''" yields a single apostrophe.
func quotedLiteral(s string) (string, int, error) {
	if strings.HasPrefix(s, "''") {
		return "'", 2, nil
	}

	var lit strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			lit.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			lit.WriteByte('\'')
			i++
			continue
		}
		return lit.String(), i + 1, nil
	}
	return "", 0, errors.New("unterminated quoted literal")
}
