// Package fixup rewrites quoted NULL markers in CSV payloads.
//
// Upstream seed files spell a NULL as the quoted field "\N". PostgreSQL COPY
// in CSV mode reads a quoted value as a literal string, so the marker has to
// be unquoted to \N before it reaches the destination. Only a field that is
// exactly the quoted token is rewritten; "\N" appearing inside other text is
// left alone.
package fixup

import (
	"bufio"
	"io"
	"strings"
)

const (
	// NullToken is the quoted NULL marker found in source files.
	NullToken = `"\N"`
	// Null is the marker COPY recognises with NULL '\N'.
	Null = `\N`
)

// FixLine applies the NULL rewrite to a single line. The line is assumed to
// start a new record. FixLine is idempotent.
func FixLine(line string) string {
	var f filter
	return f.apply(line)
}

// NewReader returns a reader that applies the NULL rewrite line by line to r.
// Line endings are preserved, lines may be of any length, and quoted fields
// spanning several lines are tracked so their contents are never rewritten.
func NewReader(r io.Reader) io.Reader {
	return &reader{src: bufio.NewReaderSize(r, 64*1024)}
}

type reader struct {
	src     *bufio.Reader
	f       filter
	pending string
	err     error
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		line, err := r.src.ReadString('\n')
		r.err = err
		if line != "" {
			r.pending = r.f.apply(line)
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// filter carries CSV quote state across lines.
type filter struct {
	inQuotes bool
}

func (f *filter) apply(line string) string {
	if !strings.Contains(line, `"`) {
		return line
	}

	var b strings.Builder
	last := 0
	fieldStart := !f.inQuotes
	for i := 0; i < len(line); {
		c := line[i]
		if f.inQuotes {
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i += 2
					continue
				}
				f.inQuotes = false
			}
			i++
			continue
		}

		if fieldStart && strings.HasPrefix(line[i:], NullToken) && fieldEnds(line, i+len(NullToken)) {
			if b.Len() == 0 {
				b.Grow(len(line))
			}
			b.WriteString(line[last:i])
			b.WriteString(Null)
			i += len(NullToken)
			last = i
			fieldStart = false
			continue
		}

		switch c {
		case '"':
			f.inQuotes = true
			fieldStart = false
		case ',', '\n':
			fieldStart = true
		default:
			fieldStart = false
		}
		i++
	}

	if last == 0 {
		return line
	}
	b.WriteString(line[last:])
	return b.String()
}

func fieldEnds(line string, i int) bool {
	if i >= len(line) {
		return true
	}
	switch line[i] {
	case ',', '\n', '\r':
		return true
	}
	return false
}
