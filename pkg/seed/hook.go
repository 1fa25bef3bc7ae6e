package seed

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

// LoadSeedFunc is the macro whose first two arguments declare a seed's
// storage path and filename pattern.
const LoadSeedFunc = "load_seed"

// Arg is one argument of a call expression.
type Arg struct {
	// Value is the unquoted string for quoted args, the raw text otherwise
	Value string
	// Quoted reports whether the argument was a single-quoted string
	Quoted bool
}

// Call is a function call found in hook text.
type Call struct {
	Name string
	Args []Arg
}

// MalformedCallError reports a call whose argument list could not be parsed.
type MalformedCallError struct {
	Name string
	Err  error
}

func (e *MalformedCallError) Error() string {
	return fmt.Sprintf("%s(...): %v", e.Name, e.Err)
}

func (e *MalformedCallError) Unwrap() error { return e.Err }

// ParseHook scans hook text for call expressions.
//
// Grammar:
//
//	call   = ident ws* '(' ws* [ arg ( ws* ',' ws* arg )* ] ws* ')'
//	arg    = quoted | bare
//	quoted = "'" { char | '\' char } "'"
//	bare   = any text up to the next top-level ',' or ')', balancing
//	         parentheses and skipping quoted strings
//
// Text outside calls (Jinja braces, SQL, whitespace) is ignored. Strings in
// either quote style are skipped so identifiers inside them are never
// mistaken for calls. Calls nested inside arguments are not reported.
//
// An unterminated string outside any call ends the scan; the calls found
// before it are returned without error. A call whose arguments cannot be
// parsed also ends the scan and is reported as a *MalformedCallError.
func ParseHook(text string) ([]Call, error) {
	p := &hookParser{src: text}
	var calls []Call
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\'' || c == '"':
			if _, err := p.quoted(c); err != nil {
				return calls, nil
			}
		case isIdentStart(rune(c)):
			name := p.ident()
			save := p.pos
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == '(' {
				p.pos++
				args, err := p.args()
				if err != nil {
					return calls, &MalformedCallError{Name: name, Err: err}
				}
				calls = append(calls, Call{Name: name, Args: args})
				continue
			}
			p.pos = save
		default:
			p.pos++
		}
	}
	return calls, nil
}

// ExtractLoadSeed returns the first two arguments of the single load_seed
// call in text. Zero calls, more than one call, fewer than two arguments or
// unquoted leading arguments are all reported as errors, as is a malformed
// load_seed call. Malformed text elsewhere in the hook is ignored.
func ExtractLoadSeed(text string) (path, pattern string, err error) {
	calls, err := ParseHook(text)
	if err != nil {
		var mce *MalformedCallError
		if !errors.As(err, &mce) || isLoadSeed(mce.Name) {
			return "", "", err
		}
	}
	var matches []Call
	for _, c := range calls {
		if isLoadSeed(c.Name) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("no %s call found", LoadSeedFunc)
	case 1:
	default:
		return "", "", fmt.Errorf("%d %s calls found, expected one", len(matches), LoadSeedFunc)
	}
	args := matches[0].Args
	if len(args) < 2 {
		return "", "", fmt.Errorf("%s has %d arguments, expected at least 2", LoadSeedFunc, len(args))
	}
	if !args[0].Quoted || !args[1].Quoted {
		return "", "", fmt.Errorf("%s path and pattern must be single-quoted strings", LoadSeedFunc)
	}
	return args[0].Value, args[1].Value, nil
}

func isLoadSeed(name string) bool {
	return name == LoadSeedFunc || strings.HasSuffix(name, "."+LoadSeedFunc)
}

type hookParser struct {
	src string
	pos int
}

func (p *hookParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *hookParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// quoted consumes a string delimited by q starting at the current position.
func (p *hookParser) quoted(q byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", fmt.Errorf("unterminated string at offset %d", start)
			}
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		case q:
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}

// args parses the argument list after '(' up to and including ')'.
func (p *hookParser) args() ([]Arg, error) {
	var args []Arg
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return args, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated argument list")
		}
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated argument list")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
		}
	}
}

func (p *hookParser) arg() (Arg, error) {
	if p.src[p.pos] == '\'' {
		start := p.pos
		v, err := p.quoted('\'')
		if err != nil {
			return Arg{}, err
		}
		// a quoted string followed by more text is a bare expression, e.g. 'a' ~ var
		save := p.pos
		p.skipSpace()
		if p.pos < len(p.src) && (p.src[p.pos] == ',' || p.src[p.pos] == ')') {
			p.pos = save
			return Arg{Value: v, Quoted: true}, nil
		}
		p.pos = start
	}
	return p.bare()
}

func (p *hookParser) bare() (Arg, error) {
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\'' || c == '"':
			if _, err := p.quoted(c); err != nil {
				return Arg{}, err
			}
			continue
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case (c == ',' || c == ')') && depth == 0:
			raw := strings.TrimSpace(p.src[start:p.pos])
			if raw == "" {
				return Arg{}, fmt.Errorf("empty argument at offset %d", start)
			}
			return Arg{Value: raw}, nil
		}
		p.pos++
	}
	return Arg{}, fmt.Errorf("unterminated argument list")
}

func isIdentStart(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '.'
}
