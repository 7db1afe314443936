package pymod

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrNotLiteral is returned for expressions that need evaluation (calls,
// names, f-strings with placeholders)
var ErrNotLiteral = errors.New("not a literal expression")

// ParseLiteral parses a complete python literal expression. Lists, tuples and
// sets decode to []any, dicts to map[string]any, integers to int64.
func ParseLiteral(src string) (any, error) {
	p := &literalParser{src: src}
	v, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after literal", p.rest(10))
	}
	return v, nil
}

// parseLiteralPrefix parses one literal at the start of src and returns the
// number of bytes consumed
func parseLiteralPrefix(src string) (any, int, error) {
	p := &literalParser{src: src}
	v, err := p.expr()
	return v, p.pos, err
}

type literalParser struct {
	src   string
	pos   int
	depth int // bracket nesting; newlines are insignificant inside brackets
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) rest(n int) string {
	r := p.src[p.pos:]
	if len(r) > n {
		r = r[:n]
	}
	return r
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\n' && p.depth > 0:
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		case c == '#' && p.depth > 0:
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *literalParser) expr() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	c := p.peek()
	switch {
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.sequence('(', ')')
	case c == '{':
		return p.mapping()
	case c == '"' || c == '\'':
		return p.strings()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		word := p.src[start:p.pos]
		if isStringPrefix(word) && (p.peek() == '"' || p.peek() == '\'') {
			p.pos = start
			return p.strings()
		}
		switch word {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		}
		p.pos = start
		return nil, fmt.Errorf("%w: %s", ErrNotLiteral, p.rest(30))
	}
	return nil, fmt.Errorf("%w: %s", ErrNotLiteral, p.rest(30))
}

func (p *literalParser) sequence(open, close byte) (any, error) {
	p.pos++ // open
	p.depth++
	defer func() { p.depth-- }()

	items := []any{}
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return items, nil
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			items = append(items, v)
		case close:
			p.pos++
			if open == '(' && len(items) == 0 {
				// parenthesized expression, not a tuple
				return v, nil
			}
			return append(items, v), nil
		default:
			return nil, p.errorf("expected ',' or %q, got %q", close, p.rest(10))
		}
	}
}

func (p *literalParser) mapping() (any, error) {
	p.pos++ // {
	p.depth++
	defer func() { p.depth-- }()

	dict := map[string]any{}
	var set []any
	isSet := false
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			if isSet {
				return set, nil
			}
			return dict, nil
		}
		key, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			if len(dict) > 0 {
				return nil, p.errorf("mixed set and dict literal")
			}
			isSet = true
			set = append(set, key)
		} else {
			if isSet {
				return nil, p.errorf("mixed set and dict literal")
			}
			p.pos++
			val, err := p.expr()
			if err != nil {
				return nil, err
			}
			k, ok := key.(string)
			if !ok {
				k = fmt.Sprint(key)
			}
			dict[k] = val
		}
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}', got %q", p.rest(10))
		}
	}
}

// strings parses one or more adjacent string literals
func (p *literalParser) strings() (any, error) {
	var sb strings.Builder
	count := 0
	for {
		save := p.pos
		if count > 0 {
			p.skipSpace()
		}
		s, ok, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		if !ok {
			p.pos = save
			break
		}
		sb.WriteString(s)
		count++
	}
	return sb.String(), nil
}

func (p *literalParser) stringLiteral() (string, bool, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
	}
	prefix := strings.ToLower(p.src[start:p.pos])
	if !isStringPrefix(prefix) || (p.peek() != '"' && p.peek() != '\'') {
		p.pos = start
		return "", false, nil
	}
	raw := strings.Contains(prefix, "r")
	format := strings.Contains(prefix, "f")

	quote := p.src[p.pos]
	delim := string(quote)
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	p.pos += len(delim)

	var sb strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", false, p.errorf("unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], delim) {
			p.pos += len(delim)
			break
		}
		c := p.src[p.pos]
		if c == '\n' && len(delim) == 1 {
			return "", false, p.errorf("newline in string")
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			if raw {
				sb.WriteByte(c)
				sb.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if err := p.escape(&sb); err != nil {
				return "", false, err
			}
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}

	s := sb.String()
	if format && strings.ContainsAny(strings.ReplaceAll(strings.ReplaceAll(s, "{{", ""), "}}", ""), "{}") {
		return "", false, fmt.Errorf("%w: f-string with placeholders", ErrNotLiteral)
	}
	if format {
		s = strings.ReplaceAll(strings.ReplaceAll(s, "{{", "{"), "}}", "}")
	}
	return s, true, nil
}

func (p *literalParser) escape(sb *strings.Builder) error {
	c := p.src[p.pos+1]
	p.pos += 2
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteByte(c)
	case '\n':
		// line continuation inside a string
	case 'x', 'u', 'U':
		n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
		if p.pos+n > len(p.src) {
			return p.errorf("truncated escape")
		}
		code, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
		if err != nil {
			return p.errorf("invalid escape: %v", err)
		}
		p.pos += n
		if c == 'x' {
			sb.WriteByte(byte(code))
		} else {
			var buf [utf8.UTFMax]byte
			sb.Write(buf[:utf8.EncodeRune(buf[:], rune(code))])
		}
	default:
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
		p.skipSpace()
	}
	digitsStart := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '_' || c == '.' || c == 'x' || c == 'X' ||
			c == 'e' || c == 'E' || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
			((c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	if digitsStart == p.pos {
		return nil, p.errorf("invalid number")
	}
	sign := strings.TrimSpace(p.src[start:digitsStart])
	text := sign + strings.ReplaceAll(p.src[digitsStart:p.pos], "_", "")
	if n, err := strconv.ParseInt(text, 0, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", text)
	}
	return f, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "", "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}
