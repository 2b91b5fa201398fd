package uon

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"uon-marshaller/internal/common"
	"uon-marshaller/node"
	"uon-marshaller/options"
	"uon-marshaller/serialize"
	"uon-marshaller/swap"
	"uon-marshaller/utils"
)

var (
	ErrBadEscape = errors.New("malformed percent escape")
	ErrSyntax    = errors.New("malformed value syntax")
)

// Parser reads UON documents back into plain Go values: documents become
// node.OrderedMap, objects nested OrderedMaps, arrays []any, and scalars
// bool, int64, float64, string or nil as sniffed from the text.
type Parser struct {
	Registry *swap.Registry
	Options  *options.Options
}

// Unmarshal parses a document with default options.
func Unmarshal(data []byte) (any, error) {
	return (&Parser{}).Unmarshal(data)
}

// Parse decodes a document into its top level entries in document order.
// Repeated keys collapse into one entry holding a []any, undoing the
// expanded rendering of sequences. A key without '=' carries null.
func (p *Parser) Parse(data []byte) (node.OrderedMap, error) {
	doc := node.OrderedMap{}

	if len(data) == 0 {
		return doc, nil
	}

	plus := p.opts().PlusSpaces

	for _, pair := range strings.Split(string(data), "&") {
		if pair == "" {
			continue
		}

		rawKey, rawVal, hasVal := strings.Cut(pair, "=")

		key, err := decodeToken(rawKey, plus)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", rawKey, err)
		}

		key = unescapeText(key)

		var v any
		if hasVal {
			v, err = p.parseValue(rawVal)
			if err != nil {
				return nil, fmt.Errorf("value for %q: %w", key, err)
			}
		}

		if prev, seen := doc.Get(key); seen {
			if list, ok := prev.([]any); ok {
				doc = doc.Set(key, append(list, v))
			} else {
				doc = doc.Set(key, []any{prev, v})
			}

			continue
		}

		doc = append(doc, node.MapEntry{Key: key, Value: v})
	}

	return doc, nil
}

// Unmarshal parses a document and undoes the synthetic root renderings: a
// lone _value entry yields the scalar itself and consecutive integer keys
// starting at 0 yield the root sequence back.
func (p *Parser) Unmarshal(data []byte) (any, error) {
	doc, err := p.Parse(data)
	if err != nil {
		return nil, err
	}

	if common.IsSingle(doc) && doc[0].Key == serialize.RootValueKey {
		return doc[0].Value, nil
	}

	if seq, ok := indexedSequence(doc); ok {
		return seq, nil
	}

	return doc, nil
}

// UnmarshalAs parses the document and runs the reverse substitution for the
// declared type, given as a sample value or a reflect.Type. Types without a
// substitution pass through unchanged; forward-only substitutions report
// swap.ErrUnsupportedReverse.
func (p *Parser) UnmarshalAs(data []byte, declared any) (any, error) {
	v, err := p.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	rtype, ok := declared.(reflect.Type)
	if !ok {
		rtype = reflect.TypeOf(declared)
	}

	reg := p.Registry
	if reg == nil {
		reg = swap.New()
	}

	return reg.Revert(swap.NewContext(p.opts()), rtype, v)
}

func (p *Parser) opts() *options.Options {
	if p.Options != nil {
		return p.Options
	}

	return options.Default()
}

func (p *Parser) parseValue(raw string) (any, error) {
	decoded, err := decodeToken(raw, p.opts().PlusSpaces)
	if err != nil {
		return nil, err
	}

	sc := &scanner{s: decoded}

	v, err := sc.value()
	if err != nil {
		return nil, err
	}

	if sc.pos != len(sc.s) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrSyntax, sc.pos)
	}

	return v, nil
}

// indexedSequence undoes the pseudo map rendering of a root sequence.
func indexedSequence(doc node.OrderedMap) ([]any, bool) {
	if len(doc) == 0 {
		return nil, false
	}

	seq := make([]any, 0, len(doc))

	for i, e := range doc {
		if e.Key != strconv.Itoa(i) {
			return nil, false
		}

		seq = append(seq, e.Value)
	}

	return seq, true
}

// scanner is a recursive descent reader over one percent-decoded value.
// Unescaped '(', ')', ',' and '=' are structural; a '~' makes the next
// character literal.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) value() (any, error) {
	rest := sc.s[sc.pos:]

	switch {
	case strings.HasPrefix(rest, "$o("):
		sc.pos += 3
		return sc.object()

	case strings.HasPrefix(rest, "$a("):
		sc.pos += 3
		return sc.array()

	case strings.HasPrefix(rest, "$s("):
		sc.pos += 3
		text := sc.text()

		if err := sc.expect(')'); err != nil {
			return nil, err
		}

		return text, nil
	}

	return sniff(sc.text()), nil
}

func (sc *scanner) object() (any, error) {
	members := node.OrderedMap{}

	if sc.pos < len(sc.s) && sc.s[sc.pos] == ')' {
		sc.pos++
		return members, nil
	}

	for {
		key := sc.text()

		if err := sc.expect('='); err != nil {
			return nil, err
		}

		v, err := sc.value()
		if err != nil {
			return nil, err
		}

		members = members.Set(key, v)

		c, err := sc.delimiter()
		if err != nil {
			return nil, err
		}

		if c == ')' {
			return members, nil
		}
	}
}

func (sc *scanner) array() (any, error) {
	elements := []any{}

	if sc.pos < len(sc.s) && sc.s[sc.pos] == ')' {
		sc.pos++
		return elements, nil
	}

	for {
		v, err := sc.value()
		if err != nil {
			return nil, err
		}

		elements = append(elements, v)

		c, err := sc.delimiter()
		if err != nil {
			return nil, err
		}

		if c == ')' {
			return elements, nil
		}
	}
}

// text consumes literal text up to the next structural character, resolving
// tilde escapes along the way.
func (sc *scanner) text() string {
	var b strings.Builder

	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]

		switch c {
		case '(', ')', ',', '=':
			return b.String()

		case '~':
			sc.pos++
			if sc.pos < len(sc.s) {
				b.WriteByte(sc.s[sc.pos])
				sc.pos++
			}

		default:
			b.WriteByte(c)
			sc.pos++
		}
	}

	return b.String()
}

func (sc *scanner) expect(c byte) error {
	if sc.pos >= len(sc.s) {
		return fmt.Errorf("%w: want %q, got end of value", ErrSyntax, c)
	}

	if sc.s[sc.pos] != c {
		return fmt.Errorf("%w: want %q at offset %d", ErrSyntax, c, sc.pos)
	}

	sc.pos++

	return nil
}

// delimiter consumes the ',' or ')' after a composite member.
func (sc *scanner) delimiter() (byte, error) {
	if sc.pos >= len(sc.s) {
		return 0, fmt.Errorf("%w: unterminated composite", ErrSyntax)
	}

	c := sc.s[sc.pos]
	if c != ',' && c != ')' {
		return 0, fmt.Errorf("%w: want ',' or ')' at offset %d", ErrSyntax, sc.pos)
	}

	sc.pos++

	return c, nil
}

// sniff decides the kind of a plain scalar token. A lone NUL byte is null,
// everything that is neither a bool nor a number stays text.
func sniff(text string) any {
	if text == "\x00" {
		return nil
	}

	if text == "true" {
		return true
	}

	if text == "false" {
		return false
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}

	return text
}

// decodeToken resolves percent escapes and the '+' space convention.
// Grammar characters are never percent encoded by the writer, so decoding
// ahead of the grammar scan cannot create false structure.
func decodeToken(s string, plusSpaces bool) (string, error) {
	if !strings.ContainsAny(s, "%+") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("%w: truncated at %q", ErrBadEscape, s[i:])
			}

			hi, lo := unhex(s[i+1]), unhex(s[i+2])
			if hi < 0 || lo < 0 {
				return "", fmt.Errorf("%w: %q", ErrBadEscape, s[i:i+3])
			}

			b.WriteByte(byte(hi<<4 | lo))
			i += 2

		case c == '+' && plusSpaces:
			b.WriteByte(' ')

		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

func unhex(c byte) int {
	switch {
	case utils.IsInRange('0', c, '9'):
		return int(c - '0')
	case utils.IsInRange('a', c, 'f'):
		return int(c-'a') + 10
	case utils.IsInRange('A', c, 'F'):
		return int(c-'A') + 10
	}

	return -1
}

func unescapeText(s string) string {
	if !strings.ContainsRune(s, '~') {
		return s
	}

	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '~' && i+1 < len(s) {
			i++
		}

		b.WriteByte(s[i])
	}

	return b.String()
}
