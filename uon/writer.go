package uon

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"uon-marshaller/options"
	"uon-marshaller/primitive"
	"uon-marshaller/utils"
)

// Writer renders the traversal event stream as a UON document. Write errors
// latch on first occurrence and surface from Flush; the event methods stay
// cheap to call.
type Writer struct {
	out   *bufio.Writer
	opts  *options.Options
	pairs int
	err   error
}

// NewWriter wraps out. A nil opts means defaults.
func NewWriter(out io.Writer, opts *options.Options) *Writer {
	if opts == nil {
		opts = options.Default()
	}

	return &Writer{out: bufio.NewWriter(out), opts: opts}
}

func (w *Writer) BeginEntry() {
	if w.pairs > 0 {
		w.writeByte('&')
	}

	w.pairs++
}

func (w *Writer) Key(_ primitive.KindEnum, text string) {
	w.writeText(text)
	w.writeByte('=')
}

func (w *Writer) EndEntry() {}

func (w *Writer) Scalar(kind primitive.KindEnum, text string) {
	if kind == primitive.KindNull {
		w.writeString("%00")
		return
	}

	if kind == primitive.KindString && needsStringMark(text) {
		w.writeString("$s(")
		w.writeText(text)
		w.writeByte(')')

		return
	}

	w.writeText(text)
}

func (w *Writer) BeginObject() { w.writeString("$o(") }
func (w *Writer) EndObject()   { w.writeByte(')') }
func (w *Writer) BeginArray()  { w.writeString("$a(") }
func (w *Writer) EndArray()    { w.writeByte(')') }
func (w *Writer) NextMember()  { w.writeByte(',') }

func (w *Writer) MemberKey(_ primitive.KindEnum, text string) {
	w.writeText(text)
	w.writeByte('=')
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}

	return w.out.Flush()
}

// needsStringMark reports whether a string scalar must be wrapped in $s(...)
// because its plain rendering would read back as a different kind.
func needsStringMark(text string) bool {
	if text == "" {
		return false
	}

	if text[0] == '$' || strings.ContainsRune(text, 0) {
		return true
	}

	if text == "true" || text == "false" {
		return true
	}

	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return true
	}

	return false
}

// writeText emits literal text: grammar characters get a tilde escape,
// spaces collapse to '+' under PlusSpaces, and everything outside the safe
// alphabet is percent encoded byte by byte. A literal '=' needs both
// layers, the tilde so the grammar scan reads it as text after percent
// decoding, and the percent encoding so the raw token carries no bare '='
// for the key/value split.
func (w *Writer) writeText(text string) {
	for i := 0; i < len(text); i++ {
		b := text[i]

		switch {
		case b == '(' || b == ')' || b == ',' || b == '~':
			w.writeByte('~')
			w.writeByte(b)
		case b == '=':
			w.writeByte('~')
			w.writePercent(b)
		case b == ' ' && w.opts.PlusSpaces:
			w.writeByte('+')
		case b == '$' || isRawByte(b):
			w.writeByte(b)
		default:
			w.writePercent(b)
		}
	}
}

// isRawByte reports whether a byte passes through without percent encoding.
// The alphabet matches what form decoders accept unescaped in query values.
func isRawByte(b byte) bool {
	return utils.IsInRange('a', b, 'z') ||
		utils.IsInRange('A', b, 'Z') ||
		utils.IsInRange('0', b, '9') ||
		strings.IndexByte(";/?:@-_.!*'", b) >= 0
}

const hexUpper = "0123456789ABCDEF"

func (w *Writer) writePercent(b byte) {
	w.writeByte('%')
	w.writeByte(hexUpper[b>>4])
	w.writeByte(hexUpper[b&0x0f])
}

func (w *Writer) writeByte(b byte) {
	if w.err != nil {
		return
	}

	w.err = w.out.WriteByte(b)
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}

	_, w.err = w.out.WriteString(s)
}
