// Package tokenizer splits JSON-like text into a flat stream of structural
// and value tokens.
//
// The tokenizer is pull based: each call to Next returns one token. Object
// keys come back as Field tokens, so callers never see the ':' separator.
// Number tokens carry the raw literal; interpreting it is up to the caller.
// Besides standard JSON numbers the literals nan, -nan, inf and -inf are
// accepted so that printed floats can be read back.
//
// Running out of input at a token boundary yields End even when objects or
// arrays are still open; Depth tells the caller how many are. Malformed
// input produces a single Error token, after which Next keeps returning
// that same token.
package tokenizer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tidwall/jsonc"
)

// Kind identifies a token.
type Kind uint8

const (
	ObjectStart Kind = iota + 1
	ObjectEnd
	ArrayStart
	ArrayEnd
	Field
	String
	Number
	True
	False
	Null
	End
	Error
)

var kindNames = map[Kind]string{
	ObjectStart: "ObjectStart",
	ObjectEnd:   "ObjectEnd",
	ArrayStart:  "ArrayStart",
	ArrayEnd:    "ArrayEnd",
	Field:       "Field",
	String:      "String",
	Number:      "Number",
	True:        "True",
	False:       "False",
	Null:        "Null",
	End:         "End",
	Error:       "Error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Token is one lexical unit. Text holds the field name, the unescaped
// string, the raw number literal or the error message, depending on Kind.
type Token struct {
	Kind Kind
	Text string
	// Offset is the byte position in the input where the token starts.
	Offset int
}

type state uint8

const (
	stateValue state = iota
	stateValueOrArrayEnd
	stateFieldOrObjectEnd
	stateField
	stateAfterValue
	stateDone
)

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// AllowComments strips // and /* */ comments and trailing commas before
// scanning. Byte offsets in error messages still match the original text.
func AllowComments() Option {
	return func(t *Tokenizer) {
		t.comments = true
	}
}

// Tokenizer produces tokens from one input. It cannot be rewound; create a
// new Tokenizer to scan the input again.
type Tokenizer struct {
	data     string
	pos      int
	state    state
	stack    []bool // true for objects, false for arrays
	comments bool
	last     Token
}

// New returns a Tokenizer over text.
func New(text string, opts ...Option) *Tokenizer {
	t := &Tokenizer{data: text}
	for _, opt := range opts {
		opt(t)
	}
	if t.comments {
		t.data = string(jsonc.ToJSON([]byte(text)))
	}
	return t
}

// Next returns the next token. After End or Error it keeps returning the
// same token.
func (t *Tokenizer) Next() Token {
	if t.state == stateDone {
		return t.last
	}
	tok := t.next()
	if tok.Kind == End || tok.Kind == Error {
		t.state = stateDone
		t.last = tok
	}
	return tok
}

func (t *Tokenizer) next() Token {
	for {
		t.skipSpace()
		switch t.state {
		case stateFieldOrObjectEnd, stateField:
			if t.state == stateFieldOrObjectEnd && t.peek() == '}' {
				return t.closeContainer(true)
			}
			return t.field()

		case stateValue, stateValueOrArrayEnd:
			if t.state == stateValueOrArrayEnd && t.peek() == ']' {
				return t.closeContainer(false)
			}
			return t.value()

		case stateAfterValue:
			if t.pos >= len(t.data) {
				return Token{Kind: End, Offset: t.pos}
			}
			if len(t.stack) == 0 {
				return t.errorf("unexpected %q after top-level value", t.data[t.pos])
			}
			inObject := t.stack[len(t.stack)-1]
			switch c := t.peek(); {
			case c == ',':
				t.pos++
				if inObject {
					t.state = stateField
				} else {
					t.state = stateValue
				}
				continue
			case c == '}' && inObject, c == ']' && !inObject:
				return t.closeContainer(inObject)
			default:
				return t.errorf("expected ',' or closing bracket, found %q", c)
			}
		}
	}
}

// Depth returns the number of objects and arrays opened but not yet closed.
func (t *Tokenizer) Depth() int {
	return len(t.stack)
}

func (t *Tokenizer) closeContainer(object bool) Token {
	start := t.pos
	t.pos++
	t.stack = t.stack[:len(t.stack)-1]
	t.state = stateAfterValue
	if object {
		return Token{Kind: ObjectEnd, Offset: start}
	}
	return Token{Kind: ArrayEnd, Offset: start}
}

func (t *Tokenizer) field() Token {
	start := t.pos
	if t.pos >= len(t.data) {
		return Token{Kind: End, Offset: t.pos}
	}
	if t.data[t.pos] != '"' {
		return t.errorf("expected field name, found %q", t.data[t.pos])
	}
	name, err := t.readString()
	if err != nil {
		return t.errorAt(start, err.Error())
	}
	t.skipSpace()
	if t.peek() != ':' {
		return t.errorf("expected ':' after field name %q", name)
	}
	t.pos++
	t.state = stateValue
	return Token{Kind: Field, Text: name, Offset: start}
}

func (t *Tokenizer) value() Token {
	start := t.pos
	if t.pos >= len(t.data) {
		return Token{Kind: End, Offset: t.pos}
	}
	switch c := t.data[t.pos]; {
	case c == '{':
		t.pos++
		t.stack = append(t.stack, true)
		t.state = stateFieldOrObjectEnd
		return Token{Kind: ObjectStart, Offset: start}
	case c == '[':
		t.pos++
		t.stack = append(t.stack, false)
		t.state = stateValueOrArrayEnd
		return Token{Kind: ArrayStart, Offset: start}
	case c == '"':
		s, err := t.readString()
		if err != nil {
			return t.errorAt(start, err.Error())
		}
		t.state = stateAfterValue
		return Token{Kind: String, Text: s, Offset: start}
	case c == '-' || (c >= '0' && c <= '9'):
		return t.number()
	case isLetter(c):
		word := t.readWord()
		t.state = stateAfterValue
		switch word {
		case "true":
			return Token{Kind: True, Offset: start}
		case "false":
			return Token{Kind: False, Offset: start}
		case "null":
			return Token{Kind: Null, Offset: start}
		case "nan", "inf":
			return Token{Kind: Number, Text: word, Offset: start}
		}
		return t.errorAt(start, fmt.Sprintf("unknown literal %q", word))
	default:
		return t.errorf("unexpected %q, expected a value", c)
	}
}

func (t *Tokenizer) number() Token {
	start := t.pos
	if t.data[t.pos] == '-' {
		t.pos++
		if t.pos < len(t.data) && isLetter(t.data[t.pos]) {
			word := t.readWord()
			if word != "nan" && word != "inf" {
				return t.errorAt(start, fmt.Sprintf("invalid number %q", "-"+word))
			}
			t.state = stateAfterValue
			return Token{Kind: Number, Text: "-" + word, Offset: start}
		}
	}
	intStart := t.pos
	if !t.digits() {
		return t.errorAt(start, "invalid number: missing digits")
	}
	if t.pos-intStart > 1 && t.data[intStart] == '0' {
		return t.errorAt(start, fmt.Sprintf("invalid number %q: leading zero", t.data[start:t.pos]))
	}
	if t.peek() == '.' {
		t.pos++
		if !t.digits() {
			return t.errorAt(start, "invalid number: missing digits after '.'")
		}
	}
	if c := t.peek(); c == 'e' || c == 'E' {
		t.pos++
		if c := t.peek(); c == '+' || c == '-' {
			t.pos++
		}
		if !t.digits() {
			return t.errorAt(start, "invalid number: missing exponent digits")
		}
	}
	if t.pos < len(t.data) && (isLetter(t.data[t.pos]) || t.data[t.pos] == '.') {
		return t.errorAt(start, fmt.Sprintf("invalid number %q", t.data[start:t.pos+1]))
	}
	t.state = stateAfterValue
	return Token{Kind: Number, Text: t.data[start:t.pos], Offset: start}
}

func (t *Tokenizer) digits() bool {
	start := t.pos
	for t.pos < len(t.data) && t.data[t.pos] >= '0' && t.data[t.pos] <= '9' {
		t.pos++
	}
	return t.pos > start
}

func (t *Tokenizer) readWord() string {
	start := t.pos
	for t.pos < len(t.data) && (isLetter(t.data[t.pos]) || (t.data[t.pos] >= '0' && t.data[t.pos] <= '9')) {
		t.pos++
	}
	return t.data[start:t.pos]
}

// readString consumes a quoted string starting at the opening quote.
func (t *Tokenizer) readString() (string, error) {
	t.pos++
	var sb strings.Builder
	for {
		if t.pos >= len(t.data) {
			return "", fmt.Errorf("unterminated string")
		}
		c := t.data[t.pos]
		switch {
		case c == '"':
			t.pos++
			return sb.String(), nil
		case c == '\\':
			if err := t.readEscape(&sb); err != nil {
				return "", err
			}
		case c < 0x20:
			return "", fmt.Errorf("control character %#02x in string", c)
		default:
			r, size := utf8.DecodeRuneInString(t.data[t.pos:])
			if r == utf8.RuneError && size == 1 {
				return "", fmt.Errorf("invalid UTF-8 in string")
			}
			sb.WriteString(t.data[t.pos : t.pos+size])
			t.pos += size
		}
	}
}

func (t *Tokenizer) readEscape(sb *strings.Builder) error {
	if t.pos+1 >= len(t.data) {
		return fmt.Errorf("unterminated escape sequence")
	}
	c := t.data[t.pos+1]
	t.pos += 2
	switch c {
	case '"', '\\', '/':
		sb.WriteByte(c)
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'u':
		r, err := t.readHex4()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) {
			if !strings.HasPrefix(t.data[t.pos:], "\\u") {
				return fmt.Errorf("unpaired surrogate \\u%04x", r)
			}
			t.pos += 2
			r2, err := t.readHex4()
			if err != nil {
				return err
			}
			r = utf16.DecodeRune(r, r2)
			if r == utf8.RuneError {
				return fmt.Errorf("invalid surrogate pair")
			}
		}
		sb.WriteRune(r)
	default:
		return fmt.Errorf("invalid escape sequence \\%c", c)
	}
	return nil
}

func (t *Tokenizer) readHex4() (rune, error) {
	if t.pos+4 > len(t.data) {
		return 0, fmt.Errorf("truncated \\u escape")
	}
	v, err := strconv.ParseUint(t.data[t.pos:t.pos+4], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid \\u escape %q", t.data[t.pos:t.pos+4])
	}
	t.pos += 4
	return rune(v), nil
}

func (t *Tokenizer) skipSpace() {
	for t.pos < len(t.data) {
		switch t.data[t.pos] {
		case ' ', '\t', '\n', '\r':
			t.pos++
		default:
			return
		}
	}
}

func (t *Tokenizer) peek() byte {
	if t.pos < len(t.data) {
		return t.data[t.pos]
	}
	return 0
}

func (t *Tokenizer) errorf(format string, args ...any) Token {
	return t.errorAt(t.pos, fmt.Sprintf(format, args...))
}

func (t *Tokenizer) errorAt(offset int, msg string) Token {
	line, col := Position(t.data, offset)
	return Token{
		Kind:   Error,
		Text:   fmt.Sprintf("line %d, column %d: %s", line, col, msg),
		Offset: offset,
	}
}

// Position converts a byte offset in text to a 1-based line and column.
func Position(text string, offset int) (line, column int) {
	if offset > len(text) {
		offset = len(text)
	}
	line = 1 + strings.Count(text[:offset], "\n")
	column = offset - strings.LastIndexByte(text[:offset], '\n')
	return line, column
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
