package codec

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Visitor receives the values of a message in traversal order. The printer
// drives it; implementations decide what to do with each value.
type Visitor interface {
	StartObject()
	Field(name string)
	EndObject()
	// StartVector opens a vector of count elements. nested reports whether
	// the elements are tables or structs. Returning false skips the
	// elements; EndVector is still called.
	StartVector(count int, nested bool) bool
	EndVector()

	Bool(v bool)
	Int(v int64)
	Uint(v uint64)
	Float(v float64, bits int)
	String(v string)
	Enum(name string)
}

// truncatingVisitor replaces vectors longer than max with a single
// placeholder string and drops everything inside them.
type truncatingVisitor struct {
	next Visitor
	max  int
	skip int
}

func truncate(v Visitor, limit int) Visitor {
	if limit <= 0 {
		return v
	}
	return &truncatingVisitor{next: v, max: limit}
}

func (t *truncatingVisitor) StartObject() {
	if t.skip == 0 {
		t.next.StartObject()
	}
}

func (t *truncatingVisitor) Field(name string) {
	if t.skip == 0 {
		t.next.Field(name)
	}
}

func (t *truncatingVisitor) EndObject() {
	if t.skip == 0 {
		t.next.EndObject()
	}
}

func (t *truncatingVisitor) StartVector(count int, nested bool) bool {
	if t.skip > 0 {
		t.skip++
		return false
	}
	if count > t.max {
		t.next.StartVector(1, false)
		t.next.String(fmt.Sprintf("... %d elements ...", count))
		t.skip = 1
		return false
	}
	return t.next.StartVector(count, nested)
}

func (t *truncatingVisitor) EndVector() {
	if t.skip > 0 {
		t.skip--
		if t.skip > 0 {
			return
		}
	}
	t.next.EndVector()
}

func (t *truncatingVisitor) Bool(v bool) {
	if t.skip == 0 {
		t.next.Bool(v)
	}
}

func (t *truncatingVisitor) Int(v int64) {
	if t.skip == 0 {
		t.next.Int(v)
	}
}

func (t *truncatingVisitor) Uint(v uint64) {
	if t.skip == 0 {
		t.next.Uint(v)
	}
}

func (t *truncatingVisitor) Float(v float64, bits int) {
	if t.skip == 0 {
		t.next.Float(v, bits)
	}
}

func (t *truncatingVisitor) String(v string) {
	if t.skip == 0 {
		t.next.String(v)
	}
}

func (t *truncatingVisitor) Enum(name string) {
	if t.skip == 0 {
		t.next.Enum(name)
	}
}

type container struct {
	vector bool
	multi  bool
	count  int
}

// textVisitor writes the text form. The first write error is kept and all
// later output is dropped.
type textVisitor struct {
	w         io.Writer
	multiLine bool
	precision int
	stack     []container
	err       error
}

func newTextVisitor(w io.Writer, opts PrintOptions) *textVisitor {
	return &textVisitor{w: w, multiLine: opts.MultiLine, precision: opts.FloatPrecision}
}

func (p *textVisitor) write(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *textVisitor) newline(depth int) {
	p.write("\n")
	p.write(strings.Repeat("  ", depth))
}

// item writes the separator in front of the next entry of the innermost
// container.
func (p *textVisitor) item() {
	c := &p.stack[len(p.stack)-1]
	if c.count > 0 {
		p.write(",")
	}
	if c.multi {
		p.newline(len(p.stack))
	} else {
		p.write(" ")
	}
	c.count++
}

// value prepares for a value. Inside objects Field already wrote the
// separator.
func (p *textVisitor) value() {
	if n := len(p.stack); n > 0 && p.stack[n-1].vector {
		p.item()
	}
}

func (p *textVisitor) open(bracket string, vector, multi bool) {
	p.value()
	p.write(bracket)
	p.stack = append(p.stack, container{vector: vector, multi: multi})
}

func (p *textVisitor) close(bracket string) {
	c := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if c.multi && c.count > 0 {
		p.newline(len(p.stack))
	} else {
		p.write(" ")
	}
	p.write(bracket)
}

func (p *textVisitor) StartObject() { p.open("{", false, p.multiLine) }

func (p *textVisitor) Field(name string) {
	p.item()
	p.quote(name)
	p.write(": ")
}

func (p *textVisitor) EndObject() { p.close("}") }

func (p *textVisitor) StartVector(count int, nested bool) bool {
	p.open("[", true, p.multiLine && nested)
	return true
}

func (p *textVisitor) EndVector() { p.close("]") }

func (p *textVisitor) Bool(v bool) {
	p.value()
	p.write(strconv.FormatBool(v))
}

func (p *textVisitor) Int(v int64) {
	p.value()
	p.write(strconv.FormatInt(v, 10))
}

func (p *textVisitor) Uint(v uint64) {
	p.value()
	p.write(strconv.FormatUint(v, 10))
}

func (p *textVisitor) Float(v float64, bits int) {
	p.value()
	p.write(formatFloat(v, bits, p.precision))
}

func (p *textVisitor) String(v string) {
	p.value()
	p.quote(v)
}

func (p *textVisitor) Enum(name string) {
	p.value()
	p.quote(name)
}

func formatFloat(v float64, bits, precision int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if precision <= 0 {
		precision = -1
	}
	return strconv.FormatFloat(v, 'g', precision, bits)
}

const hexDigits = "0123456789abcdef"

func (p *textVisitor) quote(s string) {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			buf = append(buf, '\\', c)
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0x0f])
			} else {
				buf = append(buf, c)
			}
		}
	}
	buf = append(buf, '"')
	p.write(string(buf))
}
