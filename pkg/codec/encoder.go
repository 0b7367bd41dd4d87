package codec

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ssargent/flatjson/pkg/builder"
	"github.com/ssargent/flatjson/pkg/schema"
	"github.com/ssargent/flatjson/pkg/tokenizer"
)

// EncodeOptions controls text to binary conversion.
type EncodeOptions struct {
	// ForceDefaults writes scalar fields even when they equal the schema
	// default.
	ForceDefaults bool
	// AllowComments accepts // and /* */ comments and trailing commas.
	AllowComments bool
	// MaxDepth limits object nesting. Zero means unlimited.
	MaxDepth int
}

// Encoder converts text into FlatBuffers messages of one root table. It
// holds no per-call state and is safe for concurrent use.
type Encoder struct {
	root *schema.Object
	opts EncodeOptions
}

// NewEncoder returns an Encoder for messages rooted at root. It panics if
// root is nil.
func NewEncoder(root *schema.Object, opts EncodeOptions) *Encoder {
	if root == nil {
		panic("codec: nil root type")
	}
	return &Encoder{root: root, opts: opts}
}

// Encode converts text to a finished buffer using a one-off Encoder.
func Encode(text string, root *schema.Object, opts EncodeOptions) ([]byte, error) {
	return NewEncoder(root, opts).Encode(text)
}

// Encode converts one text document to a finished buffer. On error no
// buffer is returned.
func (e *Encoder) Encode(text string) ([]byte, error) {
	if e.root.IsStruct {
		return nil, newError(UnsupportedRoot, "", "root type %s is a struct", e.root.Name)
	}

	var opts []tokenizer.Option
	if e.opts.AllowComments {
		opts = append(opts, tokenizer.AllowComments())
	}
	st := &encodeState{
		enc: e,
		b:   builder.New(len(text)),
		tok: tokenizer.New(text, opts...),
	}
	st.b.ForceDefaults(e.opts.ForceDefaults)

	for {
		t := st.tok.Next()
		if err := st.handle(t); err != nil {
			return nil, err
		}
		if t.Kind == tokenizer.End {
			return st.b.Finish(st.result), nil
		}
	}
}

type fieldElement struct {
	index   int
	element Element
}

// frame is one object under construction. Values of an open array
// accumulate in elements until the array closes.
type frame struct {
	object     *schema.Object
	inArray    bool
	fieldIndex int
	fieldName  string
	fields     []fieldElement
	seen       []bool
	elements   []Element
}

func newFrame(obj *schema.Object) *frame {
	return &frame{
		object:     obj,
		fieldIndex: -1,
		seen:       make([]bool, obj.NumberOfFields()),
	}
}

func (f *frame) field() *schema.Field {
	return f.object.Field(f.fieldIndex)
}

// valueType is the type a value token must have at the current position:
// the field type, or the element type inside an array.
func (f *frame) valueType() (schema.BaseType, *schema.Field) {
	fd := f.field()
	if f.inArray {
		return fd.Type.Element, fd
	}
	return fd.Type.BaseType, fd
}

type encodeState struct {
	enc    *Encoder
	b      *builder.Builder
	tok    *tokenizer.Tokenizer
	stack  []*frame
	result builder.Offset
	done   bool
}

func (s *encodeState) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *encodeState) handle(t tokenizer.Token) error {
	switch t.Kind {
	case tokenizer.Error:
		return newError(TokenizeError, "", "%s", t.Text)
	case tokenizer.ObjectStart:
		return s.objectStart()
	case tokenizer.ObjectEnd:
		return s.objectEnd()
	case tokenizer.ArrayStart:
		return s.arrayStart()
	case tokenizer.ArrayEnd:
		return s.arrayEnd()
	case tokenizer.Field:
		return s.fieldName(t.Text)
	case tokenizer.String, tokenizer.Number, tokenizer.True, tokenizer.False:
		return s.scalar(t)
	case tokenizer.Null:
		return s.null()
	case tokenizer.End:
		if len(s.stack) > 0 {
			return newError(UnbalancedInput, "", "input ended with %d open objects", len(s.stack))
		}
		if !s.done {
			return newError(UnbalancedInput, "", "input ended before the root object")
		}
		return nil
	default:
		return newError(TokenizeError, "", "unexpected token %s", t.Kind)
	}
}

func (s *encodeState) push(obj *schema.Object) error {
	if limit := s.enc.opts.MaxDepth; limit > 0 && len(s.stack) >= limit {
		return newError(DepthExceeded, "", "objects nested deeper than %d", limit)
	}
	s.stack = append(s.stack, newFrame(obj))
	return nil
}

func (s *encodeState) objectStart() error {
	parent := s.top()
	if parent == nil {
		return s.push(s.enc.root)
	}

	base, f := parent.valueType()
	switch {
	case base == schema.Obj:
		return s.push(f.Type.Object)
	case f.Type.BaseType == schema.Vector && f.Type.Element == schema.Obj:
		return newError(RepetitionMismatch, f.Name, "expected an array of %s", f.Type.Object.Name)
	default:
		return newError(TypeMismatch, f.Name, "object given for %s value", typeName(base, f))
	}
}

func (s *encodeState) objectEnd() error {
	fr := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	parent := s.top()

	var el Element
	if fr.object.IsStruct {
		blob, err := packStruct(fr, parent.fieldName)
		if err != nil {
			return err
		}
		el = StructElement{Bytes: blob}
	} else {
		el = OffsetElement{Value: s.finishTable(fr)}
	}

	if parent == nil {
		s.result = el.(OffsetElement).Value
		s.done = true
		return nil
	}
	parent.add(el)
	return nil
}

func (f *frame) add(el Element) {
	if f.inArray {
		f.elements = append(f.elements, el)
		return
	}
	f.fields = append(f.fields, fieldElement{index: f.fieldIndex, element: el})
	f.fieldIndex = -1
}

func packStruct(fr *frame, name string) ([]byte, error) {
	obj := fr.object
	if len(fr.fields) != obj.NumberOfFields() {
		var missing []string
		for i, ok := range fr.seen {
			if !ok || !fr.has(i) {
				missing = append(missing, obj.FieldName(i))
			}
		}
		return nil, newError(IncompleteStruct, name, "struct %s is missing %s", obj.Name, strings.Join(missing, ", "))
	}

	w := builder.NewStruct(obj)
	for _, fe := range fr.fields {
		f := obj.Field(fe.index)
		switch el := fe.element.(type) {
		case IntElement:
			if f.Type.BaseType.IsFloat() {
				w.SetFloat(fe.index, el.Value.Float64())
			} else {
				w.SetInteger(fe.index, el.Value.Int64())
			}
		case DoubleElement:
			w.SetFloat(fe.index, el.Value)
		case StructElement:
			w.SetStruct(fe.index, el.Bytes)
		default:
			panic("codec: offset value in struct field " + f.Name)
		}
	}
	return w.Bytes(), nil
}

func (f *frame) has(index int) bool {
	for _, fe := range f.fields {
		if fe.index == index {
			return true
		}
	}
	return false
}

func (s *encodeState) finishTable(fr *frame) builder.Offset {
	obj := fr.object
	// widest alignment first
	sort.SliceStable(fr.fields, func(i, j int) bool {
		return obj.FieldInlineAlignment(fr.fields[i].index) > obj.FieldInlineAlignment(fr.fields[j].index)
	})

	m := s.b.StartTable(obj)
	for _, fe := range fr.fields {
		switch el := fe.element.(type) {
		case IntElement:
			if obj.FieldElementaryType(fe.index).IsFloat() {
				s.b.AddFloat(fe.index, el.Value.Float64())
			} else {
				s.b.AddInteger(fe.index, el.Value.Int64())
			}
		case DoubleElement:
			s.b.AddFloat(fe.index, el.Value)
		case OffsetElement:
			s.b.AddOffset(fe.index, el.Value)
		case StructElement:
			s.b.AddStruct(fe.index, el.Bytes)
		}
	}
	return s.b.EndTable(m)
}

func (s *encodeState) arrayStart() error {
	fr := s.top()
	if fr == nil {
		return newError(UnsupportedRoot, "", "root must be an object, not an array")
	}
	f := fr.field()
	if fr.inArray {
		return newError(RepetitionMismatch, f.Name, "nested arrays are not supported")
	}
	if f.Type.BaseType != schema.Vector {
		return newError(RepetitionMismatch, f.Name, "array given for %s value", typeName(f.Type.BaseType, f))
	}
	fr.inArray = true
	fr.elements = nil
	return nil
}

func (s *encodeState) arrayEnd() error {
	fr := s.top()
	f := fr.field()
	off := s.finishVector(f, fr.elements)
	fr.inArray = false
	fr.elements = nil
	fr.add(OffsetElement{Value: off})
	return nil
}

func (s *encodeState) finishVector(f *schema.Field, elems []Element) builder.Offset {
	base := f.Type.Element
	size, align := base.Size(), base.Size()
	if base == schema.Obj && f.Type.Object.IsStruct {
		size, align = f.Type.Object.ByteSize, f.Type.Object.MinAlign
	}

	s.b.StartVector(len(elems), size, align)
	for _, e := range elems {
		switch el := e.(type) {
		case IntElement:
			if base.IsFloat() {
				s.b.PushFloat(base, el.Value.Float64())
			} else {
				s.b.PushInteger(base, el.Value.Int64())
			}
		case DoubleElement:
			s.b.PushFloat(base, el.Value)
		case OffsetElement:
			s.b.PushOffset(el.Value)
		case StructElement:
			s.b.PushStruct(el.Bytes)
		}
	}
	return s.b.EndVector()
}

func (s *encodeState) fieldName(name string) error {
	fr := s.top()
	idx, ok := fr.object.FieldIndex(name)
	if !ok {
		return newError(UnknownField, name, "%s has no such field", fr.object.Name)
	}
	if fr.seen[idx] {
		return newError(DuplicateField, name, "field set twice in %s", fr.object.Name)
	}
	fr.seen[idx] = true
	fr.fieldIndex = idx
	fr.fieldName = name
	return nil
}

func (s *encodeState) null() error {
	fr := s.top()
	if fr == nil {
		return newError(UnsupportedRoot, "", "root must be an object, not null")
	}
	if fr.inArray {
		return newError(TypeMismatch, fr.field().Name, "null is not allowed inside an array")
	}
	fr.fieldIndex = -1
	return nil
}

func (s *encodeState) scalar(t tokenizer.Token) error {
	fr := s.top()
	if fr == nil {
		return newError(UnsupportedRoot, "", "root must be an object, not a %s", strings.ToLower(t.Kind.String()))
	}
	base, f := fr.valueType()
	if base == schema.Vector {
		return newError(RepetitionMismatch, f.Name, "expected an array")
	}

	el, err := s.scalarElement(t, base, f)
	if err != nil {
		return err
	}
	fr.add(el)
	return nil
}

func (s *encodeState) scalarElement(t tokenizer.Token, base schema.BaseType, f *schema.Field) (Element, error) {
	switch t.Kind {
	case tokenizer.True, tokenizer.False:
		if !base.IsScalar() {
			return nil, newError(TypeMismatch, f.Name, "bool given for %s value", typeName(base, f))
		}
		if t.Kind == tokenizer.True {
			return IntElement{Value: Int128From(1)}, nil
		}
		return IntElement{Value: Int128From(0)}, nil

	case tokenizer.String:
		if base == schema.String {
			return OffsetElement{Value: s.b.CreateString(t.Text)}, nil
		}
		if f.Type.Enum != nil && base.IsInteger() {
			v, ok := f.Type.Enum.Value(t.Text)
			if !ok {
				return nil, newError(UnknownEnumName, f.Name, "%q is not a value of %s", t.Text, f.Type.Enum.Name)
			}
			return IntElement{Value: Int128From(v)}, nil
		}
		return nil, newError(TypeMismatch, f.Name, "string given for %s value", typeName(base, f))

	case tokenizer.Number:
		switch {
		case base.IsFloat():
			v, ok := parseFloat(t.Text)
			if !ok {
				return nil, newError(TypeMismatch, f.Name, "invalid number %q", t.Text)
			}
			return DoubleElement{Value: v}, nil
		case base.IsInteger():
			v, ok := ParseInt128(t.Text)
			if !ok {
				return nil, newError(TypeMismatch, f.Name, "%q is not a valid %s", t.Text, typeName(base, f))
			}
			return IntElement{Value: v}, nil
		default:
			return nil, newError(TypeMismatch, f.Name, "number given for %s value", typeName(base, f))
		}
	}
	panic("codec: unexpected scalar token " + t.Kind.String())
}

// parseFloat accepts JSON numbers plus the nan and inf literals the printer
// writes.
func parseFloat(text string) (float64, bool) {
	switch text {
	case "nan", "-nan":
		return math.NaN(), true
	case "inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// out of range literals saturate to ±Inf, matching the host conversion
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func typeName(base schema.BaseType, f *schema.Field) string {
	switch {
	case base == schema.Obj && f.Type.Object != nil:
		return f.Type.Object.Name
	case f.Type.Enum != nil && base.IsInteger():
		return f.Type.Enum.Name
	}
	return base.String()
}
