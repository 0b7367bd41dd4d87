// Package builder assembles FlatBuffers messages from schema-described
// values.
//
// It wraps flatbuffers.Builder with the bookkeeping a schema-driven caller
// needs: table fields addressed by schema index with default elision,
// struct values packed at their schema offsets, and vectors whose elements
// are pushed in logical order.
package builder

import (
	"encoding/binary"
	"fmt"
	"math"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/ssargent/flatjson/pkg/schema"
)

// Offset is the position of a finished table, vector or string, counted
// from the end of the buffer.
type Offset = flatbuffers.UOffsetT

// Mark is returned by StartTable and must be handed back to EndTable.
type Mark struct {
	object *schema.Object
}

type vectorItem struct {
	base    schema.BaseType
	integer int64
	real    float64
	offset  Offset
	blob    []byte
}

// Builder produces one finished buffer. It is not safe for concurrent use.
type Builder struct {
	fbb           *flatbuffers.Builder
	forceDefaults bool

	table *schema.Object

	inVector    bool
	vectorCount int
	elemSize    int
	elemAlign   int
	items       []vectorItem
}

// New returns a Builder whose buffer starts at initialSize bytes and grows
// as needed.
func New(initialSize int) *Builder {
	return &Builder{fbb: flatbuffers.NewBuilder(initialSize)}
}

// ForceDefaults controls whether scalar table fields equal to their schema
// default are still written.
func (b *Builder) ForceDefaults(force bool) {
	b.forceDefaults = force
}

// StartTable begins a table of type obj.
func (b *Builder) StartTable(obj *schema.Object) Mark {
	if !obj.IsTable() {
		panic(fmt.Sprintf("builder: %s is a struct, not a table", obj.Name))
	}
	if b.table != nil || b.inVector {
		panic("builder: StartTable while another table or vector is open")
	}
	b.table = obj
	b.fbb.StartObject(obj.NumberOfFields())
	return Mark{object: obj}
}

func (b *Builder) tableField(index int) *schema.Field {
	if b.table == nil {
		panic("builder: field added outside of a table")
	}
	return b.table.Field(index)
}

// AddInteger writes an integer or bool field. The value is narrowed to the
// field's width with Go conversion semantics. Integer values on float
// fields are converted.
func (b *Builder) AddInteger(index int, v int64) {
	f := b.tableField(index)
	base := f.Type.BaseType
	if base.IsFloat() {
		b.AddFloat(index, float64(v))
		return
	}
	if !base.IsInteger() {
		panic(fmt.Sprintf("builder: integer written to %s field %s", base, f.Name))
	}
	if !b.forceDefaults && Truncate(base, v) == Truncate(base, f.DefaultInteger) {
		return
	}
	b.prependInteger(base, v)
	b.fbb.Slot(index)
}

// AddFloat writes a float or double field.
func (b *Builder) AddFloat(index int, v float64) {
	f := b.tableField(index)
	switch f.Type.BaseType {
	case schema.Float:
		if !b.forceDefaults && math.Float32bits(float32(v)) == math.Float32bits(float32(f.DefaultReal)) {
			return
		}
		b.fbb.PrependFloat32(float32(v))
	case schema.Double:
		if !b.forceDefaults && math.Float64bits(v) == math.Float64bits(f.DefaultReal) {
			return
		}
		b.fbb.PrependFloat64(v)
	default:
		panic(fmt.Sprintf("builder: float written to %s field %s", f.Type.BaseType, f.Name))
	}
	b.fbb.Slot(index)
}

// AddOffset writes a reference to a finished string, vector or table.
func (b *Builder) AddOffset(index int, off Offset) {
	f := b.tableField(index)
	switch f.Type.BaseType {
	case schema.String, schema.Vector:
	case schema.Obj:
		if f.Type.Object.IsStruct {
			panic(fmt.Sprintf("builder: offset written to struct field %s", f.Name))
		}
	default:
		panic(fmt.Sprintf("builder: offset written to %s field %s", f.Type.BaseType, f.Name))
	}
	b.fbb.PrependUOffsetTSlot(index, off, 0)
}

// AddStruct writes a packed struct inline into the table.
func (b *Builder) AddStruct(index int, blob []byte) {
	f := b.tableField(index)
	if f.Type.BaseType != schema.Obj || !f.Type.Object.IsStruct {
		panic(fmt.Sprintf("builder: struct written to non-struct field %s", f.Name))
	}
	b.placeBlob(blob, f.Type.Object.MinAlign)
	b.fbb.PrependStructSlot(index, b.fbb.Offset(), 0)
}

// EndTable finishes the table started by StartTable.
func (b *Builder) EndTable(m Mark) Offset {
	if b.table == nil || m.object != b.table {
		panic("builder: EndTable does not match StartTable")
	}
	b.table = nil
	return b.fbb.EndObject()
}

// CreateString writes a length-prefixed, zero terminated string.
func (b *Builder) CreateString(s string) Offset {
	return b.fbb.CreateString(s)
}

// StartVector begins a vector of count elements of elemSize bytes each.
// Exactly count Push calls must follow before EndVector.
func (b *Builder) StartVector(count, elemSize, elemAlign int) {
	if b.table != nil || b.inVector {
		panic("builder: StartVector while another table or vector is open")
	}
	b.inVector = true
	b.vectorCount = count
	b.elemSize = elemSize
	b.elemAlign = elemAlign
	b.items = b.items[:0]
}

func (b *Builder) push(item vectorItem) {
	if !b.inVector {
		panic("builder: push outside of a vector")
	}
	b.items = append(b.items, item)
}

// PushInteger appends an integer element of type base.
func (b *Builder) PushInteger(base schema.BaseType, v int64) {
	b.push(vectorItem{base: base, integer: v})
}

// PushFloat appends a float or double element.
func (b *Builder) PushFloat(base schema.BaseType, v float64) {
	b.push(vectorItem{base: base, real: v})
}

// PushOffset appends a reference to a finished string or table.
func (b *Builder) PushOffset(off Offset) {
	b.push(vectorItem{base: schema.Obj, offset: off})
}

// PushStruct appends a packed struct element.
func (b *Builder) PushStruct(blob []byte) {
	b.push(vectorItem{blob: blob})
}

// EndVector writes the pushed elements. The buffer grows backward, so
// elements are emitted last to first; a forward read of the finished
// vector yields them in push order.
func (b *Builder) EndVector() Offset {
	if !b.inVector {
		panic("builder: EndVector without StartVector")
	}
	if len(b.items) != b.vectorCount {
		panic(fmt.Sprintf("builder: vector declared %d elements, got %d", b.vectorCount, len(b.items)))
	}
	b.inVector = false

	b.fbb.StartVector(b.elemSize, b.vectorCount, b.elemAlign)
	for i := len(b.items) - 1; i >= 0; i-- {
		item := b.items[i]
		switch {
		case item.blob != nil:
			b.placeBlob(item.blob, b.elemAlign)
		case item.base == schema.Obj:
			b.fbb.PrependUOffsetT(item.offset)
		case item.base.IsFloat():
			b.prependFloat(item.base, item.real)
		default:
			b.prependInteger(item.base, item.integer)
		}
	}
	b.items = b.items[:0]
	return b.fbb.EndVector(b.vectorCount)
}

// Finish writes the root offset and returns the finished buffer.
func (b *Builder) Finish(root Offset) []byte {
	b.fbb.Finish(root)
	return b.fbb.FinishedBytes()
}

func (b *Builder) placeBlob(blob []byte, align int) {
	b.fbb.Prep(align, len(blob))
	for i := len(blob) - 1; i >= 0; i-- {
		b.fbb.PlaceByte(blob[i])
	}
}

func (b *Builder) prependInteger(base schema.BaseType, v int64) {
	switch base {
	case schema.Bool:
		b.fbb.PrependBool(uint8(v) != 0)
	case schema.Byte:
		b.fbb.PrependInt8(int8(v))
	case schema.UByte:
		b.fbb.PrependUint8(uint8(v))
	case schema.Short:
		b.fbb.PrependInt16(int16(v))
	case schema.UShort:
		b.fbb.PrependUint16(uint16(v))
	case schema.Int:
		b.fbb.PrependInt32(int32(v))
	case schema.UInt:
		b.fbb.PrependUint32(uint32(v))
	case schema.Long:
		b.fbb.PrependInt64(v)
	case schema.ULong:
		b.fbb.PrependUint64(uint64(v))
	case schema.Float, schema.Double:
		b.prependFloat(base, float64(v))
	default:
		panic(fmt.Sprintf("builder: %s is not a scalar type", base))
	}
}

func (b *Builder) prependFloat(base schema.BaseType, v float64) {
	if base == schema.Float {
		b.fbb.PrependFloat32(float32(v))
		return
	}
	b.fbb.PrependFloat64(v)
}

// Truncate narrows v to the width of base and widens it back, so two values
// compare equal exactly when they would be stored identically.
func Truncate(base schema.BaseType, v int64) int64 {
	switch base {
	case schema.Bool:
		if uint8(v) != 0 {
			return 1
		}
		return 0
	case schema.Byte:
		return int64(int8(v))
	case schema.UByte:
		return int64(uint8(v))
	case schema.Short:
		return int64(int16(v))
	case schema.UShort:
		return int64(uint16(v))
	case schema.Int:
		return int64(int32(v))
	case schema.UInt:
		return int64(uint32(v))
	default:
		return v
	}
}

// StructWriter packs the fields of one struct value at their schema
// offsets.
type StructWriter struct {
	object *schema.Object
	buf    []byte
}

// NewStruct returns a zeroed writer for a struct of type obj.
func NewStruct(obj *schema.Object) *StructWriter {
	if !obj.IsStruct {
		panic(fmt.Sprintf("builder: %s is a table, not a struct", obj.Name))
	}
	return &StructWriter{object: obj, buf: make([]byte, obj.ByteSize)}
}

// SetInteger stores an integer field, narrowing it to the field's width.
func (w *StructWriter) SetInteger(index int, v int64) {
	f := w.object.Field(index)
	if f.Type.BaseType.IsFloat() {
		w.SetFloat(index, float64(v))
		return
	}
	b := w.buf[f.Offset:]
	switch f.Type.BaseType.Size() {
	case 1:
		b[0] = byte(Truncate(f.Type.BaseType, v))
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

// SetFloat stores a float or double field.
func (w *StructWriter) SetFloat(index int, v float64) {
	f := w.object.Field(index)
	switch f.Type.BaseType {
	case schema.Float:
		binary.LittleEndian.PutUint32(w.buf[f.Offset:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(w.buf[f.Offset:], math.Float64bits(v))
	default:
		panic(fmt.Sprintf("builder: float written to %s field %s", f.Type.BaseType, f.Name))
	}
}

// SetStruct copies a nested packed struct into place.
func (w *StructWriter) SetStruct(index int, blob []byte) {
	f := w.object.Field(index)
	if f.Type.BaseType != schema.Obj || len(blob) != f.Type.Object.ByteSize {
		panic(fmt.Sprintf("builder: bad nested struct for field %s", f.Name))
	}
	copy(w.buf[f.Offset:], blob)
}

// Bytes returns the packed struct.
func (w *StructWriter) Bytes() []byte {
	return w.buf
}
