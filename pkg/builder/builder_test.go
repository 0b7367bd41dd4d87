package builder

import (
	"encoding/binary"
	"math"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/flatjson/pkg/schema"
)

const builderSchema = `
root_type: Message
structs:
  - name: Point
    fields:
      - { name: x, type: short }
      - { name: y, type: double }
tables:
  - name: Message
    fields:
      - { name: small, type: byte }
      - { name: label, type: string }
      - { name: values, type: "[byte]" }
      - { name: origin, type: Point }
      - { name: level, type: int, default: "7" }
      - { name: ratio, type: float }
      - { name: points, type: "[Point]" }
`

func loadSchema(t *testing.T) *schema.Object {
	t.Helper()
	s, err := schema.Parse([]byte(builderSchema))
	require.NoError(t, err)
	return s.RootTable()
}

func rootTable(buf []byte) flatbuffers.Table {
	return flatbuffers.Table{Bytes: buf, Pos: flatbuffers.GetUOffsetT(buf)}
}

func slot(i int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*i)
}

func TestBuilder_TableFields(t *testing.T) {
	msg := loadSchema(t)
	b := New(0)

	label := b.CreateString("hello")

	b.StartVector(3, 1, 1)
	b.PushInteger(schema.Byte, -1)
	b.PushInteger(schema.Byte, 0)
	b.PushInteger(schema.Byte, 1)
	values := b.EndVector()

	point := NewStruct(msg.FieldType(3))
	point.SetInteger(0, 3)
	point.SetFloat(1, 2.5)

	m := b.StartTable(msg)
	b.AddInteger(0, -5)
	b.AddOffset(1, label)
	b.AddOffset(2, values)
	b.AddStruct(3, point.Bytes())
	b.AddFloat(5, 0.25)
	buf := b.Finish(b.EndTable(m))

	tab := rootTable(buf)

	o := flatbuffers.UOffsetT(tab.Offset(slot(0)))
	require.NotZero(t, o)
	assert.Equal(t, int8(-5), tab.GetInt8(tab.Pos+o))

	o = flatbuffers.UOffsetT(tab.Offset(slot(1)))
	require.NotZero(t, o)
	assert.Equal(t, "hello", tab.String(tab.Pos+o))

	o = flatbuffers.UOffsetT(tab.Offset(slot(2)))
	require.NotZero(t, o)
	require.Equal(t, 3, tab.VectorLen(o))
	start := tab.Vector(o)
	assert.Equal(t, int8(-1), tab.GetInt8(start))
	assert.Equal(t, int8(0), tab.GetInt8(start+1))
	assert.Equal(t, int8(1), tab.GetInt8(start+2))

	o = flatbuffers.UOffsetT(tab.Offset(slot(3)))
	require.NotZero(t, o)
	pos := tab.Pos + o
	assert.Zero(t, pos%8, "struct must be aligned to its largest field")
	assert.Equal(t, int16(3), tab.GetInt16(pos))
	assert.Equal(t, 2.5, tab.GetFloat64(pos+8))

	assert.Zero(t, tab.Offset(slot(4)), "level was never written")

	o = flatbuffers.UOffsetT(tab.Offset(slot(5)))
	require.NotZero(t, o)
	assert.Equal(t, float32(0.25), tab.GetFloat32(tab.Pos+o))
}

func TestBuilder_DefaultElision(t *testing.T) {
	msg := loadSchema(t)

	t.Run("default values are skipped", func(t *testing.T) {
		b := New(0)
		m := b.StartTable(msg)
		b.AddInteger(4, 7)
		b.AddInteger(0, 0)
		b.AddFloat(5, 0)
		buf := b.Finish(b.EndTable(m))

		tab := rootTable(buf)
		assert.Zero(t, tab.Offset(slot(0)))
		assert.Zero(t, tab.Offset(slot(4)))
		assert.Zero(t, tab.Offset(slot(5)))
	})

	t.Run("force defaults writes them", func(t *testing.T) {
		b := New(0)
		b.ForceDefaults(true)
		m := b.StartTable(msg)
		b.AddInteger(4, 7)
		buf := b.Finish(b.EndTable(m))

		tab := rootTable(buf)
		o := flatbuffers.UOffsetT(tab.Offset(slot(4)))
		require.NotZero(t, o)
		assert.Equal(t, int32(7), tab.GetInt32(tab.Pos+o))
	})

	t.Run("negative zero is not the default", func(t *testing.T) {
		b := New(0)
		m := b.StartTable(msg)
		b.AddFloat(5, math.Copysign(0, -1))
		buf := b.Finish(b.EndTable(m))

		tab := rootTable(buf)
		o := flatbuffers.UOffsetT(tab.Offset(slot(5)))
		require.NotZero(t, o)
		assert.True(t, math.Signbit(float64(tab.GetFloat32(tab.Pos+o))))
	})

	t.Run("NaN is never a default", func(t *testing.T) {
		b := New(0)
		m := b.StartTable(msg)
		b.AddFloat(5, math.NaN())
		buf := b.Finish(b.EndTable(m))

		tab := rootTable(buf)
		o := flatbuffers.UOffsetT(tab.Offset(slot(5)))
		require.NotZero(t, o)
		assert.True(t, math.IsNaN(float64(tab.GetFloat32(tab.Pos+o))))
	})
}

func TestBuilder_StructVector(t *testing.T) {
	msg := loadSchema(t)
	pointType := msg.FieldType(6)
	b := New(0)

	b.StartVector(2, pointType.ByteSize, pointType.MinAlign)
	for i := 0; i < 2; i++ {
		p := NewStruct(pointType)
		p.SetInteger(0, int64(10+i))
		p.SetFloat(1, float64(i)+0.5)
		b.PushStruct(p.Bytes())
	}
	points := b.EndVector()

	m := b.StartTable(msg)
	b.AddOffset(6, points)
	buf := b.Finish(b.EndTable(m))

	tab := rootTable(buf)
	o := flatbuffers.UOffsetT(tab.Offset(slot(6)))
	require.NotZero(t, o)
	require.Equal(t, 2, tab.VectorLen(o))
	start := tab.Vector(o)
	for i := 0; i < 2; i++ {
		pos := start + flatbuffers.UOffsetT(i*pointType.ByteSize)
		assert.Equal(t, int16(10+i), tab.GetInt16(pos))
		assert.Equal(t, float64(i)+0.5, tab.GetFloat64(pos+8))
	}
}

func TestBuilder_NestedTables(t *testing.T) {
	msg := loadSchema(t)
	b := New(0)

	var children []Offset
	for _, v := range []int64{1, 2} {
		m := b.StartTable(msg)
		b.AddInteger(0, v)
		children = append(children, b.EndTable(m))
	}

	b.StartVector(len(children), 4, 4)
	for _, c := range children {
		b.PushOffset(c)
	}
	vec := b.EndVector()
	assert.NotZero(t, vec)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, int64(-1), Truncate(schema.Byte, 255))
	assert.Equal(t, int64(255), Truncate(schema.UByte, -1))
	assert.Equal(t, int64(1), Truncate(schema.Bool, 3))
	assert.Equal(t, int64(0), Truncate(schema.Bool, 256))
	assert.Equal(t, int64(-32768), Truncate(schema.Short, 32768))
	assert.Equal(t, int64(math.MaxUint32), Truncate(schema.UInt, -1))
	assert.Equal(t, int64(-1), Truncate(schema.ULong, -1))
}

func TestStructWriter_Layout(t *testing.T) {
	msg := loadSchema(t)
	w := NewStruct(msg.FieldType(3))
	w.SetInteger(0, -2)
	w.SetFloat(1, 1.0)

	out := w.Bytes()
	require.Len(t, out, 16)
	assert.Equal(t, uint16(0xfffe), binary.LittleEndian.Uint16(out[0:]))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, out[2:8], "padding stays zero")
	assert.Equal(t, math.Float64bits(1.0), binary.LittleEndian.Uint64(out[8:]))
}

func TestBuilder_ContractViolations(t *testing.T) {
	msg := loadSchema(t)

	assert.Panics(t, func() {
		b := New(0)
		b.AddInteger(0, 1)
	}, "field outside a table")

	assert.Panics(t, func() {
		b := New(0)
		b.StartVector(2, 1, 1)
		b.PushInteger(schema.Byte, 1)
		b.EndVector()
	}, "too few elements")

	assert.Panics(t, func() {
		b := New(0)
		m := b.StartTable(msg)
		b.AddOffset(0, 4)
		b.EndTable(m)
	}, "offset into a scalar field")

	assert.Panics(t, func() {
		NewStruct(msg)
	}, "table used as struct")
}
