package codec

import (
	"io"
	"strings"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/ssargent/flatjson/pkg/schema"
)

// PrintOptions controls binary to text conversion.
type PrintOptions struct {
	// MultiLine puts every table field and every element of a vector of
	// tables or structs on its own line, indented by two spaces per level.
	MultiLine bool
	// MaxVectorSize replaces longer vectors with a placeholder naming their
	// length. Zero or negative means unlimited.
	MaxVectorSize int
	// FloatPrecision is the number of significant digits for floats. Zero
	// prints the shortest text that reads back to the same value.
	FloatPrecision int
}

// DefaultPrintOptions returns compact output with no truncation and
// shortest float formatting.
func DefaultPrintOptions() PrintOptions {
	return PrintOptions{}
}

// maxWalkDepth bounds table nesting so a buffer with cyclic offsets fails
// instead of recursing forever.
const maxWalkDepth = 256

// Print renders buf, a finished message whose root table is root, as text.
// A nil buf renders as null. It panics if root is nil.
func Print(buf []byte, root *schema.Object, opts PrintOptions) (string, error) {
	var sb strings.Builder
	if err := WriteText(&sb, buf, root, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteText renders buf like Print, streaming the text to w.
func WriteText(w io.Writer, buf []byte, root *schema.Object, opts PrintOptions) error {
	if root == nil {
		panic("codec: nil root type")
	}
	if buf == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	tv := newTextVisitor(w, opts)
	if err := Walk(buf, root, truncate(tv, opts.MaxVectorSize)); err != nil {
		return err
	}
	return tv.err
}

// Walk traverses the message in buf field by field in schema order and
// reports every present value to v. Absent table fields are skipped.
// Reads past the end of a damaged buffer are reported as a MalformedBuffer
// error.
func Walk(buf []byte, root *schema.Object, v Visitor) (err error) {
	if root == nil {
		panic("codec: nil root type")
	}
	if root.IsStruct {
		return newError(UnsupportedRoot, "", "root type %s is a struct", root.Name)
	}
	if len(buf) < flatbuffers.SizeUOffsetT {
		return newError(MalformedBuffer, "", "buffer of %d bytes has no root offset", len(buf))
	}

	defer func() {
		if r := recover(); r != nil {
			err = newError(MalformedBuffer, "", "%v", r)
		}
	}()

	w := walker{v: v, buf: buf}
	w.table(flatbuffers.GetUOffsetT(buf), root, 0)
	return nil
}

type walker struct {
	v   Visitor
	buf []byte
}

func (w *walker) table(pos flatbuffers.UOffsetT, obj *schema.Object, depth int) {
	if depth > maxWalkDepth {
		panic("tables nested too deeply")
	}
	tab := flatbuffers.Table{Bytes: w.buf, Pos: pos}

	w.v.StartObject()
	for i, f := range obj.Fields {
		o := flatbuffers.UOffsetT(tab.Offset(flatbuffers.VOffsetT(4 + 2*i)))
		if o == 0 {
			continue
		}
		w.v.Field(f.Name)
		at := tab.Pos + o

		switch f.Type.BaseType {
		case schema.String:
			w.v.String(tab.String(at))
		case schema.Vector:
			w.vector(&tab, o, f, depth)
		case schema.Obj:
			if f.Type.Object.IsStruct {
				w.structValue(at, f.Type.Object)
			} else {
				w.table(tab.Indirect(at), f.Type.Object, depth+1)
			}
		default:
			w.scalar(at, f.Type.BaseType, f.Type.Enum)
		}
	}
	w.v.EndObject()
}

func (w *walker) vector(tab *flatbuffers.Table, o flatbuffers.UOffsetT, f *schema.Field, depth int) {
	n := tab.VectorLen(o)
	start := tab.Vector(o)
	elem := f.Type.Element

	if !w.v.StartVector(n, elem == schema.Obj) {
		w.v.EndVector()
		return
	}
	for i := 0; i < n; i++ {
		switch {
		case elem == schema.String:
			w.v.String(tab.String(start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)))
		case elem == schema.Obj && f.Type.Object.IsStruct:
			w.structValue(start+flatbuffers.UOffsetT(i*f.Type.Object.ByteSize), f.Type.Object)
		case elem == schema.Obj:
			at := start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)
			w.table(tab.Indirect(at), f.Type.Object, depth+1)
		default:
			w.scalar(start+flatbuffers.UOffsetT(i*elem.Size()), elem, f.Type.Enum)
		}
	}
	w.v.EndVector()
}

func (w *walker) structValue(pos flatbuffers.UOffsetT, obj *schema.Object) {
	w.v.StartObject()
	for _, f := range obj.Fields {
		w.v.Field(f.Name)
		at := pos + flatbuffers.UOffsetT(f.Offset)
		if f.Type.BaseType == schema.Obj {
			w.structValue(at, f.Type.Object)
		} else {
			w.scalar(at, f.Type.BaseType, f.Type.Enum)
		}
	}
	w.v.EndObject()
}

func (w *walker) scalar(pos flatbuffers.UOffsetT, base schema.BaseType, enum *schema.Enum) {
	tab := flatbuffers.Table{Bytes: w.buf}

	var (
		i        int64
		u        uint64
		unsigned bool
	)
	switch base {
	case schema.Bool:
		w.v.Bool(tab.GetUint8(pos) != 0)
		return
	case schema.Float:
		w.v.Float(float64(tab.GetFloat32(pos)), 32)
		return
	case schema.Double:
		w.v.Float(tab.GetFloat64(pos), 64)
		return
	case schema.Byte:
		i = int64(tab.GetInt8(pos))
	case schema.UByte:
		i = int64(tab.GetUint8(pos))
	case schema.Short:
		i = int64(tab.GetInt16(pos))
	case schema.UShort:
		i = int64(tab.GetUint16(pos))
	case schema.Int:
		i = int64(tab.GetInt32(pos))
	case schema.UInt:
		i = int64(tab.GetUint32(pos))
	case schema.Long:
		i = tab.GetInt64(pos)
	case schema.ULong:
		u = tab.GetUint64(pos)
		i = int64(u)
		unsigned = true
	default:
		panic("codec: " + base.String() + " is not a scalar type")
	}

	if enum != nil {
		if name, ok := enum.NameOf(i); ok {
			w.v.Enum(name)
			return
		}
	}
	if unsigned {
		w.v.Uint(u)
		return
	}
	w.v.Int(i)
}
