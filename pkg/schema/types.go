package schema

import (
	"fmt"
	"sort"
)

// BaseType is the elementary type of a field, independent of the table or
// struct the field belongs to.
type BaseType uint8

const (
	None BaseType = iota
	Bool
	Byte
	UByte
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	String
	Vector
	Obj
)

var baseTypeNames = [...]string{
	None:   "none",
	Bool:   "bool",
	Byte:   "byte",
	UByte:  "ubyte",
	Short:  "short",
	UShort: "ushort",
	Int:    "int",
	UInt:   "uint",
	Long:   "long",
	ULong:  "ulong",
	Float:  "float",
	Double: "double",
	String: "string",
	Vector: "vector",
	Obj:    "obj",
}

func (t BaseType) String() string {
	if int(t) < len(baseTypeNames) {
		return baseTypeNames[t]
	}
	return fmt.Sprintf("BaseType(%d)", t)
}

// Size returns the inline size in bytes of a value of this type. Strings,
// vectors and tables are stored inline as 4-byte offsets.
func (t BaseType) Size() int {
	switch t {
	case Bool, Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Long, ULong, Double:
		return 8
	case String, Vector, Obj:
		return 4
	default:
		return 0
	}
}

// IsScalar reports whether values of this type are stored inline as a
// fixed-width number.
func (t BaseType) IsScalar() bool {
	return t >= Bool && t <= Double
}

// IsInteger reports whether t is an integer type. Bool counts as a one-byte
// integer.
func (t BaseType) IsInteger() bool {
	return t >= Bool && t <= ULong
}

// IsFloat reports whether t is a floating point type.
func (t BaseType) IsFloat() bool {
	return t == Float || t == Double
}

// IsUnsigned reports whether t is an unsigned integer type.
func (t BaseType) IsUnsigned() bool {
	switch t {
	case Bool, UByte, UShort, UInt, ULong:
		return true
	}
	return false
}

// Type describes the type of one field.
type Type struct {
	BaseType BaseType
	// Element is the element type when BaseType is Vector.
	Element BaseType
	// Object is the referenced table or struct for Obj fields and vectors of
	// Obj.
	Object *Object
	// Enum is set for enum-typed scalars and vectors of enums.
	Enum *Enum
}

// Field is one field of a table or struct.
type Field struct {
	Name  string
	Index int
	Type  Type
	// Offset is the byte offset of the field inside a struct's inline
	// layout. Unused for table fields.
	Offset int

	DefaultInteger int64
	DefaultReal    float64
}

// InlineSize is the number of bytes the field occupies inline in its
// parent.
func (f *Field) InlineSize() int {
	if f.Type.BaseType == Obj && f.Type.Object.IsStruct {
		return f.Type.Object.ByteSize
	}
	return f.Type.BaseType.Size()
}

// InlineAlignment is the alignment the field requires inline in its parent.
func (f *Field) InlineAlignment() int {
	if f.Type.BaseType == Obj && f.Type.Object.IsStruct {
		return f.Type.Object.MinAlign
	}
	return f.Type.BaseType.Size()
}

// Object is a table or struct definition.
type Object struct {
	Name     string
	Fields   []*Field
	IsStruct bool
	// ByteSize and MinAlign describe the inline layout of a struct.
	ByteSize int
	MinAlign int

	byName map[string]int
}

func (o *Object) field(i int) *Field {
	if i < 0 || i >= len(o.Fields) {
		panic(fmt.Sprintf("schema: field index %d out of range for %s (%d fields)", i, o.Name, len(o.Fields)))
	}
	return o.Fields[i]
}

// Field returns the field at index i. It panics if i is out of range.
func (o *Object) Field(i int) *Field { return o.field(i) }

// FieldIndex looks a field up by name.
func (o *Object) FieldIndex(name string) (int, bool) {
	i, ok := o.byName[name]
	return i, ok
}

func (o *Object) FieldName(i int) string { return o.field(i).Name }

// FieldElementaryType returns the base type of field i. For vectors this is
// Vector; see FieldElementType for the element.
func (o *Object) FieldElementaryType(i int) BaseType { return o.field(i).Type.BaseType }

// FieldElementType returns the element type of a vector field.
func (o *Object) FieldElementType(i int) BaseType { return o.field(i).Type.Element }

func (o *Object) FieldIsRepeating(i int) bool { return o.field(i).Type.BaseType == Vector }

func (o *Object) FieldIsEnum(i int) bool { return o.field(i).Type.Enum != nil }

// FieldType returns the nested table or struct of field i, or nil when the
// field does not reference one.
func (o *Object) FieldType(i int) *Object { return o.field(i).Type.Object }

func (o *Object) FieldEnum(i int) *Enum { return o.field(i).Type.Enum }

func (o *Object) NumberOfFields() int { return len(o.Fields) }

func (o *Object) IsTable() bool { return !o.IsStruct }

// InlineSize is the size of a value of this type stored inline in a parent:
// the full layout for structs, an offset for tables.
func (o *Object) InlineSize() int {
	if o.IsStruct {
		return o.ByteSize
	}
	return 4
}

// Alignment is the inline alignment of a value of this type.
func (o *Object) Alignment() int {
	if o.IsStruct {
		return o.MinAlign
	}
	return 4
}

func (o *Object) StructFieldOffset(i int) int { return o.field(i).Offset }

func (o *Object) FieldInlineSize(i int) int { return o.field(i).InlineSize() }

func (o *Object) FieldInlineAlignment(i int) int { return o.field(i).InlineAlignment() }

// EnumVal is one named value of an enum.
type EnumVal struct {
	Name  string
	Value int64
}

// Enum is a named set of integer constants. Values of ulong enums are
// stored as their two's complement int64 bit pattern.
type Enum struct {
	Name       string
	Underlying BaseType
	// Values is sorted by value.
	Values []EnumVal

	byName map[string]int64
}

// Value resolves a symbol to its integer value.
func (e *Enum) Value(name string) (int64, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// NameOf returns the symbol for value, if the enum declares one.
func (e *Enum) NameOf(value int64) (string, bool) {
	i := sort.Search(len(e.Values), func(i int) bool { return e.Values[i].Value >= value })
	if i < len(e.Values) && e.Values[i].Value == value {
		return e.Values[i].Name, true
	}
	return "", false
}

// Schema is a resolved set of types. It is immutable once loaded and safe
// for concurrent use.
type Schema struct {
	Objects []*Object
	Enums   []*Enum
	Root    *Object

	objects map[string]*Object
	enums   map[string]*Enum
}

// Object looks up a table or struct by name.
func (s *Schema) Object(name string) (*Object, bool) {
	o, ok := s.objects[name]
	return o, ok
}

// Enum looks up an enum by name.
func (s *Schema) Enum(name string) (*Enum, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// RootTable returns the schema's declared root table, or nil.
func (s *Schema) RootTable() *Object {
	return s.Root
}

// Tables returns the names of all tables in declaration order.
func (s *Schema) Tables() []string {
	var names []string
	for _, o := range s.Objects {
		if o.IsTable() {
			names = append(names, o.Name)
		}
	}
	return names
}
