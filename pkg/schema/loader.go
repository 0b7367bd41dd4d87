package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML form of a schema.
//
//	root_type: Configuration
//	enums:
//	  - name: Color
//	    type: byte
//	    values:
//	      - name: Red
//	      - name: Green
//	structs:
//	  - name: Vec3
//	    fields:
//	      - { name: x, type: float }
//	tables:
//	  - name: Configuration
//	    fields:
//	      - { name: color, type: Color, default: Green }
//	      - { name: points, type: "[Vec3]" }
type document struct {
	RootType string      `yaml:"root_type"`
	Enums    []enumDef   `yaml:"enums"`
	Structs  []objectDef `yaml:"structs"`
	Tables   []objectDef `yaml:"tables"`
}

type enumDef struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Values []enumValueDef `yaml:"values"`
}

type enumValueDef struct {
	Name  string `yaml:"name"`
	Value *int64 `yaml:"value"`
}

type objectDef struct {
	Name   string     `yaml:"name"`
	Fields []fieldDef `yaml:"fields"`
}

type fieldDef struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default string `yaml:"default"`
}

var scalarNames = map[string]BaseType{
	"bool":    Bool,
	"byte":    Byte,
	"int8":    Byte,
	"ubyte":   UByte,
	"uint8":   UByte,
	"short":   Short,
	"int16":   Short,
	"ushort":  UShort,
	"uint16":  UShort,
	"int":     Int,
	"int32":   Int,
	"uint":    UInt,
	"uint32":  UInt,
	"long":    Long,
	"int64":   Long,
	"ulong":   ULong,
	"uint64":  ULong,
	"float":   Float,
	"float32": Float,
	"double":  Double,
	"float64": Double,
	"string":  String,
}

// Load reads and resolves a YAML schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Parse resolves a YAML schema document. Every problem found is reported;
// the returned error combines them.
func Parse(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty schema document")
		}
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return build(&doc)
}

type pendingObject struct {
	object *Object
	def    objectDef
}

type resolver struct {
	s   *Schema
	err error
}

func (r *resolver) fail(format string, args ...any) {
	r.err = multierr.Append(r.err, fmt.Errorf(format, args...))
}

func build(doc *document) (*Schema, error) {
	r := &resolver{s: &Schema{
		objects: make(map[string]*Object),
		enums:   make(map[string]*Enum),
	}}

	for _, def := range doc.Enums {
		r.declareEnum(def)
	}

	var pending []pendingObject
	for _, def := range doc.Structs {
		if o := r.declareObject(def, true); o != nil {
			pending = append(pending, pendingObject{o, def})
		}
	}
	for _, def := range doc.Tables {
		if o := r.declareObject(def, false); o != nil {
			pending = append(pending, pendingObject{o, def})
		}
	}

	for _, p := range pending {
		r.resolveFields(p.object, p.def)
	}

	state := make(map[*Object]int)
	for _, p := range pending {
		if p.object.IsStruct {
			if err := layoutStruct(p.object, state); err != nil {
				r.fail("%v", err)
			}
		}
	}

	if doc.RootType != "" {
		root, ok := r.s.objects[doc.RootType]
		switch {
		case !ok:
			r.fail("root_type %q is not defined", doc.RootType)
		case root.IsStruct:
			r.fail("root_type %q must be a table, not a struct", doc.RootType)
		default:
			r.s.Root = root
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return r.s, nil
}

func (r *resolver) nameTaken(name string) bool {
	_, isObject := r.s.objects[name]
	_, isEnum := r.s.enums[name]
	_, isScalar := scalarNames[name]
	return isObject || isEnum || isScalar
}

func (r *resolver) declareEnum(def enumDef) {
	if def.Name == "" {
		r.fail("enum without a name")
		return
	}
	if r.nameTaken(def.Name) {
		r.fail("enum %s: name already defined", def.Name)
		return
	}
	underlying, ok := scalarNames[def.Type]
	if !ok || !underlying.IsInteger() || underlying == Bool {
		r.fail("enum %s: underlying type %q must be an integer type", def.Name, def.Type)
		return
	}

	e := &Enum{
		Name:       def.Name,
		Underlying: underlying,
		byName:     make(map[string]int64, len(def.Values)),
	}
	next := int64(0)
	for _, v := range def.Values {
		if v.Value != nil {
			next = *v.Value
		}
		if _, dup := e.byName[v.Name]; dup {
			r.fail("enum %s: duplicate value name %q", def.Name, v.Name)
			continue
		}
		e.byName[v.Name] = next
		e.Values = append(e.Values, EnumVal{Name: v.Name, Value: next})
		next++
	}
	sort.SliceStable(e.Values, func(i, j int) bool { return e.Values[i].Value < e.Values[j].Value })

	r.s.enums[e.Name] = e
	r.s.Enums = append(r.s.Enums, e)
}

func (r *resolver) declareObject(def objectDef, isStruct bool) *Object {
	if def.Name == "" {
		r.fail("object without a name")
		return nil
	}
	if r.nameTaken(def.Name) {
		r.fail("%s: name already defined", def.Name)
		return nil
	}
	o := &Object{
		Name:     def.Name,
		IsStruct: isStruct,
		byName:   make(map[string]int, len(def.Fields)),
	}
	r.s.objects[o.Name] = o
	r.s.Objects = append(r.s.Objects, o)
	return o
}

func (r *resolver) resolveFields(o *Object, def objectDef) {
	if o.IsStruct && len(def.Fields) == 0 {
		r.fail("struct %s: structs must declare at least one field", o.Name)
	}
	for _, fd := range def.Fields {
		if fd.Name == "" {
			r.fail("%s: field without a name", o.Name)
			continue
		}
		if _, dup := o.byName[fd.Name]; dup {
			r.fail("%s.%s: duplicate field", o.Name, fd.Name)
			continue
		}
		t, err := r.parseType(fd.Type)
		if err != nil {
			r.fail("%s.%s: %v", o.Name, fd.Name, err)
			continue
		}
		if o.IsStruct && !t.BaseType.IsScalar() && !(t.BaseType == Obj && t.Object.IsStruct) {
			r.fail("%s.%s: struct fields must be scalars, enums or structs, not %s", o.Name, fd.Name, fd.Type)
			continue
		}

		f := &Field{Name: fd.Name, Index: len(o.Fields), Type: t}
		if err := parseDefault(f, fd.Default); err != nil {
			r.fail("%s.%s: %v", o.Name, fd.Name, err)
			continue
		}
		o.byName[f.Name] = f.Index
		o.Fields = append(o.Fields, f)
	}
}

func (r *resolver) parseType(decl string) (Type, error) {
	decl = strings.TrimSpace(decl)
	if strings.HasPrefix(decl, "[") {
		if !strings.HasSuffix(decl, "]") {
			return Type{}, fmt.Errorf("malformed vector type %q", decl)
		}
		inner := strings.TrimSpace(decl[1 : len(decl)-1])
		if strings.HasPrefix(inner, "[") {
			return Type{}, fmt.Errorf("vectors of vectors are not supported")
		}
		elem, err := r.parseType(inner)
		if err != nil {
			return Type{}, err
		}
		return Type{BaseType: Vector, Element: elem.BaseType, Object: elem.Object, Enum: elem.Enum}, nil
	}
	if bt, ok := scalarNames[decl]; ok {
		return Type{BaseType: bt}, nil
	}
	if e, ok := r.s.enums[decl]; ok {
		return Type{BaseType: e.Underlying, Enum: e}, nil
	}
	if o, ok := r.s.objects[decl]; ok {
		return Type{BaseType: Obj, Object: o}, nil
	}
	return Type{}, fmt.Errorf("unknown type %q", decl)
}

func parseDefault(f *Field, raw string) error {
	if raw == "" {
		return nil
	}
	t := f.Type
	if !t.BaseType.IsScalar() {
		return fmt.Errorf("default values are only supported on scalar fields")
	}
	if t.Enum != nil {
		if v, ok := t.Enum.Value(raw); ok {
			f.DefaultInteger = v
			return nil
		}
	}
	switch {
	case t.BaseType == Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool default %q", raw)
		}
		if b {
			f.DefaultInteger = 1
		}
	case t.BaseType.IsFloat():
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s default %q", t.BaseType, raw)
		}
		f.DefaultReal = v
	case t.BaseType.IsUnsigned():
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid %s default %q", t.BaseType, raw)
		}
		f.DefaultInteger = int64(v)
	default:
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid %s default %q", t.BaseType, raw)
		}
		f.DefaultInteger = v
	}
	return nil
}

const (
	layoutVisiting = 1
	layoutDone     = 2
)

// layoutStruct assigns each struct field its natural alignment and rounds
// the struct size up to its largest alignment.
func layoutStruct(o *Object, state map[*Object]int) error {
	switch state[o] {
	case layoutDone:
		return nil
	case layoutVisiting:
		return fmt.Errorf("struct %s contains itself", o.Name)
	}
	state[o] = layoutVisiting

	offset, align := 0, 1
	for _, f := range o.Fields {
		if f.Type.BaseType == Obj {
			if err := layoutStruct(f.Type.Object, state); err != nil {
				return err
			}
		}
		a := f.InlineAlignment()
		offset = alignUp(offset, a)
		f.Offset = offset
		offset += f.InlineSize()
		if a > align {
			align = a
		}
	}
	o.MinAlign = align
	o.ByteSize = alignUp(offset, align)

	state[o] = layoutDone
	return nil
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
