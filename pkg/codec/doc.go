// Package codec converts between a JSON-like text format and FlatBuffers
// messages, driven by a schema loaded at runtime.
//
// No generated code is involved: the same Encoder and printer serve every
// table described by a schema.Schema, which lets generic tools such as a
// config loader or a log printer handle any message type.
//
// # Encoding
//
// Encode pulls tokens from the tokenizer and keeps an explicit stack of
// frames, one per open object. Scalars and strings are resolved against the
// current field as they arrive; tables, structs and vectors are committed
// to the builder only when their closing bracket is seen, because a
// FlatBuffers parent can only reference children that are already written.
//
//	buf, err := codec.Encode(`{ "name": "sensor-7", "samples": [1, 2, 3] }`, s.RootTable(), codec.EncodeOptions{})
//	if errors.Is(err, codec.ErrUnknownField) {
//	    // the text names a field the schema does not declare
//	}
//
// Integer literals are parsed exactly at 128 bits and then narrowed to the
// field width with Go conversion semantics, so 255 stored in a byte field
// reads back as -1. Enum fields take either a symbol name or a raw number;
// numbers outside the named set are kept as is. Struct values must set
// every field. Setting a table field twice is an error.
//
// # Printing
//
// Print walks a finished buffer in schema field order and renders it as
// text through a Visitor. Absent table fields are omitted. Enum values
// print as their quoted symbol when one exists, NaN prints as nan and
// infinities as inf and -inf, all of which Encode reads back.
//
//	text, err := codec.Print(buf, s.RootTable(), codec.PrintOptions{MultiLine: true, MaxVectorSize: 100})
//
// Vectors longer than MaxVectorSize print as [ "... N elements ..." ] and
// their contents are never read.
//
// # Record Format
//
// Messages stored in the message log and the archive are framed as
//
//	[CRC32(4)][TypeSize(4)][MessageSize(4)][Timestamp(8)][TypeName][Message]
//
// with all integers little-endian. The checksum covers everything after the
// CRC32 field.
//
// # Thread Safety
//
// Encoder, RecordCodec and schemas are safe for concurrent use. Each Encode
// call owns its builder and frame stack, and finished buffers are never
// modified.
package codec
