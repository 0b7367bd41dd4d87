package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// RecordHeaderSize is the fixed part of an encoded record:
// CRC32(4) + TypeSize(4) + MessageSize(4) + Timestamp(8).
const RecordHeaderSize = 20

// Record is one framed message: the name of its root table and the
// finished buffer.
type Record struct {
	CRC32       uint32 // CRC32 checksum for integrity
	TypeSize    uint32 // Size of the type name in bytes
	MessageSize uint32 // Size of the message in bytes
	Timestamp   uint64 // Unix timestamp in nanoseconds
	TypeName    []byte // Root table name
	Message     []byte // Finished FlatBuffers message
}

// RecordCodec frames messages for the message log and the archive.
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// Encode frames a message with its type name.
// Format: [CRC32(4)][TypeSize(4)][MessageSize(4)][Timestamp(8)][TypeName][Message]
func (c *RecordCodec) Encode(typeName string, message []byte) ([]byte, error) {
	r, err := NewRecord(typeName, message)
	if err != nil {
		return nil, err
	}
	return r.Marshal(), nil
}

// Marshal writes the record in its binary form, computing the checksum.
func (r *Record) Marshal() []byte {
	r.CRC32 = r.calculateCRC32()

	buf := make([]byte, r.Size())
	binary.LittleEndian.PutUint32(buf[0:], r.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], r.TypeSize)
	binary.LittleEndian.PutUint32(buf[8:], r.MessageSize)
	binary.LittleEndian.PutUint64(buf[12:], r.Timestamp)
	copy(buf[RecordHeaderSize:], r.TypeName)
	copy(buf[RecordHeaderSize+r.TypeSize:], r.Message)
	return buf
}

// Decode parses a binary record. The returned record aliases data.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	if len(data) < RecordHeaderSize {
		return nil, fmt.Errorf("data too short for record header")
	}

	r := &Record{}
	r.CRC32 = binary.LittleEndian.Uint32(data[0:4])
	r.TypeSize = binary.LittleEndian.Uint32(data[4:8])
	r.MessageSize = binary.LittleEndian.Uint32(data[8:12])
	r.Timestamp = binary.LittleEndian.Uint64(data[12:20])

	total := uint64(RecordHeaderSize) + uint64(r.TypeSize) + uint64(r.MessageSize)
	if uint64(len(data)) < total {
		return nil, fmt.Errorf("data too short for type/message sizes: %d < %d", len(data), total)
	}

	end := RecordHeaderSize + r.TypeSize
	r.TypeName = data[RecordHeaderSize:end]
	r.Message = data[end : end+r.MessageSize]
	return r, nil
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if sum := r.calculateCRC32(); r.CRC32 != sum {
		return fmt.Errorf("CRC32 mismatch: %d != %d", r.CRC32, sum)
	}
	return nil
}

// Size returns the total size of the record when encoded
func (r *Record) Size() int {
	return RecordHeaderSize + len(r.TypeName) + len(r.Message)
}

// Time returns the record timestamp.
func (r *Record) Time() time.Time {
	return time.Unix(0, int64(r.Timestamp)).UTC()
}

// NewRecord creates a new record with the current timestamp.
func NewRecord(typeName string, message []byte) (*Record, error) {
	if typeName == "" {
		return nil, fmt.Errorf("record type name is empty")
	}
	if uint64(len(typeName)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("type name too large")
	}
	if uint64(len(message)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("message too large: %d bytes", len(message))
	}
	return &Record{
		TypeSize:    uint32(len(typeName)),
		MessageSize: uint32(len(message)),
		Timestamp:   uint64(time.Now().UnixNano()),
		TypeName:    []byte(typeName),
		Message:     message,
	}, nil
}

// calculateCRC32 covers every field except the checksum itself.
func (r *Record) calculateCRC32() uint32 {
	var header [16]byte
	binary.LittleEndian.PutUint32(header[0:], r.TypeSize)
	binary.LittleEndian.PutUint32(header[4:], r.MessageSize)
	binary.LittleEndian.PutUint64(header[8:], r.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(header[:])
	crc.Write(r.TypeName)
	crc.Write(r.Message)
	return crc.Sum32()
}
