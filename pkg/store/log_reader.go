package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ssargent/flatjson/pkg/codec"
)

// LogReader provides sequential access to records in a log file
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.RecordCodec
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		codec:  codec.NewRecordCodec(),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the record at the current offset. It returns io.EOF at a
// clean end of file and ErrCorruption for a torn or damaged record.
func (r *LogReader) ReadNext() (*codec.Record, error) {
	record, n, err := readRecord(r.reader, r.codec)
	if err != nil {
		return nil, err
	}
	r.offset += n
	return record, nil
}

// ReadAt reads the record at offset without moving the sequential cursor.
func (r *LogReader) ReadAt(offset int64) (*codec.Record, error) {
	section := io.NewSectionReader(r.file, offset, 1<<62)
	record, _, err := readRecord(section, r.codec)
	if errors.Is(err, io.EOF) {
		return nil, ErrRecordNotFound
	}
	return record, err
}

// readRecord reads one framed record and reports how many bytes it took.
func readRecord(src io.Reader, c *codec.RecordCodec) (*codec.Record, int64, error) {
	header := make([]byte, codec.RecordHeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, ErrCorruption
		}
		return nil, 0, err
	}

	typeSize := binary.LittleEndian.Uint32(header[4:8])
	messageSize := binary.LittleEndian.Uint32(header[8:12])
	dataSize := uint64(typeSize) + uint64(messageSize)
	if typeSize == 0 || dataSize > maxRecordData {
		return nil, 0, ErrCorruption
	}

	full := make([]byte, uint64(codec.RecordHeaderSize)+dataSize)
	copy(full, header)
	if _, err := io.ReadFull(src, full[codec.RecordHeaderSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, ErrCorruption
		}
		return nil, 0, err
	}

	record, err := c.Decode(full)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	if err := record.Validate(); err != nil {
		return nil, 0, ErrCorruption
	}
	return record, int64(len(full)), nil
}

// maxRecordData bounds the allocation for a single record so a damaged
// size field cannot exhaust memory.
const maxRecordData = 1 << 30

// SeekTo moves the reader to offset, which must be a record boundary
func (r *LogReader) SeekTo(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.reader.Reset(r.file)
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining records. The
// iterator does not own the reader.
func (r *LogReader) Iterator() RecordIterator {
	return &logRecordIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

type logRecordIterator struct {
	reader *LogReader
	record *codec.Record
	offset int64
	err    error
	owned  bool
}

func (it *logRecordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.offset = it.reader.Offset()
	it.record, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *logRecordIterator) Record() *codec.Record {
	return it.record
}

// Offset returns where the current record starts.
func (it *logRecordIterator) Offset() int64 {
	return it.offset
}

// Err returns the error that stopped iteration; a clean end is not an error.
func (it *logRecordIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *logRecordIterator) Close() error {
	if it.owned {
		return it.reader.Close()
	}
	return nil
}
