package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/flatjson/pkg/codec"
)

// DefaultLogFileName is used when MessageLogConfig.FileName is empty.
const DefaultLogFileName = "messages.log"

// MessageLog is an append-only file of framed FlatBuffers messages.
type MessageLog struct {
	config   MessageLogConfig
	writer   *LogWriter
	reader   *LogReader
	index    *TypeIndex
	dataFile string
	mutex    sync.Mutex
	isOpen   bool
}

// OpenMessageLog opens the log in config.DataDir, truncating any damaged
// tail left by a crash, and indexes the surviving records by type.
func OpenMessageLog(config MessageLogConfig) (*MessageLog, *RecoveryResult, error) {
	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	name := config.FileName
	if name == "" {
		name = DefaultLogFileName
	}
	ml := &MessageLog{
		config:   config,
		dataFile: filepath.Join(config.DataDir, name),
		index:    NewTypeIndex(),
	}

	recovery, err := validateLogFile(ml.dataFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate log: %w", err)
	}

	writer, err := NewLogWriter(LogWriterConfig{
		FilePath:      ml.dataFile,
		FsyncInterval: config.FsyncInterval,
		BufferSize:    64 * 1024,
	})
	if err != nil {
		return nil, nil, err
	}
	ml.writer = writer

	reader, err := NewLogReader(LogReaderConfig{FilePath: ml.dataFile})
	if err != nil {
		_ = writer.Close()
		return nil, nil, err
	}
	ml.reader = reader

	if err := ml.index.BuildFromLog(reader); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, nil, fmt.Errorf("failed to index log: %w", err)
	}
	recovery.IndexRebuilt = true

	ml.isOpen = true
	return ml, recovery, nil
}

// Append writes a finished message under its root type name and returns
// the record offset.
func (ml *MessageLog) Append(typeName string, message []byte) (int64, error) {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return 0, ErrClosed
	}

	offset, err := ml.writer.Append(typeName, message)
	if err != nil {
		return 0, err
	}
	ml.index.Add(typeName, offset)
	return offset, nil
}

// ReadAt returns the record starting at offset.
func (ml *MessageLog) ReadAt(offset int64) (*codec.Record, error) {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return nil, ErrClosed
	}
	if offset < 0 || offset >= ml.writer.Size() {
		return nil, ErrRecordNotFound
	}
	if err := ml.writer.Flush(); err != nil {
		return nil, err
	}
	return ml.reader.ReadAt(offset)
}

// Offsets returns the offsets of every record of typeName in log order.
func (ml *MessageLog) Offsets(typeName string) []int64 {
	return ml.index.Offsets(typeName)
}

// Types returns the root type names present in the log.
func (ml *MessageLog) Types() []string {
	return ml.index.Types()
}

// Iterator returns an iterator over every record currently in the log. The
// caller must Close it.
func (ml *MessageLog) Iterator() (RecordIterator, error) {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return nil, ErrClosed
	}
	if err := ml.writer.Flush(); err != nil {
		return nil, err
	}

	reader, err := NewLogReader(LogReaderConfig{FilePath: ml.dataFile})
	if err != nil {
		return nil, err
	}
	return &logRecordIterator{reader: reader, owned: true}, nil
}

// Sync flushes and fsyncs outstanding records.
func (ml *MessageLog) Sync() error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return ErrClosed
	}
	return ml.writer.Sync()
}

// Path returns the log file path.
func (ml *MessageLog) Path() string {
	return ml.dataFile
}

// Close shuts down the log
func (ml *MessageLog) Close() error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return nil
	}
	ml.isOpen = false

	werr := ml.writer.Close()
	rerr := ml.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Stats returns log statistics
func (ml *MessageLog) Stats() *LogStats {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if !ml.isOpen {
		return &LogStats{Types: map[string]int{}}
	}
	return &LogStats{
		Records:  ml.index.Size(),
		Types:    ml.index.Counts(),
		DataSize: ml.writer.Size(),
	}
}

// validateLogFile reads the log front to back and truncates it at the
// first record that fails to decode or checksum.
func validateLogFile(filePath string) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{RecoveryTime: time.Since(startTime)}, nil
		}
		return nil, err
	}
	fileSizeBefore := fileInfo.Size()

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var recordsValidated int64
	var lastValidOffset int64
	var corruptionFound bool

	for {
		_, err := reader.ReadNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, ErrCorruption) {
				return nil, err
			}
			corruptionFound = true
			break
		}
		recordsValidated++
		lastValidOffset = reader.Offset()
	}

	result := &RecoveryResult{
		RecordsValidated: recordsValidated,
		FileSizeBefore:   fileSizeBefore,
		FileSizeAfter:    fileSizeBefore,
	}

	if corruptionFound {
		if err := os.Truncate(filePath, lastValidOffset); err != nil {
			return nil, fmt.Errorf("failed to truncate log: %w", err)
		}
		result.FileSizeAfter = lastValidOffset
		// everything past the last good record is one torn write
		result.RecordsTruncated = 1
	}

	result.RecoveryTime = time.Since(startTime)
	return result, nil
}
