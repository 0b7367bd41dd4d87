package store

import (
	"time"

	"github.com/ssargent/flatjson/pkg/codec"
)

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the log file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the log file
	StartOffset int64  // Offset to start reading from
}

// MessageLogConfig holds configuration for the message log
type MessageLogConfig struct {
	DataDir       string        // Directory for the log file
	FileName      string        // Log file name, defaults to messages.log
	FsyncInterval time.Duration // Fsync interval for durability
}

// RecoveryResult describes what OpenMessageLog found while validating the log.
type RecoveryResult struct {
	RecordsValidated int64
	RecordsTruncated int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	IndexRebuilt     bool
	RecoveryTime     time.Duration
}

// LogStats holds statistics about the message log
type LogStats struct {
	Records  int
	Types    map[string]int
	DataSize int64
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *codec.Record
	Offset() int64
	Err() error
	Close() error
}

// Errors
var (
	ErrCorruption     = &LogError{"data corruption detected"}
	ErrClosed         = &LogError{"message log is closed"}
	ErrRecordNotFound = &LogError{"record not found"}
)

// LogError represents a message log error
type LogError struct {
	Message string
}

func (e *LogError) Error() string {
	return e.Message
}
