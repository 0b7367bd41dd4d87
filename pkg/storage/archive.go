package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/flatjson/pkg/codec"
)

// ErrNotFound is returned when no archived message has the requested id.
var ErrNotFound = errors.New("archived message not found")

// Entry is one archived message with its id.
type Entry struct {
	ID     ksuid.KSUID
	Record *codec.Record
}

// Archive stores framed messages in pebble keyed by KSUID, so keys sort by
// creation time. Ids handed out by one Archive are strictly increasing.
type Archive struct {
	db    *pebble.DB
	codec *codec.RecordCodec
	mutex sync.Mutex
	last  ksuid.KSUID
}

// NewArchive opens or creates an archive at path.
func NewArchive(path string) (*Archive, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return &Archive{db: db, codec: codec.NewRecordCodec()}, nil
}

// Put frames message under typeName and stores it under a new id.
func (a *Archive) Put(typeName string, message []byte) (ksuid.KSUID, error) {
	data, err := a.codec.Encode(typeName, message)
	if err != nil {
		return ksuid.Nil, err
	}

	id := a.nextID()
	if err := a.db.Set(id.Bytes(), data, pebble.NoSync); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

func (a *Archive) nextID() ksuid.KSUID {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	id := ksuid.New()
	if ksuid.Compare(id, a.last) <= 0 {
		id = a.last.Next()
	}
	a.last = id
	return id
}

// Get returns the archived record for id.
func (a *Archive) Get(id ksuid.KSUID) (*codec.Record, error) {
	data, closer, err := a.db.Get(id.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// pebble owns data until closer is closed
	return a.decode(append([]byte(nil), data...))
}

// Delete removes an archived message. Deleting a missing id is not an error.
func (a *Archive) Delete(id ksuid.KSUID) error {
	return a.db.Delete(id.Bytes(), pebble.NoSync)
}

// List returns up to limit archived messages, oldest first. A limit of zero
// or less returns everything.
func (a *Archive) List(limit int) ([]Entry, error) {
	iter, err := a.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for valid := iter.First(); valid; valid = iter.Next() {
		if limit > 0 && len(entries) >= limit {
			break
		}

		id, err := ksuid.FromBytes(iter.Key())
		if err != nil {
			return nil, fmt.Errorf("bad archive key: %w", err)
		}
		record, err := a.decode(append([]byte(nil), iter.Value()...))
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", id, err)
		}
		entries = append(entries, Entry{ID: id, Record: record})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Flush forces buffered writes to disk.
func (a *Archive) Flush() error {
	return a.db.Flush()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) decode(data []byte) (*codec.Record, error) {
	record, err := a.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}
