package storage

import (
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := NewArchive(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func TestArchive_PutGet(t *testing.T) {
	archive := newTestArchive(t)

	id, err := archive.Put("Configuration", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.NotEqual(t, ksuid.Nil, id)

	record, err := archive.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Configuration", string(record.TypeName))
	assert.Equal(t, []byte{1, 2, 3}, record.Message)
}

func TestArchive_GetMissing(t *testing.T) {
	archive := newTestArchive(t)

	_, err := archive.Get(ksuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_PutRejectsEmptyType(t *testing.T) {
	archive := newTestArchive(t)

	_, err := archive.Put("", []byte{1})
	assert.Error(t, err)
}

func TestArchive_Delete(t *testing.T) {
	archive := newTestArchive(t)

	id, err := archive.Put("Configuration", []byte{1})
	require.NoError(t, err)
	require.NoError(t, archive.Delete(id))

	_, err = archive.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, archive.Delete(id))
}

func TestArchive_List(t *testing.T) {
	archive := newTestArchive(t)

	ids := make(map[ksuid.KSUID]string)
	for _, msg := range []string{"a", "b", "c", "d"} {
		id, err := archive.Put("Type", []byte(msg))
		require.NoError(t, err)
		ids[id] = msg
	}

	entries, err := archive.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	var order []string
	for i, e := range entries {
		assert.Equal(t, ids[e.ID], string(e.Record.Message))
		if i > 0 {
			assert.Equal(t, -1, ksuid.Compare(entries[i-1].ID, e.ID))
		}
		order = append(order, string(e.Record.Message))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)

	limited, err := archive.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, entries[:2], limited)
}

func TestArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")

	archive, err := NewArchive(path)
	require.NoError(t, err)
	id, err := archive.Put("Type", []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, archive.Flush())
	require.NoError(t, archive.Close())

	archive, err = NewArchive(path)
	require.NoError(t, err)
	defer archive.Close()

	record, err := archive.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(record.Message))
}
