package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/learngate/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltStorage(t *testing.T) {
	s := newTestStore(t)
	bucket, recordType := "audit", "ENTRY"

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, recordType, "e1", []byte(`{"n":1}`)))
		got, err := s.Get(bucket, recordType, "e1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(got))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(bucket, recordType, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.Get("no-bucket", recordType, "e1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListIsOrderedAndScoped", func(t *testing.T) {
		require.NoError(t, s.Put(bucket, recordType, "e0", []byte(`{}`)))
		require.NoError(t, s.Put(bucket, "OTHER", "x", []byte(`{}`)))
		ids, err := s.List(bucket, recordType)
		require.NoError(t, err)
		assert.Equal(t, []string{"e0", "e1"}, ids)

		ids, err = s.List("no-bucket", recordType)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(bucket, recordType, "e0"))
		assert.ErrorIs(t, s.Delete(bucket, recordType, "e0"), storage.ErrNotFound)
	})

	t.Run("BatchRollsBackOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			require.NoError(t, tx.Put(recordType, "e9", []byte(`{}`)))
			require.NoError(t, tx.Delete(recordType, "e1"))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		ids, err := s.List(bucket, recordType)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, ids)
	})

	t.Run("BatchCommits", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			if err := tx.Put(recordType, "e2", []byte(`{}`)); err != nil {
				return err
			}
			ids, err := tx.List(recordType)
			if err != nil {
				return err
			}
			assert.Equal(t, []string{"e1", "e2"}, ids)
			return tx.Delete(recordType, "e1")
		})
		require.NoError(t, err)

		ids, err := s.List(bucket, recordType)
		require.NoError(t, err)
		assert.Equal(t, []string{"e2"}, ids)
	})
}

func TestBBoltStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, storage.PutJSON(s, "audit", "ENTRY", "e1", map[string]string{"event": "logout"}))
	require.NoError(t, s.Close())

	s, err = NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()
	var got map[string]string
	require.NoError(t, storage.GetJSON(s, "audit", "ENTRY", "e1", &got))
	assert.Equal(t, "logout", got["event"])
}
