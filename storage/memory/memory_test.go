package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/learngate/storage"
)

func TestMemoryRepository(t *testing.T) {
	r := NewRepository()

	require.NoError(t, r.Put("b", "T", "2", []byte("two")))
	require.NoError(t, r.Put("b", "T", "1", []byte("one")))
	require.NoError(t, r.Put("b", "U", "1", []byte("other")))

	got, err := r.Get("b", "T", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	got[0] = 'X'
	again, _ := r.Get("b", "T", "1")
	assert.Equal(t, []byte("one"), again, "Get returns a copy")

	ids, err := r.List("b", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	_, err = r.Get("missing", "T", "1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, r.Delete("b", "T", "1"))
	assert.ErrorIs(t, r.Delete("b", "T", "1"), storage.ErrNotFound)
}

func TestMemoryRepository_PutCopiesInput(t *testing.T) {
	r := NewRepository()
	data := []byte("abc")
	require.NoError(t, r.Put("b", "T", "1", data))
	data[0] = 'z'

	got, err := r.Get("b", "T", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestMemoryRepository_BatchRollback(t *testing.T) {
	r := NewRepository()
	require.NoError(t, r.Put("b", "T", "keep", []byte("k")))

	err := r.Batch("b", func(tx storage.BatchTx) error {
		require.NoError(t, tx.Put("T", "new", []byte("n")))
		require.NoError(t, tx.Delete("T", "keep"))
		return errors.New("abort")
	})
	require.Error(t, err)

	ids, _ := r.List("b", "T")
	assert.Equal(t, []string{"keep"}, ids)
}

func TestMemoryRepository_BatchRollbackOfNewBucket(t *testing.T) {
	r := NewRepository()
	err := r.Batch("fresh", func(tx storage.BatchTx) error {
		require.NoError(t, tx.Put("T", "1", []byte("x")))
		return errors.New("abort")
	})
	require.Error(t, err)

	ids, _ := r.List("fresh", "T")
	assert.Empty(t, ids)
}

func TestMemoryRepository_BatchCommit(t *testing.T) {
	r := NewRepository()
	require.NoError(t, r.Batch("b", func(tx storage.BatchTx) error {
		return tx.Put("T", "1", []byte("x"))
	}))
	got, err := r.Get("b", "T", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestJSONHelpers(t *testing.T) {
	r := NewRepository()
	type rec struct {
		Name string `json:"name"`
	}
	require.NoError(t, storage.PutJSON(r, "b", "T", "1", rec{Name: "n"}))

	var got rec
	require.NoError(t, storage.GetJSON(r, "b", "T", "1", &got))
	assert.Equal(t, "n", got.Name)

	require.NoError(t, r.Put("b", "T", "bad", []byte("{")))
	assert.Error(t, storage.GetJSON(r, "b", "T", "bad", &got))
	assert.ErrorIs(t, storage.GetJSON(r, "b", "T", "missing", &got), storage.ErrNotFound)
}
