// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jmcleod/learngate/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing and single-process use.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func makeKey(recordType, recordID string) string {
	return recordType + ":" + recordID
}

func (r *Repository) Put(bucket, recordType, recordID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(bucket, recordType, recordID, data)
}

func (r *Repository) putLocked(bucket, recordType, recordID string, data []byte) error {
	if _, ok := r.data[bucket]; !ok {
		r.data[bucket] = make(map[string][]byte)
	}
	r.data[bucket][makeKey(recordType, recordID)] = slices.Clone(data)
	return nil
}

func (r *Repository) Get(bucket, recordType, recordID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[bucket][makeKey(recordType, recordID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (r *Repository) List(bucket, recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(bucket, recordType), nil
}

func (r *Repository) listLocked(bucket, recordType string) []string {
	var ids []string
	prefix := recordType + ":"
	for k := range r.data[bucket] {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *Repository) Delete(bucket, recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(bucket, recordType, recordID)
}

func (r *Repository) deleteLocked(bucket, recordType, recordID string) error {
	k := makeKey(recordType, recordID)
	if _, ok := r.data[bucket][k]; !ok {
		return storage.ErrNotFound
	}
	delete(r.data[bucket], k)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot(bucket)
	if err := fn(&memoryBatchTx{repo: r, bucket: bucket}); err != nil {
		if snapshot == nil {
			delete(r.data, bucket)
		} else {
			r.data[bucket] = snapshot
		}
		return err
	}
	return nil
}

func (r *Repository) snapshot(bucket string) map[string][]byte {
	original, ok := r.data[bucket]
	if !ok {
		return nil
	}
	cp := maps.Clone(original)
	for k, v := range cp {
		cp[k] = slices.Clone(v)
	}
	return cp
}

type memoryBatchTx struct {
	repo   *Repository
	bucket string
}

func (tx *memoryBatchTx) Put(recordType, recordID string, data []byte) error {
	return tx.repo.putLocked(tx.bucket, recordType, recordID, data)
}

func (tx *memoryBatchTx) Delete(recordType, recordID string) error {
	return tx.repo.deleteLocked(tx.bucket, recordType, recordID)
}

func (tx *memoryBatchTx) List(recordType string) ([]string, error) {
	return tx.repo.listLocked(tx.bucket, recordType), nil
}
