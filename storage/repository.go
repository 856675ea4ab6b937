// Package storage provides the record storage abstraction used for audit
// history. Records are opaque byte slices addressed by (bucket, record type,
// record id); JSON helpers cover the common case.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// BatchTx provides Put and Delete within an atomic transaction.
// The bucket is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Put(recordType, recordID string, data []byte) error
	Delete(recordType, recordID string) error
	List(recordType string) ([]string, error)
}

// Repository defines the interface for record storage. List returns ids in
// ascending byte order.
type Repository interface {
	Put(bucket, recordType, recordID string, data []byte) error
	Get(bucket, recordType, recordID string) ([]byte, error)
	List(bucket, recordType string) ([]string, error)
	Delete(bucket, recordType, recordID string) error
	Batch(bucket string, fn func(tx BatchTx) error) error
}

// PutJSON marshals v and stores it.
func PutJSON(repo Repository, bucket, recordType, recordID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", recordType, recordID, err)
	}
	return repo.Put(bucket, recordType, recordID, data)
}

// GetJSON loads a record into v.
func GetJSON(repo Repository, bucket, recordType, recordID string, v any) error {
	data, err := repo.Get(bucket, recordType, recordID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", recordType, recordID, err)
	}
	return nil
}
