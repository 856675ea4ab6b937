package audit

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/jmcleod/learngate/internal/uuid"
	"github.com/jmcleod/learngate/storage"
)

const (
	bucket     = "audit"
	recordType = "ENTRY"

	// DefaultRetention is the number of entries kept before the oldest are
	// pruned.
	DefaultRetention = 10000
)

// Entry is one persisted audit record.
type Entry struct {
	ID         string            `json:"id"`
	Event      Event             `json:"event"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Path       string            `json:"path,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// Store persists entries in a storage.Repository. Record ids start with a
// zero-padded timestamp so the repository's byte ordering is chronological.
type Store struct {
	repo      storage.Repository
	retention int
}

// NewStore returns a Store on repo keeping at most retention entries; a
// non-positive retention uses DefaultRetention.
func NewStore(repo storage.Repository, retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{repo: repo, retention: retention}
}

// Append assigns e an id when it has none and stores it, pruning the oldest
// entries beyond the retention limit in the same transaction.
func (s *Store) Append(e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("%020d-%s", e.CreatedAt.UnixNano(), uuid.New())
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	return s.repo.Batch(bucket, func(tx storage.BatchTx) error {
		if err := tx.Put(recordType, e.ID, data); err != nil {
			return err
		}
		ids, err := tx.List(recordType)
		if err != nil {
			return err
		}
		slices.Sort(ids)
		for len(ids) > s.retention {
			if err := tx.Delete(recordType, ids[0]); err != nil {
				return err
			}
			ids = ids[1:]
		}
		return nil
	})
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything. Entries matching none of events are skipped unless
// events is empty.
func (s *Store) List(limit int, events ...Event) ([]Entry, error) {
	ids, err := s.repo.List(bucket, recordType)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	entries := make([]Entry, 0, min(len(ids), max(limit, 0)))
	for _, id := range ids {
		var e Entry
		if err := storage.GetJSON(s.repo, bucket, recordType, id, &e); err != nil {
			continue
		}
		if len(events) > 0 && !slices.Contains(events, e.Event) {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}
