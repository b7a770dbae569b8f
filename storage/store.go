package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Store persists JSON-encoded state documents under bucketed keys.
type Store struct {
	db Database
}

func NewStore(db Database) *Store {
	return &Store{db: db}
}

func (s *Store) key(bucket, name string) []byte {
	return []byte(bucket + "/" + name)
}

// Save encodes the value and writes it under bucket/name.
func (s *Store) Save(bucket, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", bucket, name, err)
	}
	return s.db.Put(s.key(bucket, name), encoded)
}

// Load decodes bucket/name into out. Missing keys report found=false
// without error.
func (s *Store) Load(bucket, name string, out any) (bool, error) {
	raw, err := s.db.Get(s.key(bucket, name))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %s/%s: %w", bucket, name, err)
	}
	return true, nil
}

// Delete removes bucket/name if present.
func (s *Store) Delete(bucket, name string) error {
	return s.db.Delete(s.key(bucket, name))
}
