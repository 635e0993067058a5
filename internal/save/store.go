// Package save persists a finished call's transcript and participant list,
// tolerating network failure and missing authentication without silent
// data loss.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"meeting-session-service/internal/models"
)

// Fixed keys: at most one pending save and one journaled capture exist per
// profile.
var (
	pendingKey = []byte("save:pending")
	captureKey = []byte("capture:pending")
)

// Store is the local durable storage for a pending meeting save.
type Store interface {
	Put(ctx context.Context, payload *models.PendingMeetingSave) error
	Get(ctx context.Context) (*models.PendingMeetingSave, bool, error)
	Clear(ctx context.Context) error
}

// BadgerStore implements Store and recording.CaptureStore on an embedded
// badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open pending-save store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

// Put stores the payload under the fixed key, overwriting any previous
// pending payload.
func (s *BadgerStore) Put(_ context.Context, payload *models.PendingMeetingSave) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pending save: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey, buf)
	})
}

// Get reads the pending payload, if any.
func (s *BadgerStore) Get(_ context.Context) (*models.PendingMeetingSave, bool, error) {
	var out models.PendingMeetingSave
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read pending save: %w", err)
	}
	return &out, true, nil
}

// Clear removes the pending payload. No-op when absent.
func (s *BadgerStore) Clear(context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey)
	})
}

// PutCapture journals an untranscribed audio capture.
func (s *BadgerStore) PutCapture(_ context.Context, audio []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(captureKey, audio)
	})
}

// GetCapture reads the journaled capture, if any.
func (s *BadgerStore) GetCapture(context.Context) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(captureKey)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read journaled capture: %w", err)
	}
	return out, true, nil
}

// DeleteCapture removes the journaled capture.
func (s *BadgerStore) DeleteCapture(context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(captureKey)
	})
}
