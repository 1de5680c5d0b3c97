package store_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"objectstore/models"
)

func TestCoordinatorRollsBackOnError(t *testing.T) {
	engine, coord := newTestEngine(t)

	sentinel := errors.New("handler failed")
	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"a":1}`)); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTransaction error = %v, want %v", err, sentinel)
	}

	// The store above must not have been committed.
	listErr := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := engine.ListMappings(tx, "c1", "")
		return err
	})
	if !errors.Is(listErr, models.ErrNotFound) {
		t.Fatalf("ListMappings after rollback error = %v, want ErrNotFound", listErr)
	}
}

func TestCoordinatorCommitsOnSuccess(t *testing.T) {
	engine, coord := newTestEngine(t)

	err := coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := engine.Store(tx, "c1", "n1", "", nil, json.RawMessage(`{"a":1}`))
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}

	err = coord.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		mappings, err := engine.ListMappings(tx, "c1", "")
		if err != nil {
			return err
		}
		if len(mappings) != 1 {
			t.Errorf("ListMappings = %d rows, want 1", len(mappings))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}
}
