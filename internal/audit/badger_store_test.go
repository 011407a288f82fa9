// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"context"
	"testing"

	"github.com/tomtom215/reqguard/internal/logging"
)

func openTestBadgerStore(t *testing.T, path string) *BadgerStore {
	t.Helper()

	store, err := OpenBadgerStore(path)
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_Contract(t *testing.T) {
	storeContract(t, openTestBadgerStore(t, ""))
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	if err := store.Save(ctx, testEvent(1, logging.PriorityError, "security_violation")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestBadgerStore(t, dir)
	got, err := reopened.Get(ctx, "evt-001")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Path != "/admin" || len(got.Violations) != 1 {
		t.Errorf("event after reopen = %+v", got)
	}
}

func TestBadgerStore_DeleteNothing(t *testing.T) {
	store := openTestBadgerStore(t, "")
	deleted, err := store.Delete(context.Background(), baseTime)
	if err != nil || deleted != 0 {
		t.Errorf("Delete on empty store = %d, %v", deleted, err)
	}
}
