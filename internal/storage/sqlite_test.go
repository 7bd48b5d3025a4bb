package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cliplabs/paperclip/internal/ledger"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

func TestGetMissing(t *testing.T) {
	db := setupTestDB(t)
	_, found, err := db.Get(addr(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("empty store should not find anything")
	}
}

func TestApplyBatchRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	creates := map[ledger.Address][]byte{
		addr(1): []byte("record one"),
		addr(2): []byte("record two"),
	}
	if err := db.ApplyBatch(creates, nil); err != nil {
		t.Fatalf("apply creates: %v", err)
	}

	data, found, err := db.Get(addr(1))
	if err != nil || !found {
		t.Fatalf("get after create: found=%v err=%v", found, err)
	}
	if !bytes.Equal(data, []byte("record one")) {
		t.Fatalf("stored bytes = %q", data)
	}

	updates := map[ledger.Address][]byte{addr(2): []byte("record two v2")}
	if err := db.ApplyBatch(nil, updates); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	data, _, _ = db.Get(addr(2))
	if !bytes.Equal(data, []byte("record two v2")) {
		t.Fatalf("updated bytes = %q", data)
	}

	n, err := db.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestApplyBatchCreateConflictRollsBack(t *testing.T) {
	db := setupTestDB(t)
	if err := db.ApplyBatch(map[ledger.Address][]byte{addr(1): []byte("v1")}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := db.ApplyBatch(
		map[ledger.Address][]byte{addr(1): []byte("dup"), addr(3): []byte("new")},
		map[ledger.Address][]byte{addr(1): []byte("upd")},
	)
	if !errors.Is(err, ledger.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}

	// Nothing from the failed batch may persist.
	if _, found, _ := db.Get(addr(3)); found {
		t.Fatal("failed batch leaked a create")
	}
	data, _, _ := db.Get(addr(1))
	if !bytes.Equal(data, []byte("v1")) {
		t.Fatalf("failed batch mutated existing record: %q", data)
	}
}

func TestApplyBatchUpdateMissingRollsBack(t *testing.T) {
	db := setupTestDB(t)

	err := db.ApplyBatch(
		map[ledger.Address][]byte{addr(1): []byte("new")},
		map[ledger.Address][]byte{addr(9): []byte("ghost")},
	)
	if !errors.Is(err, ledger.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, found, _ := db.Get(addr(1)); found {
		t.Fatal("failed batch leaked a create")
	}
}

func TestAddresses(t *testing.T) {
	db := setupTestDB(t)
	if err := db.ApplyBatch(map[ledger.Address][]byte{
		addr(2): []byte("b"),
		addr(1): []byte("a"),
	}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	addrs, err := db.Addresses()
	if err != nil {
		t.Fatalf("addresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("len = %d, want 2", len(addrs))
	}
	if addrs[0] != addr(1) || addrs[1] != addr(2) {
		t.Fatalf("addresses out of order: %v", addrs)
	}
}

func TestReopenPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.ApplyBatch(map[ledger.Address][]byte{addr(7): []byte("durable")}, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	data, found, err := db2.Get(addr(7))
	if err != nil || !found {
		t.Fatalf("get after reopen: found=%v err=%v", found, err)
	}
	if !bytes.Equal(data, []byte("durable")) {
		t.Fatalf("bytes after reopen = %q", data)
	}
}
