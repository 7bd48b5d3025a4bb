package runtime

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cliplabs/paperclip/internal/ledger"
)

func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

func TestTxStateStagesWrites(t *testing.T) {
	base := NewMemStore()
	st := newTxState(base)

	if err := st.Create(addr(1), []byte("one")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Visible inside the transaction.
	data, found, err := st.Get(addr(1))
	if err != nil || !found {
		t.Fatalf("staged record should be readable: found=%v err=%v", found, err)
	}
	if !bytes.Equal(data, []byte("one")) {
		t.Fatalf("staged read = %q", data)
	}

	// Invisible in the committed store until commit.
	if _, found, _ := base.Get(addr(1)); found {
		t.Fatal("staged create leaked into the committed store")
	}

	if err := st.commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, found, _ := base.Get(addr(1)); !found {
		t.Fatal("committed record missing from base store")
	}
}

func TestTxStateDiscardLeavesBaseUntouched(t *testing.T) {
	base := NewMemStore()
	if err := base.ApplyBatch(map[ledger.Address][]byte{addr(1): []byte("v1")}, nil); err != nil {
		t.Fatalf("seed base: %v", err)
	}

	st := newTxState(base)
	if err := st.Put(addr(1), []byte("v2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Create(addr(2), []byte("new")); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Drop the overlay without committing.

	data, _, _ := base.Get(addr(1))
	if !bytes.Equal(data, []byte("v1")) {
		t.Fatalf("base record mutated without commit: %q", data)
	}
	if _, found, _ := base.Get(addr(2)); found {
		t.Fatal("uncommitted create reached the base store")
	}
}

func TestTxStateCreateConflicts(t *testing.T) {
	base := NewMemStore()
	if err := base.ApplyBatch(map[ledger.Address][]byte{addr(1): []byte("v1")}, nil); err != nil {
		t.Fatalf("seed base: %v", err)
	}

	st := newTxState(base)
	if err := st.Create(addr(1), []byte("x")); !errors.Is(err, ledger.ErrRecordExists) {
		t.Fatalf("create over committed record: got %v", err)
	}
	if err := st.Create(addr(2), []byte("x")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Create(addr(2), []byte("y")); !errors.Is(err, ledger.ErrRecordExists) {
		t.Fatalf("create over staged record: got %v", err)
	}
}

func TestTxStatePutRequiresExisting(t *testing.T) {
	st := newTxState(NewMemStore())
	if err := st.Put(addr(9), []byte("x")); !errors.Is(err, ledger.ErrRecordNotFound) {
		t.Fatalf("put on empty address: got %v", err)
	}
}

func TestTxStateCreateThenPutStaysCreate(t *testing.T) {
	base := NewMemStore()
	st := newTxState(base)

	if err := st.Create(addr(3), []byte("first")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Put(addr(3), []byte("second")); err != nil {
		t.Fatalf("put after create: %v", err)
	}
	if err := st.commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	data, found, _ := base.Get(addr(3))
	if !found || !bytes.Equal(data, []byte("second")) {
		t.Fatalf("final bytes = %q, found=%v", data, found)
	}
}

func TestMemStoreBatchAtomicity(t *testing.T) {
	m := NewMemStore()
	if err := m.ApplyBatch(map[ledger.Address][]byte{addr(1): []byte("v1")}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// One conflicting create poisons the whole batch.
	err := m.ApplyBatch(
		map[ledger.Address][]byte{addr(1): []byte("dup"), addr(2): []byte("new")},
		map[ledger.Address][]byte{addr(1): []byte("upd")},
	)
	if !errors.Is(err, ledger.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
	if _, found, _ := m.Get(addr(2)); found {
		t.Fatal("failed batch must not apply any write")
	}
	data, _, _ := m.Get(addr(1))
	if !bytes.Equal(data, []byte("v1")) {
		t.Fatalf("failed batch mutated existing record: %q", data)
	}
}
