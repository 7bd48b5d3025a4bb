package runtime

import (
	"fmt"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// Store is the committed record store beneath the runtime. ApplyBatch
// must be atomic: either every create and update lands, or none do, and
// a create against an occupied address must fail the whole batch with
// ledger.ErrRecordExists.
type Store interface {
	Get(addr ledger.Address) (data []byte, found bool, err error)
	ApplyBatch(creates, updates map[ledger.Address][]byte) error
}

// txState is the staged overlay handed to a ledger transition. Reads fall
// through to the committed store; writes stay in the overlay until commit.
// Discarding the overlay is how a failed transition leaves zero side
// effects.
type txState struct {
	base    Store
	creates map[ledger.Address][]byte
	updates map[ledger.Address][]byte
}

func newTxState(base Store) *txState {
	return &txState{
		base:    base,
		creates: make(map[ledger.Address][]byte),
		updates: make(map[ledger.Address][]byte),
	}
}

func (s *txState) Get(addr ledger.Address) ([]byte, bool, error) {
	if data, ok := s.updates[addr]; ok {
		return data, true, nil
	}
	if data, ok := s.creates[addr]; ok {
		return data, true, nil
	}
	return s.base.Get(addr)
}

func (s *txState) Create(addr ledger.Address, data []byte) error {
	if _, ok := s.creates[addr]; ok {
		return ledger.ErrRecordExists
	}
	if _, ok := s.updates[addr]; ok {
		return ledger.ErrRecordExists
	}
	_, found, err := s.base.Get(addr)
	if err != nil {
		return err
	}
	if found {
		return ledger.ErrRecordExists
	}
	s.creates[addr] = append([]byte(nil), data...)
	return nil
}

func (s *txState) Put(addr ledger.Address, data []byte) error {
	// A record created earlier in the same transition stays a create so
	// the batch inserts its final bytes.
	if _, ok := s.creates[addr]; ok {
		s.creates[addr] = append([]byte(nil), data...)
		return nil
	}
	if _, ok := s.updates[addr]; ok {
		s.updates[addr] = append([]byte(nil), data...)
		return nil
	}
	_, found, err := s.base.Get(addr)
	if err != nil {
		return err
	}
	if !found {
		return ledger.ErrRecordNotFound
	}
	s.updates[addr] = append([]byte(nil), data...)
	return nil
}

func (s *txState) commit() error {
	if len(s.creates) == 0 && len(s.updates) == 0 {
		return nil
	}
	if err := s.base.ApplyBatch(s.creates, s.updates); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
