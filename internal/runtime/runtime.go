package runtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// Clock supplies the monotonic current-time value transitions record.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Receipt describes a committed transaction.
type Receipt struct {
	TxID        string          `json:"tx_id"`
	Op          Op              `json:"op"`
	Signer      ledger.Identity `json:"signer"`
	CommittedAt int64           `json:"committed_at"`
}

// Runtime executes signed transactions against a committed store. A
// mutex serializes executions: within one transaction all reads observe
// the freshest committed state and all writes commit together or not at
// all.
type Runtime struct {
	mu    sync.Mutex
	store Store
	clock Clock

	subMu sync.Mutex
	subs  map[chan *Receipt]struct{}
}

// New creates a Runtime over the given store and clock.
func New(store Store, clock Clock) *Runtime {
	return &Runtime{
		store: store,
		clock: clock,
		subs:  make(map[chan *Receipt]struct{}),
	}
}

// Subscribe registers a commit listener. The returned cancel func must be
// called to release the channel. Slow listeners miss receipts rather than
// stalling execution.
func (r *Runtime) Subscribe() (<-chan *Receipt, func()) {
	ch := make(chan *Receipt, 16)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	cancel := func() {
		r.subMu.Lock()
		delete(r.subs, ch)
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Runtime) notify(rc *Receipt) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- rc:
		default:
		}
	}
}

// Execute verifies, runs, and commits one transaction. Any error from the
// transition or the signature check leaves the committed store untouched.
func (r *Runtime) Execute(tx *Tx) (*Receipt, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("verify tx %s: %w", tx.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := newTxState(r.store)
	now := r.clock.Now().Unix()

	if err := r.dispatch(st, tx, now); err != nil {
		return nil, err
	}
	if err := st.commit(); err != nil {
		return nil, err
	}

	rc := &Receipt{
		TxID:        tx.ID,
		Op:          tx.Op,
		Signer:      tx.Signer,
		CommittedAt: now,
	}
	r.notify(rc)
	return rc, nil
}

// dispatch decodes the params payload and invokes the named transition.
func (r *Runtime) dispatch(st ledger.State, tx *Tx, now int64) error {
	switch tx.Op {
	case OpInitialize:
		var p InitializeParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.Initialize(st, tx.Signer, p.BaseRewardUnit)

	case OpRegisterAgent:
		return ledger.RegisterAgent(st, tx.Signer, now)

	case OpRegisterAgentWithInvite:
		var p RegisterAgentWithInviteParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.RegisterAgentWithInvite(st, tx.Signer, now, p.Inviter, p.InviteCode)

	case OpCreateTask:
		var p CreateTaskParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.CreateTask(st, tx.Signer, now, ledger.CreateTaskParams{
			TaskID:         p.TaskID,
			Title:          p.Title,
			ContentCID:     p.ContentCID,
			RewardClips:    p.RewardClips,
			MaxClaims:      p.MaxClaims,
			MinTier:        p.MinTier,
			RequiredTaskID: p.RequiredTaskID,
		})

	case OpDeactivateTask:
		var p DeactivateTaskParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.DeactivateTask(st, tx.Signer, p.TaskID)

	case OpSubmitProof:
		var p SubmitProofParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.SubmitProof(st, tx.Signer, now, ledger.SubmitProofParams{
			TaskID:      p.TaskID,
			ProofCID:    p.ProofCID,
			PrereqClaim: p.PrereqClaim,
		})

	case OpCreateInvite:
		return ledger.CreateInvite(st, tx.Signer, now)

	case OpSetPaused:
		var p SetPausedParams
		if err := unmarshalParams(tx.Params, &p); err != nil {
			return err
		}
		return ledger.SetPaused(st, tx.Signer, p.Paused)

	default:
		return fmt.Errorf("unknown op %q", tx.Op)
	}
}

// View reads a record directly from the committed store. Used by the
// read-only API; transitions never use it.
func (r *Runtime) View(addr ledger.Address) ([]byte, bool, error) {
	return r.store.Get(addr)
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
