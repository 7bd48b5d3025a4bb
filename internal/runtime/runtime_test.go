package runtime

import (
	"crypto/ed25519"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// fixedClock pins transition time for deterministic records.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type signer struct {
	id   ledger.Identity
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var id ledger.Identity
	copy(id[:], pub)
	return signer{id: id, priv: priv}
}

func newTestRuntime(t *testing.T) (*Runtime, *MemStore) {
	t.Helper()
	store := NewMemStore()
	rt := New(store, fixedClock{t: time.Unix(1700000000, 0)})
	return rt, store
}

// exec signs and executes a transaction, failing the test on rejection.
func exec(t *testing.T, rt *Runtime, s signer, op Op, params any) *Receipt {
	t.Helper()
	rc, err := tryExec(rt, s, op, params)
	if err != nil {
		t.Fatalf("execute %s: %v", op, err)
	}
	return rc
}

func tryExec(rt *Runtime, s signer, op Op, params any) (*Receipt, error) {
	tx, err := NewTx(op, params, s.id)
	if err != nil {
		return nil, err
	}
	tx.Sign(s.priv)
	return rt.Execute(tx)
}

func readProtocol(t *testing.T, rt *Runtime) *ledger.Protocol {
	t.Helper()
	addr, _, err := ledger.ProtocolAddress()
	if err != nil {
		t.Fatalf("protocol address: %v", err)
	}
	data, found, err := rt.View(addr)
	if err != nil || !found {
		t.Fatalf("protocol record: found=%v err=%v", found, err)
	}
	p, err := ledger.DecodeProtocol(data)
	if err != nil {
		t.Fatalf("decode protocol: %v", err)
	}
	return p
}

func readAgent(t *testing.T, rt *Runtime, wallet ledger.Identity) *ledger.Agent {
	t.Helper()
	addr, _, err := ledger.AgentAddress(wallet)
	if err != nil {
		t.Fatalf("agent address: %v", err)
	}
	data, found, err := rt.View(addr)
	if err != nil || !found {
		t.Fatalf("agent record: found=%v err=%v", found, err)
	}
	a, err := ledger.DecodeAgent(data)
	if err != nil {
		t.Fatalf("decode agent: %v", err)
	}
	return a
}

func TestExecuteRejectsBadSignature(t *testing.T) {
	rt, _ := newTestRuntime(t)
	s := newSigner(t)

	tx, err := NewTx(OpInitialize, InitializeParams{BaseRewardUnit: 1000}, s.id)
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	if _, err := rt.Execute(tx); err == nil {
		t.Fatal("unsigned transaction should be rejected")
	}

	tx.Sign(s.priv)
	tx.Params = []byte(`{"base_reward_unit": 999999}`) // tamper after signing
	if _, err := rt.Execute(tx); err == nil {
		t.Fatal("tampered transaction should be rejected")
	}
}

func TestExecuteRejectsForeignSigner(t *testing.T) {
	rt, _ := newTestRuntime(t)
	s := newSigner(t)
	other := newSigner(t)

	tx, err := NewTx(OpInitialize, InitializeParams{BaseRewardUnit: 1000}, s.id)
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	tx.Sign(other.priv) // signed by someone who is not the claimed signer
	if _, err := rt.Execute(tx); err == nil {
		t.Fatal("signature by a different key should be rejected")
	}
}

func TestExecuteUnknownOp(t *testing.T) {
	rt, _ := newTestRuntime(t)
	s := newSigner(t)
	if _, err := tryExec(rt, s, Op("mint_clips"), struct{}{}); err == nil {
		t.Fatal("unknown op should be rejected")
	}
}

func TestFullLifecycle(t *testing.T) {
	rt, _ := newTestRuntime(t)
	authority := newSigner(t)
	alice := newSigner(t)
	bob := newSigner(t)

	exec(t, rt, authority, OpInitialize, InitializeParams{BaseRewardUnit: 1000})
	exec(t, rt, alice, OpRegisterAgent, RegisterAgentParams{})
	exec(t, rt, alice, OpCreateInvite, CreateInviteParams{})
	exec(t, rt, bob, OpRegisterAgentWithInvite, RegisterAgentWithInviteParams{
		Inviter:    alice.id,
		InviteCode: alice.id,
	})

	exec(t, rt, authority, OpCreateTask, CreateTaskParams{
		TaskID:         1,
		Title:          ledger.TitleFromString("count the clips"),
		RewardClips:    250,
		MaxClaims:      5,
		RequiredTaskID: ledger.NoPrereqTaskID,
	})
	exec(t, rt, authority, OpCreateTask, CreateTaskParams{
		TaskID:         2,
		Title:          ledger.TitleFromString("audit the count"),
		RewardClips:    400,
		MaxClaims:      5,
		RequiredTaskID: 1,
	})

	exec(t, rt, bob, OpSubmitProof, SubmitProofParams{TaskID: 1})
	prereq, _, err := ledger.ClaimAddress(1, bob.id)
	if err != nil {
		t.Fatalf("claim address: %v", err)
	}
	exec(t, rt, bob, OpSubmitProof, SubmitProofParams{TaskID: 2, PrereqClaim: &prereq})

	// alice: 1000 base + 500 inviter bonus.
	// bob: 1500 invite reward + 250 + 400 task rewards.
	if got := readAgent(t, rt, alice.id).ClipsBalance; got != 1500 {
		t.Fatalf("alice balance = %d, want 1500", got)
	}
	bobAgent := readAgent(t, rt, bob.id)
	if bobAgent.ClipsBalance != 2150 {
		t.Fatalf("bob balance = %d, want 2150", bobAgent.ClipsBalance)
	}
	if bobAgent.TasksCompleted != 2 {
		t.Fatalf("bob tasks completed = %d, want 2", bobAgent.TasksCompleted)
	}

	p := readProtocol(t, rt)
	if p.TotalAgents != 2 {
		t.Fatalf("total agents = %d, want 2", p.TotalAgents)
	}
	if p.TotalTasks != 2 {
		t.Fatalf("total tasks = %d, want 2", p.TotalTasks)
	}
	// 1000 + 1500 + 500 + 250 + 400
	if p.TotalClipsDistributed != 3650 {
		t.Fatalf("total clips = %d, want 3650", p.TotalClipsDistributed)
	}
}

func TestRejectedTransitionLeavesNoTrace(t *testing.T) {
	rt, store := newTestRuntime(t)
	authority := newSigner(t)
	agent := newSigner(t)

	exec(t, rt, authority, OpInitialize, InitializeParams{BaseRewardUnit: 1000})
	exec(t, rt, agent, OpRegisterAgent, RegisterAgentParams{})
	exec(t, rt, authority, OpCreateTask, CreateTaskParams{
		TaskID:         1,
		RewardClips:    100,
		MaxClaims:      5,
		RequiredTaskID: ledger.NoPrereqTaskID,
	})
	exec(t, rt, agent, OpSubmitProof, SubmitProofParams{TaskID: 1})

	recordsBefore := store.Len()
	balanceBefore := readAgent(t, rt, agent.id).ClipsBalance
	clipsBefore := readProtocol(t, rt).TotalClipsDistributed

	// Double claim: rejected via creation conflict.
	_, err := tryExec(rt, agent, OpSubmitProof, SubmitProofParams{TaskID: 1})
	if !errors.Is(err, ledger.ErrRecordExists) {
		t.Fatalf("expected creation conflict, got %v", err)
	}

	if store.Len() != recordsBefore {
		t.Fatal("rejected transition changed the record count")
	}
	if readAgent(t, rt, agent.id).ClipsBalance != balanceBefore {
		t.Fatal("rejected transition changed the agent balance")
	}
	if readProtocol(t, rt).TotalClipsDistributed != clipsBefore {
		t.Fatal("rejected transition changed the distribution counter")
	}
}

func TestOverflowAbortsAtomically(t *testing.T) {
	rt, store := newTestRuntime(t)
	authority := newSigner(t)

	exec(t, rt, authority, OpInitialize, InitializeParams{BaseRewardUnit: math.MaxUint64})

	agent := newSigner(t)
	exec(t, rt, agent, OpRegisterAgent, RegisterAgentParams{})

	// Second registration overflows total_clips_distributed; the new agent
	// record staged before the overflow must not survive.
	straggler := newSigner(t)
	recordsBefore := store.Len()
	_, err := tryExec(rt, straggler, OpRegisterAgent, RegisterAgentParams{})
	if !errors.Is(err, ledger.ErrMathOverflow) {
		t.Fatalf("expected ErrMathOverflow, got %v", err)
	}
	if store.Len() != recordsBefore {
		t.Fatal("overflowing transition left staged writes behind")
	}
	agentAddr, _, err := ledger.AgentAddress(straggler.id)
	if err != nil {
		t.Fatalf("agent address: %v", err)
	}
	if _, found, _ := rt.View(agentAddr); found {
		t.Fatal("agent record created despite aborted transition")
	}
}

func TestSubscribeReceivesReceipts(t *testing.T) {
	rt, _ := newTestRuntime(t)
	authority := newSigner(t)

	receipts, cancel := rt.Subscribe()
	defer cancel()

	rc := exec(t, rt, authority, OpInitialize, InitializeParams{BaseRewardUnit: 1000})

	select {
	case got := <-receipts:
		if got.TxID != rc.TxID || got.Op != OpInitialize || got.Signer != authority.id {
			t.Fatalf("unexpected receipt: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no receipt delivered")
	}
}

func TestReceiptTimestampFromClock(t *testing.T) {
	store := NewMemStore()
	now := time.Unix(1712345678, 0)
	rt := New(store, fixedClock{t: now})
	authority := newSigner(t)

	rc := exec(t, rt, authority, OpInitialize, InitializeParams{BaseRewardUnit: 10})
	if rc.CommittedAt != now.Unix() {
		t.Fatalf("committed_at = %d, want %d", rc.CommittedAt, now.Unix())
	}
}
