// Package runtime is the reference host for the Paperclip ledger: it
// verifies transaction signatures, serializes execution, gives each
// transition a staged view of the committed record store, and commits or
// discards that view atomically.
package runtime

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cliplabs/paperclip/internal/ledger"
)

// Op names a ledger transition.
type Op string

const (
	OpInitialize              Op = "initialize"
	OpRegisterAgent           Op = "register_agent"
	OpRegisterAgentWithInvite Op = "register_agent_with_invite"
	OpCreateTask              Op = "create_task"
	OpDeactivateTask          Op = "deactivate_task"
	OpSubmitProof             Op = "submit_proof"
	OpCreateInvite            Op = "create_invite"
	OpSetPaused               Op = "set_paused"
)

// Tx is the signed transaction envelope. The signer identity is the raw
// ed25519 public key; the signature covers the op, the transaction id,
// and the params bytes.
type Tx struct {
	ID        string          `json:"id"`
	Op        Op              `json:"op"`
	Params    json.RawMessage `json:"params"`
	Signer    ledger.Identity `json:"signer"`
	Signature string          `json:"signature,omitempty"`
}

// NewTx builds an unsigned transaction with a fresh id.
func NewTx(op Op, params any, signer ledger.Identity) (*Tx, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Tx{
		ID:     uuid.NewString(),
		Op:     op,
		Params: raw,
		Signer: signer,
	}, nil
}

// signable returns the bytes that are signed.
func (t *Tx) signable() []byte {
	return []byte(string(t.Op) + t.ID + string(t.Params))
}

// Sign signs the transaction with the given private key.
func (t *Tx) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, t.signable())
	t.Signature = hex.EncodeToString(sig)
}

// Verify checks the signature against the signer identity embedded in the
// envelope.
func (t *Tx) Verify() error {
	if t.Signature == "" {
		return fmt.Errorf("transaction has no signature")
	}
	sig, err := hex.DecodeString(t.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(t.Signer[:]), t.signable(), sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// Per-op parameter payloads, JSON-encoded inside the envelope. Byte
// fields travel as hex strings.

type InitializeParams struct {
	BaseRewardUnit uint64 `json:"base_reward_unit"`
}

type RegisterAgentParams struct{}

type RegisterAgentWithInviteParams struct {
	Inviter    ledger.Identity `json:"inviter"`
	InviteCode ledger.Identity `json:"invite_code"`
}

type CreateTaskParams struct {
	TaskID         uint32       `json:"task_id"`
	Title          ledger.Title `json:"title"`
	ContentCID     ledger.CID   `json:"content_cid"`
	RewardClips    uint64       `json:"reward_clips"`
	MaxClaims      uint16       `json:"max_claims"`
	MinTier        uint8        `json:"min_tier"`
	RequiredTaskID uint32       `json:"required_task_id"`
}

type DeactivateTaskParams struct {
	TaskID uint32 `json:"task_id"`
}

type SubmitProofParams struct {
	TaskID      uint32          `json:"task_id"`
	ProofCID    ledger.CID      `json:"proof_cid"`
	PrereqClaim *ledger.Address `json:"prereq_claim,omitempty"`
}

type CreateInviteParams struct{}

type SetPausedParams struct {
	Paused bool `json:"paused"`
}
