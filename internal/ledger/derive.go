// Package ledger implements the Paperclip task-and-reward protocol core:
// deterministic address derivation, fixed-layout record schemas, and the
// state transitions that create and mutate them. The package is pure state
// machine logic; transaction signing, persistence, and serialization of
// competing transactions are the hosting runtime's concern.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte length of identities and derived addresses
// (256 bits, same key space as ed25519 public keys).
const AddressLength = 32

// Identity is a 256-bit signer identity: the raw bytes of an ed25519
// public key. It doubles as an invite code, since an agent's invite code
// is defined to be its own identity bytes.
type Identity [AddressLength]byte

// Address is a 256-bit storage location. Ordinary identities and derived
// addresses share the key space; derivation guarantees the two never
// overlap (see Derive).
type Address [AddressLength]byte

// Derivation seeds, one per record kind. Distinct seeds keep the kinds in
// disjoint regions of the address space even for identical key material.
const (
	SeedProtocol = "protocol"
	SeedAgent    = "agent"
	SeedTask     = "task"
	SeedClaim    = "claim"
	SeedInvite   = "invite"
)

// derivationDomain is a fixed prefix mixed into every derivation hash so
// addresses cannot collide with hashes computed for unrelated purposes.
const derivationDomain = "paperclip/v1"

// Derive computes the storage address for a record kind and its key
// material, together with the one-byte derivation proof (bump).
//
// Candidates are SHA3-256(domain || seed || key || bump), probed with bump
// descending from 255. A candidate is accepted only if it does NOT decode
// as a valid ed25519 curve point, so no derived address can ever equal a
// real signer's public key. The first accepted bump is the derivation
// proof stored inside the record.
func Derive(seed string, key []byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		candidate := deriveAt(seed, key, uint8(bump))
		if !onCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	// With 256 independent tries each rejecting with probability ~1/2,
	// exhausting the bump space is not reachable in practice.
	return Address{}, 0, fmt.Errorf("derive %s: no valid bump found", seed)
}

// DeriveWithBump recomputes the address for a known bump and reports
// whether that bump is a valid derivation proof for (seed, key).
func DeriveWithBump(seed string, key []byte, bump uint8) (Address, bool) {
	candidate := deriveAt(seed, key, bump)
	return candidate, !onCurve(candidate)
}

func deriveAt(seed string, key []byte, bump uint8) Address {
	h := sha3.New256()
	h.Write([]byte(derivationDomain))
	h.Write([]byte(seed))
	h.Write(key)
	h.Write([]byte{bump})
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// onCurve reports whether b is a canonical encoding of an ed25519 point,
// i.e. whether it could be an ordinary signer identity.
func onCurve(b Address) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// taskIDKey returns the little-endian key material for a task id.
func taskIDKey(taskID uint32) []byte {
	return []byte{byte(taskID), byte(taskID >> 8), byte(taskID >> 16), byte(taskID >> 24)}
}

// ProtocolAddress derives the singleton protocol record address.
func ProtocolAddress() (Address, uint8, error) {
	return Derive(SeedProtocol, nil)
}

// AgentAddress derives the agent record address for a wallet identity.
func AgentAddress(wallet Identity) (Address, uint8, error) {
	return Derive(SeedAgent, wallet[:])
}

// TaskAddress derives the task record address for a task id.
func TaskAddress(taskID uint32) (Address, uint8, error) {
	return Derive(SeedTask, taskIDKey(taskID))
}

// ClaimAddress derives the claim record address for a (task, agent) pair.
// The pair is the claim's natural unique key: at most one claim can ever
// exist at this address.
func ClaimAddress(taskID uint32, wallet Identity) (Address, uint8, error) {
	key := append(taskIDKey(taskID), wallet[:]...)
	return Derive(SeedClaim, key)
}

// InviteAddress derives the invite record address for an inviter identity.
func InviteAddress(wallet Identity) (Address, uint8, error) {
	return Derive(SeedInvite, wallet[:])
}

// String returns the hex encoding of the identity.
func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// String returns the hex encoding of the address.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IdentityFromHex parses a 64-character hex string into an Identity.
func IdentityFromHex(s string) (Identity, error) {
	var id Identity
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("decode identity: %w", err)
	}
	if len(b) != AddressLength {
		return id, fmt.Errorf("decode identity: expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("decode address: expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MarshalJSON encodes the identity as a hex string.
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the identity from a hex string.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := IdentityFromHex(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON encodes the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the address from a hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
