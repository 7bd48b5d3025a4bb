package ledger

import (
	"crypto/ed25519"
	"testing"
)

func testIdentity(t *testing.T) Identity {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	var id Identity
	copy(id[:], pub)
	return id
}

func TestDeriveDeterministic(t *testing.T) {
	wallet := testIdentity(t)

	a1, b1, err := AgentAddress(wallet)
	if err != nil {
		t.Fatalf("derive agent address: %v", err)
	}
	a2, b2, err := AgentAddress(wallet)
	if err != nil {
		t.Fatalf("derive agent address again: %v", err)
	}
	if a1 != a2 || b1 != b2 {
		t.Fatal("same (kind, key) should derive the same address and bump")
	}
}

func TestDeriveDistinctKinds(t *testing.T) {
	wallet := testIdentity(t)

	agentAddr, _, err := AgentAddress(wallet)
	if err != nil {
		t.Fatalf("derive agent address: %v", err)
	}
	inviteAddr, _, err := InviteAddress(wallet)
	if err != nil {
		t.Fatalf("derive invite address: %v", err)
	}
	if agentAddr == inviteAddr {
		t.Fatal("different kinds with identical key material must not collide")
	}
}

func TestDeriveOffCurve(t *testing.T) {
	wallet := testIdentity(t)

	addrs := []Address{}
	if a, _, err := ProtocolAddress(); err == nil {
		addrs = append(addrs, a)
	} else {
		t.Fatalf("derive protocol address: %v", err)
	}
	if a, _, err := AgentAddress(wallet); err == nil {
		addrs = append(addrs, a)
	} else {
		t.Fatalf("derive agent address: %v", err)
	}
	if a, _, err := TaskAddress(7); err == nil {
		addrs = append(addrs, a)
	} else {
		t.Fatalf("derive task address: %v", err)
	}
	if a, _, err := ClaimAddress(7, wallet); err == nil {
		addrs = append(addrs, a)
	} else {
		t.Fatalf("derive claim address: %v", err)
	}

	for i, a := range addrs {
		if onCurve(a) {
			t.Fatalf("derived address %d is a valid ed25519 point; it could collide with a signer identity", i)
		}
	}
}

func TestDeriveWithBumpVerifies(t *testing.T) {
	wallet := testIdentity(t)

	addr, bump, err := AgentAddress(wallet)
	if err != nil {
		t.Fatalf("derive agent address: %v", err)
	}

	got, ok := DeriveWithBump(SeedAgent, wallet[:], bump)
	if !ok {
		t.Fatal("stored bump should verify as a valid derivation proof")
	}
	if got != addr {
		t.Fatal("re-derivation with the stored bump should reproduce the address")
	}
}

func TestClaimAddressPerPair(t *testing.T) {
	alice := testIdentity(t)
	bob := testIdentity(t)

	aliceClaim, _, err := ClaimAddress(1, alice)
	if err != nil {
		t.Fatalf("derive claim address: %v", err)
	}
	bobClaim, _, err := ClaimAddress(1, bob)
	if err != nil {
		t.Fatalf("derive claim address: %v", err)
	}
	aliceOther, _, err := ClaimAddress(2, alice)
	if err != nil {
		t.Fatalf("derive claim address: %v", err)
	}

	if aliceClaim == bobClaim {
		t.Fatal("claims for different agents on the same task must not collide")
	}
	if aliceClaim == aliceOther {
		t.Fatal("claims for different tasks by the same agent must not collide")
	}
}

func TestIdentityHexRoundTrip(t *testing.T) {
	id := testIdentity(t)

	parsed, err := IdentityFromHex(id.String())
	if err != nil {
		t.Fatalf("parse identity hex: %v", err)
	}
	if parsed != id {
		t.Fatal("hex round trip should preserve the identity")
	}

	if _, err := IdentityFromHex("zz"); err == nil {
		t.Fatal("invalid hex should be rejected")
	}
	if _, err := IdentityFromHex("abcd"); err == nil {
		t.Fatal("short hex should be rejected")
	}
}
