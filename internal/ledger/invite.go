package ledger

import "fmt"

// CreateInvite opens the caller's referral slot: one invite record per
// agent, addressed by the inviter's identity, with the invite code set to
// that same identity. Re-creating an existing slot fails with
// ErrRecordExists. Only a registered agent whose record names the caller
// as its wallet may create one.
func CreateInvite(st State, wallet Identity, now int64) error {
	agent, _, err := loadAgent(st, wallet)
	if err != nil {
		return err
	}
	if agent.Wallet != wallet {
		return ErrUnauthorized
	}

	addr, bump, err := InviteAddress(wallet)
	if err != nil {
		return err
	}
	invite := &Invite{
		Bump:            bump,
		LayoutVersion:   LayoutV1,
		InviterWallet:   wallet,
		InviteCode:      wallet,
		InvitesRedeemed: 0,
		CreatedAt:       now,
		IsActive:        true,
	}
	if err := st.Create(addr, invite.Marshal()); err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}
