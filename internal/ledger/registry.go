package ledger

import "fmt"

// RegisterAgent creates the agent record for wallet and credits it the
// protocol's base reward. The derived agent address is the uniqueness
// guard: registering the same wallet twice fails with ErrRecordExists.
func RegisterAgent(st State, wallet Identity, now int64) error {
	p, protocolAddr, err := loadProtocol(st)
	if err != nil {
		return err
	}

	addr, bump, err := AgentAddress(wallet)
	if err != nil {
		return err
	}
	agent := &Agent{
		Bump:           bump,
		LayoutVersion:  LayoutV1,
		Wallet:         wallet,
		ClipsBalance:   p.BaseRewardUnit,
		EfficiencyTier: 0,
		TasksCompleted: 0,
		RegisteredAt:   now,
		LastActiveAt:   now,
	}
	if err := st.Create(addr, agent.Marshal()); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	if p.TotalAgents, err = addU32(p.TotalAgents, 1); err != nil {
		return err
	}
	if p.TotalClipsDistributed, err = addU64(p.TotalClipsDistributed, p.BaseRewardUnit); err != nil {
		return err
	}
	if err := st.Put(protocolAddr, p.Marshal()); err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}

// RegisterAgentWithInvite creates the agent record for wallet through an
// inviter's referral slot. The invitee is credited 3/2 of the base reward
// (integer division) and the inviter is credited half the base reward.
// The supplied invite code, the stored invite code, and the inviter's
// identity must all agree, and self-referral is rejected before anything
// else is looked at.
func RegisterAgentWithInvite(st State, wallet Identity, now int64, inviter Identity, inviteCode Identity) error {
	if wallet == inviter {
		return ErrSelfReferralNotAllowed
	}

	p, protocolAddr, err := loadProtocol(st)
	if err != nil {
		return err
	}
	inviterAgent, inviterAddr, err := loadAgent(st, inviter)
	if err != nil {
		return err
	}
	invite, inviteAddr, err := loadInvite(st, inviter)
	if err != nil {
		return err
	}

	if !invite.IsActive {
		return ErrInviteInactive
	}
	if invite.InviterWallet != inviterAgent.Wallet {
		return ErrInvalidInviteCode
	}
	if inviteCode != inviterAgent.Wallet {
		return ErrInvalidInviteCode
	}
	if invite.InviteCode != inviteCode {
		return ErrInvalidInviteCode
	}

	tripled, err := mulU64(p.BaseRewardUnit, 3)
	if err != nil {
		return err
	}
	inviteeReward := tripled / 2
	inviterBonus := p.BaseRewardUnit / 2

	addr, bump, err := AgentAddress(wallet)
	if err != nil {
		return err
	}
	agent := &Agent{
		Bump:            bump,
		LayoutVersion:   LayoutV1,
		Wallet:          wallet,
		ClipsBalance:    inviteeReward,
		EfficiencyTier:  0,
		TasksCompleted:  0,
		RegisteredAt:    now,
		LastActiveAt:    now,
		InvitesSent:     0,
		InvitesRedeemed: 1,
		InvitedBy:       inviter,
	}
	if err := st.Create(addr, agent.Marshal()); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	if inviterAgent.ClipsBalance, err = addU64(inviterAgent.ClipsBalance, inviterBonus); err != nil {
		return err
	}
	if inviterAgent.InvitesSent, err = addU32(inviterAgent.InvitesSent, 1); err != nil {
		return err
	}
	inviterAgent.LastActiveAt = now
	if err := st.Put(inviterAddr, inviterAgent.Marshal()); err != nil {
		return fmt.Errorf("update inviter: %w", err)
	}

	if invite.InvitesRedeemed, err = addU32(invite.InvitesRedeemed, 1); err != nil {
		return err
	}
	if err := st.Put(inviteAddr, invite.Marshal()); err != nil {
		return fmt.Errorf("update invite: %w", err)
	}

	if p.TotalAgents, err = addU32(p.TotalAgents, 1); err != nil {
		return err
	}
	if p.TotalClipsDistributed, err = addU64(p.TotalClipsDistributed, inviteeReward); err != nil {
		return err
	}
	if p.TotalClipsDistributed, err = addU64(p.TotalClipsDistributed, inviterBonus); err != nil {
		return err
	}
	if err := st.Put(protocolAddr, p.Marshal()); err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}
