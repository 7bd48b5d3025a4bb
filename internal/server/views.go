package server

import "github.com/cliplabs/paperclip/internal/ledger"

// JSON views over the ledger's fixed-layout records. Views carry the
// derived address so clients can reference records (e.g. prerequisite
// claims) without re-deriving.

type ProtocolView struct {
	Address               ledger.Address  `json:"address"`
	Authority             ledger.Identity `json:"authority"`
	BaseRewardUnit        uint64          `json:"base_reward_unit"`
	TotalAgents           uint32          `json:"total_agents"`
	TotalTasks            uint32          `json:"total_tasks"`
	TotalClipsDistributed uint64          `json:"total_clips_distributed"`
	Paused                bool            `json:"paused"`
}

func protocolView(p *ledger.Protocol, addr ledger.Address) ProtocolView {
	return ProtocolView{
		Address:               addr,
		Authority:             p.Authority,
		BaseRewardUnit:        p.BaseRewardUnit,
		TotalAgents:           p.TotalAgents,
		TotalTasks:            p.TotalTasks,
		TotalClipsDistributed: p.TotalClipsDistributed,
		Paused:                p.Paused,
	}
}

type AgentView struct {
	Address         ledger.Address  `json:"address"`
	Wallet          ledger.Identity `json:"wallet"`
	ClipsBalance    uint64          `json:"clips_balance"`
	EfficiencyTier  uint8           `json:"efficiency_tier"`
	TasksCompleted  uint32          `json:"tasks_completed"`
	RegisteredAt    int64           `json:"registered_at"`
	LastActiveAt    int64           `json:"last_active_at"`
	InvitesSent     uint32          `json:"invites_sent"`
	InvitesRedeemed uint32          `json:"invites_redeemed"`
	InvitedBy       ledger.Identity `json:"invited_by"`
}

func agentView(a *ledger.Agent, addr ledger.Address) AgentView {
	return AgentView{
		Address:         addr,
		Wallet:          a.Wallet,
		ClipsBalance:    a.ClipsBalance,
		EfficiencyTier:  a.EfficiencyTier,
		TasksCompleted:  a.TasksCompleted,
		RegisteredAt:    a.RegisteredAt,
		LastActiveAt:    a.LastActiveAt,
		InvitesSent:     a.InvitesSent,
		InvitesRedeemed: a.InvitesRedeemed,
		InvitedBy:       a.InvitedBy,
	}
}

type TaskView struct {
	Address        ledger.Address  `json:"address"`
	TaskID         uint32          `json:"task_id"`
	Creator        ledger.Identity `json:"creator"`
	Title          string          `json:"title"`
	ContentCID     ledger.CID      `json:"content_cid"`
	RewardClips    uint64          `json:"reward_clips"`
	MaxClaims      uint16          `json:"max_claims"`
	CurrentClaims  uint16          `json:"current_claims"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      int64           `json:"created_at"`
	MinTier        uint8           `json:"min_tier"`
	RequiredTaskID uint32          `json:"required_task_id"`
}

func taskView(t *ledger.Task, addr ledger.Address) TaskView {
	return TaskView{
		Address:        addr,
		TaskID:         t.TaskID,
		Creator:        t.Creator,
		Title:          t.Title.String(),
		ContentCID:     t.ContentCID,
		RewardClips:    t.RewardClips,
		MaxClaims:      t.MaxClaims,
		CurrentClaims:  t.CurrentClaims,
		IsActive:       t.IsActive,
		CreatedAt:      t.CreatedAt,
		MinTier:        t.MinTier,
		RequiredTaskID: t.RequiredTaskID,
	}
}

type ClaimView struct {
	Address      ledger.Address  `json:"address"`
	TaskID       uint32          `json:"task_id"`
	Agent        ledger.Identity `json:"agent"`
	ProofCID     ledger.CID      `json:"proof_cid"`
	ClipsAwarded uint64          `json:"clips_awarded"`
	CompletedAt  int64           `json:"completed_at"`
}

func claimView(c *ledger.Claim, addr ledger.Address) ClaimView {
	return ClaimView{
		Address:      addr,
		TaskID:       c.TaskID,
		Agent:        c.Agent,
		ProofCID:     c.ProofCID,
		ClipsAwarded: c.ClipsAwarded,
		CompletedAt:  c.CompletedAt,
	}
}

type InviteView struct {
	Address         ledger.Address  `json:"address"`
	InviterWallet   ledger.Identity `json:"inviter_wallet"`
	InviteCode      ledger.Identity `json:"invite_code"`
	InvitesRedeemed uint32          `json:"invites_redeemed"`
	CreatedAt       int64           `json:"created_at"`
	IsActive        bool            `json:"is_active"`
}

func inviteView(iv *ledger.Invite, addr ledger.Address) InviteView {
	return InviteView{
		Address:         addr,
		InviterWallet:   iv.InviterWallet,
		InviteCode:      iv.InviteCode,
		InvitesRedeemed: iv.InvitesRedeemed,
		CreatedAt:       iv.CreatedAt,
		IsActive:        iv.IsActive,
	}
}
