package ledger

import "fmt"

// SubmitProofParams carries a proof submission. PrereqClaim is the
// caller-supplied reference to the claim record proving completion of the
// task's prerequisite; it is untrusted input and only honored after the
// handler re-derives the expected address and cross-checks the stored
// fields.
type SubmitProofParams struct {
	TaskID      uint32
	ProofCID    CID
	PrereqClaim *Address
}

// SubmitProof records completion of a task by wallet, creating the
// immutable claim record and paying out the task reward. Check order
// matters: tier, then prerequisite, then active flag, then capacity; the
// claim creation itself is the double-claim guard.
func SubmitProof(st State, wallet Identity, now int64, params SubmitProofParams) error {
	p, protocolAddr, err := loadProtocol(st)
	if err != nil {
		return err
	}
	task, taskAddr, err := loadTask(st, params.TaskID)
	if err != nil {
		return err
	}
	agent, agentAddr, err := loadAgent(st, wallet)
	if err != nil {
		return err
	}

	if agent.EfficiencyTier < task.MinTier {
		return ErrTierTooLow
	}

	if task.RequiredTaskID != NoPrereqTaskID {
		if err := verifyPrereqClaim(st, wallet, task.RequiredTaskID, params.PrereqClaim); err != nil {
			return err
		}
	}

	if !task.IsActive {
		return ErrTaskInactive
	}
	if task.CurrentClaims >= task.MaxClaims {
		return ErrTaskFullyClaimed
	}

	claimAddr, claimBump, err := ClaimAddress(params.TaskID, wallet)
	if err != nil {
		return err
	}
	claim := &Claim{
		Bump:          claimBump,
		LayoutVersion: LayoutV1,
		TaskID:        params.TaskID,
		Agent:         wallet,
		ProofCID:      params.ProofCID,
		ClipsAwarded:  task.RewardClips,
		CompletedAt:   now,
	}
	if err := st.Create(claimAddr, claim.Marshal()); err != nil {
		return fmt.Errorf("create claim: %w", err)
	}

	if task.CurrentClaims, err = addU16(task.CurrentClaims, 1); err != nil {
		return err
	}
	if err := st.Put(taskAddr, task.Marshal()); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if agent.ClipsBalance, err = addU64(agent.ClipsBalance, task.RewardClips); err != nil {
		return err
	}
	if agent.TasksCompleted, err = addU32(agent.TasksCompleted, 1); err != nil {
		return err
	}
	agent.LastActiveAt = now
	if err := st.Put(agentAddr, agent.Marshal()); err != nil {
		return fmt.Errorf("update agent: %w", err)
	}

	if p.TotalClipsDistributed, err = addU64(p.TotalClipsDistributed, task.RewardClips); err != nil {
		return err
	}
	if err := st.Put(protocolAddr, p.Marshal()); err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}

// verifyPrereqClaim validates the caller-supplied reference to the claim
// proving (requiredTaskID, wallet) was completed. The reference must match
// the independently re-derived address, resolve to a decodable claim
// record, and that record's fields must name exactly the expected pair.
// A borrowed or fabricated claim fails one of these checks.
func verifyPrereqClaim(st State, wallet Identity, requiredTaskID uint32, ref *Address) error {
	if ref == nil {
		return ErrMissingRequiredTaskProof
	}

	expected, _, err := ClaimAddress(requiredTaskID, wallet)
	if err != nil {
		return err
	}
	if *ref != expected {
		return ErrInvalidPrerequisiteAccount
	}

	data, found, err := st.Get(expected)
	if err != nil {
		return fmt.Errorf("read prerequisite claim: %w", err)
	}
	if !found {
		return ErrMissingRequiredTaskProof
	}
	claim, err := DecodeClaim(data)
	if err != nil {
		return ErrMissingRequiredTaskProof
	}

	if claim.TaskID != requiredTaskID {
		return ErrInvalidPrerequisiteAccount
	}
	if claim.Agent != wallet {
		return ErrInvalidPrerequisiteAccount
	}
	return nil
}
