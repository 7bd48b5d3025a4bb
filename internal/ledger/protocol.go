package ledger

import "fmt"

// Initialize creates the singleton protocol record, installing the caller
// as the administering authority and fixing the base reward unit. It is
// the only transition with no precondition beyond the singleton not yet
// existing: a second initialize fails with ErrRecordExists.
func Initialize(st State, authority Identity, baseRewardUnit uint64) error {
	addr, bump, err := ProtocolAddress()
	if err != nil {
		return err
	}
	p := &Protocol{
		Bump:                  bump,
		LayoutVersion:         LayoutV1,
		Authority:             authority,
		BaseRewardUnit:        baseRewardUnit,
		TotalAgents:           0,
		TotalTasks:            0,
		TotalClipsDistributed: 0,
		Paused:                false,
	}
	if err := st.Create(addr, p.Marshal()); err != nil {
		return fmt.Errorf("create protocol: %w", err)
	}
	return nil
}

// SetPaused flips the protocol pause flag. Authority only. The flag is
// advisory state read by the hosting runtime; no ledger transition
// consults it.
func SetPaused(st State, caller Identity, paused bool) error {
	p, addr, err := loadProtocol(st)
	if err != nil {
		return err
	}
	if p.Authority != caller {
		return ErrUnauthorized
	}
	p.Paused = paused
	if err := st.Put(addr, p.Marshal()); err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	return nil
}
