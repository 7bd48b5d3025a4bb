package ledger

import "errors"

// Transition rejections. Every failed transition maps to exactly one of
// these; the hosting runtime discards all staged writes on any of them.
var (
	ErrUnauthorized               = errors.New("unauthorized")
	ErrTaskInactive               = errors.New("task is not active")
	ErrTaskFullyClaimed           = errors.New("task is fully claimed")
	ErrMathOverflow               = errors.New("math overflow")
	ErrTierTooLow                 = errors.New("agent tier is too low for this task")
	ErrMissingRequiredTaskProof   = errors.New("required prerequisite task has not been completed")
	ErrInvalidPrerequisiteAccount = errors.New("invalid prerequisite account provided")
	ErrInvalidTaskPrerequisite    = errors.New("task cannot require itself as a prerequisite")
	ErrInvalidInviteCode          = errors.New("invalid invite code")
	ErrInviteInactive             = errors.New("invite is inactive")
	ErrSelfReferralNotAllowed     = errors.New("self-referral is not allowed")
)

// Store-level conditions surfaced by the hosting runtime's state view.
var (
	// ErrRecordExists is returned by State.Create when the derived address
	// already holds a record. Creation-conflict failure is the protocol's
	// sole uniqueness and double-claim guard.
	ErrRecordExists = errors.New("record already exists at derived address")

	// ErrRecordNotFound is returned when a transition resolves a derived
	// address that holds no record.
	ErrRecordNotFound = errors.New("record not found at derived address")

	// ErrBadRecord is returned when stored bytes do not decode as the
	// expected record layout.
	ErrBadRecord = errors.New("record bytes do not match expected layout")

	// ErrLayoutVersion is returned when a record's schema version byte is
	// not one this code understands.
	ErrLayoutVersion = errors.New("unsupported record layout version")
)

// Checked arithmetic. Counters and balances fail rather than wrap.

func addU64(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

func addU32(a, b uint32) (uint32, error) {
	if a > ^uint32(0)-b {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

func addU16(a, b uint16) (uint16, error) {
	if a > ^uint16(0)-b {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

func mulU64(a, b uint64) (uint64, error) {
	if a != 0 && b > ^uint64(0)/a {
		return 0, ErrMathOverflow
	}
	return a * b, nil
}
