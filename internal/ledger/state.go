package ledger

import "fmt"

// State is the transactional view transitions read and mutate. The
// hosting runtime supplies a fresh State per transition and guarantees
// all-or-nothing visibility of the writes: if the transition returns an
// error, nothing it wrote is ever committed.
type State interface {
	// Get returns the record bytes at addr, or found=false if the address
	// holds no record.
	Get(addr Address) (data []byte, found bool, err error)

	// Create stores a record at a previously empty address. It fails with
	// ErrRecordExists if the address is occupied; that failure mode is
	// the protocol's uniqueness guard.
	Create(addr Address, data []byte) error

	// Put overwrites an existing record. It fails with ErrRecordNotFound
	// if the address is empty.
	Put(addr Address, data []byte) error
}

// loadProtocol resolves and decodes the singleton protocol record.
func loadProtocol(st State) (*Protocol, Address, error) {
	addr, _, err := ProtocolAddress()
	if err != nil {
		return nil, Address{}, err
	}
	data, found, err := st.Get(addr)
	if err != nil {
		return nil, addr, fmt.Errorf("read protocol: %w", err)
	}
	if !found {
		return nil, addr, fmt.Errorf("protocol: %w", ErrRecordNotFound)
	}
	p, err := DecodeProtocol(data)
	if err != nil {
		return nil, addr, fmt.Errorf("decode protocol: %w", err)
	}
	return p, addr, nil
}

// loadAgent resolves and decodes the agent record for a wallet.
func loadAgent(st State, wallet Identity) (*Agent, Address, error) {
	addr, _, err := AgentAddress(wallet)
	if err != nil {
		return nil, Address{}, err
	}
	data, found, err := st.Get(addr)
	if err != nil {
		return nil, addr, fmt.Errorf("read agent %s: %w", wallet, err)
	}
	if !found {
		return nil, addr, fmt.Errorf("agent %s: %w", wallet, ErrRecordNotFound)
	}
	a, err := DecodeAgent(data)
	if err != nil {
		return nil, addr, fmt.Errorf("decode agent %s: %w", wallet, err)
	}
	return a, addr, nil
}

// loadTask resolves and decodes the task record for a task id.
func loadTask(st State, taskID uint32) (*Task, Address, error) {
	addr, _, err := TaskAddress(taskID)
	if err != nil {
		return nil, Address{}, err
	}
	data, found, err := st.Get(addr)
	if err != nil {
		return nil, addr, fmt.Errorf("read task %d: %w", taskID, err)
	}
	if !found {
		return nil, addr, fmt.Errorf("task %d: %w", taskID, ErrRecordNotFound)
	}
	t, err := DecodeTask(data)
	if err != nil {
		return nil, addr, fmt.Errorf("decode task %d: %w", taskID, err)
	}
	return t, addr, nil
}

// loadInvite resolves and decodes the invite record for an inviter wallet.
func loadInvite(st State, inviter Identity) (*Invite, Address, error) {
	addr, _, err := InviteAddress(inviter)
	if err != nil {
		return nil, Address{}, err
	}
	data, found, err := st.Get(addr)
	if err != nil {
		return nil, addr, fmt.Errorf("read invite %s: %w", inviter, err)
	}
	if !found {
		return nil, addr, fmt.Errorf("invite %s: %w", inviter, ErrRecordNotFound)
	}
	iv, err := DecodeInvite(data)
	if err != nil {
		return nil, addr, fmt.Errorf("decode invite %s: %w", inviter, err)
	}
	return iv, addr, nil
}
