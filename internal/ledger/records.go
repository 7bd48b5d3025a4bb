package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// LayoutV1 is the current record schema version. Every record starts with
// a derivation-proof byte followed by this version byte; decoders check
// the version before interpreting anything after it.
const LayoutV1 = 1

// Reserved tail sizes per record kind. The tails absorb additive schema
// changes without relocating records already persisted at their derived
// addresses.
const (
	protocolReserved = 64
	agentReserved    = 88
	taskReserved     = 128
	claimReserved    = 64
	inviteReserved   = 64
)

// Encoded record sizes. Records are never resized after creation.
const (
	ProtocolSize = 2 + 32 + 8 + 4 + 4 + 8 + 1 + protocolReserved
	AgentSize    = 2 + 32 + 8 + 1 + 4 + 8 + 8 + 4 + 4 + 32 + agentReserved
	TaskSize     = 2 + 4 + 32 + 32 + 64 + 8 + 2 + 2 + 1 + 8 + 1 + 4 + taskReserved
	ClaimSize    = 2 + 4 + 32 + 64 + 8 + 8 + claimReserved
	InviteSize   = 2 + 32 + 32 + 4 + 8 + 1 + inviteReserved
)

// NoPrereqTaskID is the sentinel required_task_id meaning "no prerequisite".
const NoPrereqTaskID = ^uint32(0)

// CID is an opaque fixed-size content identifier. The protocol stores and
// compares CIDs but never resolves them.
type CID [64]byte

// Title is a fixed-size task title. Shorter titles are zero-padded.
type Title [32]byte

// TitleFromString builds a Title from s, truncating past 32 bytes.
func TitleFromString(s string) Title {
	var t Title
	copy(t[:], s)
	return t
}

// String returns the title with trailing zero padding stripped.
func (t Title) String() string {
	return strings.TrimRight(string(t[:]), "\x00")
}

// MarshalJSON encodes the title as its trimmed string form.
func (t Title) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// UnmarshalJSON decodes the title from a string, truncating past 32 bytes.
func (t *Title) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = TitleFromString(s)
	return nil
}

// String returns the hex encoding of the CID.
func (c CID) String() string { return hex.EncodeToString(c[:]) }

// MarshalJSON encodes the CID as a hex string.
func (c CID) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// UnmarshalJSON decodes the CID from a 128-character hex string.
func (c *CID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode cid: %w", err)
	}
	if len(b) != len(c) {
		return fmt.Errorf("decode cid: expected %d bytes, got %d", len(c), len(b))
	}
	copy(c[:], b)
	return nil
}

// Protocol is the singleton ledger record holding the administering
// authority and the global counters.
type Protocol struct {
	Bump                  uint8
	LayoutVersion         uint8
	Authority             Identity
	BaseRewardUnit        uint64
	TotalAgents           uint32
	TotalTasks            uint32
	TotalClipsDistributed uint64
	Paused                bool
}

// Agent is the per-participant record: balance, tier, completion history,
// and the invite graph edges it participates in.
type Agent struct {
	Bump            uint8
	LayoutVersion   uint8
	Wallet          Identity
	ClipsBalance    uint64
	EfficiencyTier  uint8
	TasksCompleted  uint32
	RegisteredAt    int64
	LastActiveAt    int64
	InvitesSent     uint32
	InvitesRedeemed uint32
	InvitedBy       Identity
}

// Task is a published work item with reward, capacity, eligibility floor,
// and an optional prerequisite link to another task.
type Task struct {
	Bump           uint8
	LayoutVersion  uint8
	TaskID         uint32
	Creator        Identity
	Title          Title
	ContentCID     CID
	RewardClips    uint64
	MaxClaims      uint16
	CurrentClaims  uint16
	IsActive       bool
	CreatedAt      int64
	MinTier        uint8
	RequiredTaskID uint32
}

// Claim is the immutable completion proof for one (task, agent) pair.
// Its derived address makes the pair a natural unique key; the record is
// never mutated after creation.
type Claim struct {
	Bump          uint8
	LayoutVersion uint8
	TaskID        uint32
	Agent         Identity
	ProofCID      CID
	ClipsAwarded  uint64
	CompletedAt   int64
}

// Invite is the per-agent referral slot. The invite code is the inviter's
// identity bytes, not a separate secret.
type Invite struct {
	Bump            uint8
	LayoutVersion   uint8
	InviterWallet   Identity
	InviteCode      Identity
	InvitesRedeemed uint32
	CreatedAt       int64
	IsActive        bool
}

// cursor is a little bounds-tracked reader/writer over a fixed buffer.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) putU8(v uint8)  { c.buf[c.off] = v; c.off++ }
func (c *cursor) putU16(v uint16) {
	binary.LittleEndian.PutUint16(c.buf[c.off:], v)
	c.off += 2
}
func (c *cursor) putU32(v uint32) {
	binary.LittleEndian.PutUint32(c.buf[c.off:], v)
	c.off += 4
}
func (c *cursor) putU64(v uint64) {
	binary.LittleEndian.PutUint64(c.buf[c.off:], v)
	c.off += 8
}
func (c *cursor) putI64(v int64) { c.putU64(uint64(v)) }
func (c *cursor) putBool(v bool) {
	if v {
		c.putU8(1)
	} else {
		c.putU8(0)
	}
}
func (c *cursor) putBytes(b []byte) { copy(c.buf[c.off:], b); c.off += len(b) }

func (c *cursor) u8() uint8 { v := c.buf[c.off]; c.off++; return v }
func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v
}
func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}
func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.off:])
	c.off += 8
	return v
}
func (c *cursor) i64() int64  { return int64(c.u64()) }
func (c *cursor) readBool() bool { return c.u8() != 0 }
func (c *cursor) bytes(n int) []byte {
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

// checkHeader validates record length and the schema version byte, and
// returns a cursor positioned past the (bump, version) header.
func checkHeader(data []byte, size int) (*cursor, uint8, uint8, error) {
	if len(data) != size {
		return nil, 0, 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadRecord, size, len(data))
	}
	c := &cursor{buf: data}
	bump := c.u8()
	version := c.u8()
	if version != LayoutV1 {
		return nil, 0, 0, fmt.Errorf("%w: version %d", ErrLayoutVersion, version)
	}
	return c, bump, version, nil
}

// Marshal encodes the protocol record into its fixed v1 layout.
func (p *Protocol) Marshal() []byte {
	c := &cursor{buf: make([]byte, ProtocolSize)}
	c.putU8(p.Bump)
	c.putU8(p.LayoutVersion)
	c.putBytes(p.Authority[:])
	c.putU64(p.BaseRewardUnit)
	c.putU32(p.TotalAgents)
	c.putU32(p.TotalTasks)
	c.putU64(p.TotalClipsDistributed)
	c.putBool(p.Paused)
	return c.buf
}

// DecodeProtocol decodes a protocol record, checking size and version.
func DecodeProtocol(data []byte) (*Protocol, error) {
	c, bump, version, err := checkHeader(data, ProtocolSize)
	if err != nil {
		return nil, err
	}
	p := &Protocol{Bump: bump, LayoutVersion: version}
	copy(p.Authority[:], c.bytes(AddressLength))
	p.BaseRewardUnit = c.u64()
	p.TotalAgents = c.u32()
	p.TotalTasks = c.u32()
	p.TotalClipsDistributed = c.u64()
	p.Paused = c.readBool()
	return p, nil
}

// Marshal encodes the agent record into its fixed v1 layout.
func (a *Agent) Marshal() []byte {
	c := &cursor{buf: make([]byte, AgentSize)}
	c.putU8(a.Bump)
	c.putU8(a.LayoutVersion)
	c.putBytes(a.Wallet[:])
	c.putU64(a.ClipsBalance)
	c.putU8(a.EfficiencyTier)
	c.putU32(a.TasksCompleted)
	c.putI64(a.RegisteredAt)
	c.putI64(a.LastActiveAt)
	c.putU32(a.InvitesSent)
	c.putU32(a.InvitesRedeemed)
	c.putBytes(a.InvitedBy[:])
	return c.buf
}

// DecodeAgent decodes an agent record, checking size and version.
func DecodeAgent(data []byte) (*Agent, error) {
	c, bump, version, err := checkHeader(data, AgentSize)
	if err != nil {
		return nil, err
	}
	a := &Agent{Bump: bump, LayoutVersion: version}
	copy(a.Wallet[:], c.bytes(AddressLength))
	a.ClipsBalance = c.u64()
	a.EfficiencyTier = c.u8()
	a.TasksCompleted = c.u32()
	a.RegisteredAt = c.i64()
	a.LastActiveAt = c.i64()
	a.InvitesSent = c.u32()
	a.InvitesRedeemed = c.u32()
	copy(a.InvitedBy[:], c.bytes(AddressLength))
	return a, nil
}

// Marshal encodes the task record into its fixed v1 layout.
func (t *Task) Marshal() []byte {
	c := &cursor{buf: make([]byte, TaskSize)}
	c.putU8(t.Bump)
	c.putU8(t.LayoutVersion)
	c.putU32(t.TaskID)
	c.putBytes(t.Creator[:])
	c.putBytes(t.Title[:])
	c.putBytes(t.ContentCID[:])
	c.putU64(t.RewardClips)
	c.putU16(t.MaxClaims)
	c.putU16(t.CurrentClaims)
	c.putBool(t.IsActive)
	c.putI64(t.CreatedAt)
	c.putU8(t.MinTier)
	c.putU32(t.RequiredTaskID)
	return c.buf
}

// DecodeTask decodes a task record, checking size and version.
func DecodeTask(data []byte) (*Task, error) {
	c, bump, version, err := checkHeader(data, TaskSize)
	if err != nil {
		return nil, err
	}
	t := &Task{Bump: bump, LayoutVersion: version}
	t.TaskID = c.u32()
	copy(t.Creator[:], c.bytes(AddressLength))
	copy(t.Title[:], c.bytes(len(t.Title)))
	copy(t.ContentCID[:], c.bytes(len(t.ContentCID)))
	t.RewardClips = c.u64()
	t.MaxClaims = c.u16()
	t.CurrentClaims = c.u16()
	t.IsActive = c.readBool()
	t.CreatedAt = c.i64()
	t.MinTier = c.u8()
	t.RequiredTaskID = c.u32()
	return t, nil
}

// Marshal encodes the claim record into its fixed v1 layout.
func (cl *Claim) Marshal() []byte {
	c := &cursor{buf: make([]byte, ClaimSize)}
	c.putU8(cl.Bump)
	c.putU8(cl.LayoutVersion)
	c.putU32(cl.TaskID)
	c.putBytes(cl.Agent[:])
	c.putBytes(cl.ProofCID[:])
	c.putU64(cl.ClipsAwarded)
	c.putI64(cl.CompletedAt)
	return c.buf
}

// DecodeClaim decodes a claim record, checking size and version.
func DecodeClaim(data []byte) (*Claim, error) {
	c, bump, version, err := checkHeader(data, ClaimSize)
	if err != nil {
		return nil, err
	}
	cl := &Claim{Bump: bump, LayoutVersion: version}
	cl.TaskID = c.u32()
	copy(cl.Agent[:], c.bytes(AddressLength))
	copy(cl.ProofCID[:], c.bytes(len(cl.ProofCID)))
	cl.ClipsAwarded = c.u64()
	cl.CompletedAt = c.i64()
	return cl, nil
}

// Marshal encodes the invite record into its fixed v1 layout.
func (iv *Invite) Marshal() []byte {
	c := &cursor{buf: make([]byte, InviteSize)}
	c.putU8(iv.Bump)
	c.putU8(iv.LayoutVersion)
	c.putBytes(iv.InviterWallet[:])
	c.putBytes(iv.InviteCode[:])
	c.putU32(iv.InvitesRedeemed)
	c.putI64(iv.CreatedAt)
	c.putBool(iv.IsActive)
	return c.buf
}

// DecodeInvite decodes an invite record, checking size and version.
func DecodeInvite(data []byte) (*Invite, error) {
	c, bump, version, err := checkHeader(data, InviteSize)
	if err != nil {
		return nil, err
	}
	iv := &Invite{Bump: bump, LayoutVersion: version}
	copy(iv.InviterWallet[:], c.bytes(AddressLength))
	copy(iv.InviteCode[:], c.bytes(AddressLength))
	iv.InvitesRedeemed = c.u32()
	iv.CreatedAt = c.i64()
	iv.IsActive = c.readBool()
	return iv, nil
}
