package stake

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

type position struct {
	id        uint64
	principal *big.Int
	shares    *big.Int
	startDay  uint64
	lockDays  uint64
}

// MemLedger is a deterministic reference implementation of the external
// staking program. It also carries the stake-currency balances and
// allowances the real program would hold, so the registry's allowance flow
// can be exercised end to end. Shares accrue 1:1 with principal and a stake
// opened on day D becomes active on day D+1.
type MemLedger struct {
	nextID      uint64
	positions   map[[20]byte][]*position
	balances    map[[20]byte]*big.Int
	allowances  map[[20]byte]map[[20]byte]*big.Int
	totalStaked *big.Int
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		nextID:      1,
		positions:   make(map[[20]byte][]*position),
		balances:    make(map[[20]byte]*big.Int),
		allowances:  make(map[[20]byte]map[[20]byte]*big.Int),
		totalStaked: big.NewInt(0),
	}
}

// Fund credits stake currency to an account. Genesis and test helper.
func (l *MemLedger) Fund(addr [20]byte, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = big.NewInt(0)
	}
	l.balances[addr] = new(big.Int).Add(bal, amount)
}

// BalanceOf returns a copy of the stake-currency balance.
func (l *MemLedger) BalanceOf(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Approve grants spender the right to pull stake currency from owner.
func (l *MemLedger) Approve(owner, spender [20]byte, amount *big.Int) {
	grants, ok := l.allowances[owner]
	if !ok {
		grants = make(map[[20]byte]*big.Int)
		l.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
}

// Allowance returns a copy of the remaining grant from owner to spender.
func (l *MemLedger) Allowance(owner, spender [20]byte) *big.Int {
	if grants, ok := l.allowances[owner]; ok {
		if amount, ok := grants[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// Transfer moves stake currency between accounts.
func (l *MemLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.Fund(to, amount)
	return nil
}

// Open starts a stake funded from the owner's own balance.
func (l *MemLedger) Open(owner [20]byte, amount *big.Int, lockDays, day uint64) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if lockDays == 0 {
		return 0, ErrInvalidLock
	}
	if err := l.debit(owner, amount); err != nil {
		return 0, err
	}
	return l.open(owner, amount, lockDays, day), nil
}

// OpenFrom starts a stake for spender funded by pulling currency from owner
// against a prior allowance grant.
func (l *MemLedger) OpenFrom(spender, owner [20]byte, amount *big.Int, lockDays, day uint64) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if lockDays == 0 {
		return 0, ErrInvalidLock
	}
	remaining := l.Allowance(owner, spender)
	if remaining.Cmp(amount) < 0 {
		return 0, fmt.Errorf("%w: have %s, need %s", ErrAllowance, remaining, amount)
	}
	if err := l.debit(owner, amount); err != nil {
		return 0, err
	}
	l.allowances[owner][spender] = remaining.Sub(remaining, amount)
	return l.open(spender, amount, lockDays, day), nil
}

func (l *MemLedger) open(owner [20]byte, amount *big.Int, lockDays, day uint64) uint64 {
	pos := &position{
		id:        l.nextID,
		principal: new(big.Int).Set(amount),
		shares:    new(big.Int).Set(amount),
		startDay:  day + 1,
		lockDays:  lockDays,
	}
	l.nextID++
	l.positions[owner] = append(l.positions[owner], pos)
	l.totalStaked = new(big.Int).Add(l.totalStaked, amount)
	return pos.id
}

// End closes a stake. A pending stake is cancelled and refunded; a fully
// served stake pays out its principal. Active stakes cannot be ended early.
// Removal uses swap-with-last so indices stay dense.
func (l *MemLedger) End(owner [20]byte, index int, stakeID, day uint64) (*big.Int, error) {
	pos, err := l.at(owner, index, stakeID)
	if err != nil {
		return nil, err
	}
	if statusOn(pos, day) == StatusActive {
		return nil, ErrStakeLocked
	}

	payout := new(big.Int).Set(pos.principal)
	l.totalStaked = new(big.Int).Sub(l.totalStaked, pos.principal)
	l.Fund(owner, payout)

	list := l.positions[owner]
	last := len(list) - 1
	list[index] = list[last]
	l.positions[owner] = list[:last]
	return payout, nil
}

// Query reports the position at the owner's index with its day-dependent
// status.
func (l *MemLedger) Query(owner [20]byte, index int, day uint64) (Position, error) {
	list := l.positions[owner]
	if index < 0 || index >= len(list) {
		return Position{}, ErrIndexMismatch
	}
	pos := list[index]
	return Position{
		ID:        pos.id,
		Principal: new(big.Int).Set(pos.principal),
		Shares:    new(big.Int).Set(pos.shares),
		StartDay:  pos.startDay,
		LockDays:  pos.lockDays,
		Status:    statusOn(pos, day),
	}, nil
}

// Count reports how many open positions the owner has.
func (l *MemLedger) Count(owner [20]byte) int {
	return len(l.positions[owner])
}

// AccountingUpdate is the pass-through maintenance hook. The reference
// ledger keeps per-position bonus state current on query, so only the
// index/id pair is validated.
func (l *MemLedger) AccountingUpdate(owner [20]byte, index int, stakeID uint64) error {
	_, err := l.at(owner, index, stakeID)
	return err
}

// TotalStaked returns a copy of the aggregate staked principal.
func (l *MemLedger) TotalStaked() *big.Int {
	return new(big.Int).Set(l.totalStaked)
}

func (l *MemLedger) at(owner [20]byte, index int, stakeID uint64) (*position, error) {
	list := l.positions[owner]
	if index < 0 || index >= len(list) {
		return nil, ErrIndexMismatch
	}
	pos := list[index]
	if pos.id != stakeID {
		return nil, ErrIndexMismatch
	}
	return pos, nil
}

func statusOn(pos *position, day uint64) Status {
	switch {
	case day < pos.startDay:
		return StatusPending
	case day < pos.startDay+pos.lockDays:
		return StatusActive
	default:
		return StatusEnded
	}
}

func (l *MemLedger) debit(addr [20]byte, amount *big.Int) error {
	bal, ok := l.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBal
	}
	l.balances[addr] = new(big.Int).Sub(bal, amount)
	return nil
}

// Snapshot is the JSON-serialisable form of the ledger.
type Snapshot struct {
	NextID      uint64                         `json:"nextId"`
	Positions   map[string][]PositionSnapshot  `json:"positions"`
	Balances    map[string]*big.Int            `json:"balances"`
	Allowances  map[string]map[string]*big.Int `json:"allowances"`
	TotalStaked *big.Int                       `json:"totalStaked"`
}

// PositionSnapshot serialises one stored position.
type PositionSnapshot struct {
	ID        uint64   `json:"id"`
	Principal *big.Int `json:"principal"`
	Shares    *big.Int `json:"shares"`
	StartDay  uint64   `json:"startDay"`
	LockDays  uint64   `json:"lockDays"`
}

func (l *MemLedger) Snapshot() *Snapshot {
	snap := &Snapshot{
		NextID:      l.nextID,
		Positions:   make(map[string][]PositionSnapshot, len(l.positions)),
		Balances:    make(map[string]*big.Int, len(l.balances)),
		Allowances:  make(map[string]map[string]*big.Int, len(l.allowances)),
		TotalStaked: new(big.Int).Set(l.totalStaked),
	}
	for owner, list := range l.positions {
		encoded := make([]PositionSnapshot, 0, len(list))
		for _, pos := range list {
			encoded = append(encoded, PositionSnapshot{
				ID:        pos.id,
				Principal: new(big.Int).Set(pos.principal),
				Shares:    new(big.Int).Set(pos.shares),
				StartDay:  pos.startDay,
				LockDays:  pos.lockDays,
			})
		}
		snap.Positions[hex.EncodeToString(owner[:])] = encoded
	}
	for addr, bal := range l.balances {
		snap.Balances[hex.EncodeToString(addr[:])] = new(big.Int).Set(bal)
	}
	for owner, grants := range l.allowances {
		encoded := make(map[string]*big.Int, len(grants))
		for spender, amount := range grants {
			encoded[hex.EncodeToString(spender[:])] = new(big.Int).Set(amount)
		}
		snap.Allowances[hex.EncodeToString(owner[:])] = encoded
	}
	return snap
}

func (l *MemLedger) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	positions := make(map[[20]byte][]*position, len(snap.Positions))
	for key, list := range snap.Positions {
		owner, err := decodeKey(key)
		if err != nil {
			return err
		}
		decoded := make([]*position, 0, len(list))
		for _, pos := range list {
			decoded = append(decoded, &position{
				id:        pos.ID,
				principal: new(big.Int).Set(pos.Principal),
				shares:    new(big.Int).Set(pos.Shares),
				startDay:  pos.StartDay,
				lockDays:  pos.LockDays,
			})
		}
		positions[owner] = decoded
	}
	balances := make(map[[20]byte]*big.Int, len(snap.Balances))
	for key, bal := range snap.Balances {
		addr, err := decodeKey(key)
		if err != nil {
			return err
		}
		balances[addr] = new(big.Int).Set(bal)
	}
	allowances := make(map[[20]byte]map[[20]byte]*big.Int, len(snap.Allowances))
	for ownerKey, grants := range snap.Allowances {
		owner, err := decodeKey(ownerKey)
		if err != nil {
			return err
		}
		decoded := make(map[[20]byte]*big.Int, len(grants))
		for spenderKey, amount := range grants {
			spender, err := decodeKey(spenderKey)
			if err != nil {
				return err
			}
			decoded[spender] = new(big.Int).Set(amount)
		}
		allowances[owner] = decoded
	}
	l.nextID = snap.NextID
	if l.nextID == 0 {
		l.nextID = 1
	}
	l.positions = positions
	l.balances = balances
	l.allowances = allowances
	l.totalStaked = big.NewInt(0)
	if snap.TotalStaked != nil {
		l.totalStaked = new(big.Int).Set(snap.TotalStaked)
	}
	return nil
}

func decodeKey(key string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(key)
	if err != nil {
		return out, fmt.Errorf("stake: invalid snapshot key %q: %w", key, err)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("stake: invalid snapshot key length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
