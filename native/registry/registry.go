package registry

import (
	"errors"
	"math/big"

	"lockmint/core/events"
	nativecommon "lockmint/native/common"
	"lockmint/native/stake"
)

var (
	errNilLedger      = errors.New("registry: stake ledger not configured")
	ErrProxyNotFound  = errors.New("registry: proxy not found")
	ErrNotOwner       = errors.New("registry: caller does not own the proxy")
	ErrNotTokenHolder = errors.New("registry: caller does not hold the token")
	ErrTokenNotFound  = errors.New("registry: token not found")
	ErrLoanActive     = errors.New("registry: proxy has an active loan")
	ErrStakeActive    = errors.New("registry: stake still serving its lock")
	ErrTokenized      = errors.New("registry: proxy ownership is tokenized")
	ErrIndexMismatch  = errors.New("registry: proxy index mismatch")
)

const moduleName = "registry"

const (
	royaltyNumerator   = 15
	royaltyDenominator = 1000
)

// OwnershipKind distinguishes direct proxy ownership from tokenized
// ownership. The two are mutually exclusive.
type OwnershipKind uint8

const (
	KindDirect OwnershipKind = iota
	KindToken
)

// Ownership tags how a proxy is held. Direct ownership carries the owner
// address and a position in that owner's list; tokenized ownership carries
// the token id and the holder is looked up in the token index.
type Ownership struct {
	Kind    OwnershipKind `json:"kind"`
	Owner   [20]byte      `json:"owner"`
	TokenID uint64        `json:"tokenId"`
}

// Proxy wraps a stake held by a dedicated custody address so the position
// can be owned, tokenized and traded independently of the staking program.
type Proxy struct {
	ID        uint64    `json:"id"`
	StakeID   uint64    `json:"stakeId"`
	Custody   [20]byte  `json:"custody"`
	Ownership Ownership `json:"ownership"`
	ListIndex int       `json:"listIndex"`
}

// Clone returns a copy of the proxy record.
func (p *Proxy) Clone() *Proxy {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// LoanView is the loan engine surface the registry needs: whether a proxy
// currently secures a loan.
type LoanView interface {
	Active(proxyID uint64) bool
}

// Registry tracks wrapped stake proxies. Each proxy's stake lives under a
// per-proxy custody address at index zero of that address's list, so stake
// indices never shift underneath the registry.
type Registry struct {
	stakes     stake.Ledger
	loans      LoanView
	custodyFor func(proxyID uint64) [20]byte
	emitter    events.Emitter
	pauses     nativecommon.PauseView

	nextProxyID  uint64
	nextTokenID  uint64
	proxies      map[uint64]*Proxy
	ownerLists   map[[20]byte][]uint64
	tokenHolders map[uint64][20]byte
	tokenProxies map[uint64]uint64
}

func NewRegistry(stakes stake.Ledger, custodyFor func(uint64) [20]byte) *Registry {
	return &Registry{
		stakes:       stakes,
		custodyFor:   custodyFor,
		emitter:      events.NoopEmitter{},
		nextProxyID:  1,
		nextTokenID:  1,
		proxies:      make(map[uint64]*Proxy),
		ownerLists:   make(map[[20]byte][]uint64),
		tokenHolders: make(map[uint64][20]byte),
		tokenProxies: make(map[uint64]uint64),
	}
}

// SetLoans wires the loan engine view used to block end/tokenize while a
// loan is active.
func (r *Registry) SetLoans(loans LoanView) {
	r.loans = loans
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// Create opens a wrapped stake. Stake currency is pulled from the owner
// against a prior allowance grant to the proxy's custody address.
func (r *Registry) Create(owner [20]byte, amount *big.Int, lockDays, day uint64) (*Proxy, error) {
	if r == nil || r.stakes == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}

	proxyID := r.nextProxyID
	custody := r.custodyFor(proxyID)
	stakeID, err := r.stakes.OpenFrom(custody, owner, amount, lockDays, day)
	if err != nil {
		return nil, err
	}
	r.nextProxyID++

	proxy := &Proxy{
		ID:        proxyID,
		StakeID:   stakeID,
		Custody:   custody,
		Ownership: Ownership{Kind: KindDirect, Owner: owner},
	}
	r.proxies[proxyID] = proxy
	r.appendToList(owner, proxy)

	r.emitter.Emit(events.StakeWrapped{
		ProxyID:  proxyID,
		StakeID:  stakeID,
		Owner:    owner,
		Amount:   new(big.Int).Set(amount),
		LockDays: lockDays,
	})
	return proxy.Clone(), nil
}

// End closes a wrapped stake and pays the custody balance out to the owner.
// The stake must be pending or fully served and the proxy loan-free. The
// caller addresses the proxy by its (index, proxyId) pair; a stale pair is
// rejected.
func (r *Registry) End(caller [20]byte, index int, proxyID, day uint64) (*big.Int, error) {
	if r == nil || r.stakes == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	proxy, err := r.ownedBy(caller, proxyID)
	if err != nil {
		return nil, err
	}
	if err := r.VerifyHeld(caller, index, proxyID); err != nil {
		return nil, err
	}
	if r.loans != nil && r.loans.Active(proxyID) {
		return nil, ErrLoanActive
	}

	pos, err := r.stakes.Query(proxy.Custody, 0, day)
	if err != nil {
		return nil, err
	}
	if pos.Status == stake.StatusActive {
		return nil, ErrStakeActive
	}

	payout, err := r.stakes.End(proxy.Custody, 0, proxy.StakeID, day)
	if err != nil {
		return nil, err
	}
	if err := r.stakes.Transfer(proxy.Custody, caller, payout); err != nil {
		return nil, err
	}

	r.removeFromList(caller, proxy)
	delete(r.proxies, proxyID)

	r.emitter.Emit(events.StakeUnwrapped{
		ProxyID: proxyID,
		StakeID: proxy.StakeID,
		Owner:   caller,
		Payout:  new(big.Int).Set(payout),
	})
	return payout, nil
}

// Tokenize converts direct ownership into a transferable token. Loaned
// proxies cannot be tokenized.
func (r *Registry) Tokenize(caller [20]byte, proxyID uint64) (uint64, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return 0, err
	}
	proxy, err := r.ownedBy(caller, proxyID)
	if err != nil {
		return 0, err
	}
	if r.loans != nil && r.loans.Active(proxyID) {
		return 0, ErrLoanActive
	}

	r.removeFromList(caller, proxy)
	tokenID := r.nextTokenID
	r.nextTokenID++
	proxy.Ownership = Ownership{Kind: KindToken, TokenID: tokenID}
	proxy.ListIndex = 0
	r.tokenHolders[tokenID] = caller
	r.tokenProxies[tokenID] = proxyID

	r.emitter.Emit(events.StakeTokenized{ProxyID: proxyID, TokenID: tokenID, Owner: caller})
	return tokenID, nil
}

// Detokenize burns the token and restores direct ownership to the holder.
func (r *Registry) Detokenize(caller [20]byte, tokenID uint64) (*Proxy, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	holder, ok := r.tokenHolders[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if holder != caller {
		return nil, ErrNotTokenHolder
	}

	proxyID := r.tokenProxies[tokenID]
	proxy := r.proxies[proxyID]
	delete(r.tokenHolders, tokenID)
	delete(r.tokenProxies, tokenID)
	proxy.Ownership = Ownership{Kind: KindDirect, Owner: caller}
	r.appendToList(caller, proxy)

	r.emitter.Emit(events.StakeDetokenized{ProxyID: proxyID, TokenID: tokenID, Holder: caller})
	return proxy.Clone(), nil
}

// TransferToken moves a tokenized proxy between holders.
func (r *Registry) TransferToken(from, to [20]byte, tokenID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	holder, ok := r.tokenHolders[tokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if holder != from {
		return ErrNotTokenHolder
	}
	r.tokenHolders[tokenID] = to
	return nil
}

// TransferProxy moves direct ownership between accounts. Used by the
// liquidation settlement to hand the proxy to the winning bidder.
func (r *Registry) TransferProxy(from, to [20]byte, proxyID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	proxy, err := r.ownedBy(from, proxyID)
	if err != nil {
		return err
	}
	r.removeFromList(from, proxy)
	proxy.Ownership.Owner = to
	r.appendToList(to, proxy)
	return nil
}

// OwnerOf resolves the holder of a token.
func (r *Registry) OwnerOf(tokenID uint64) ([20]byte, error) {
	holder, ok := r.tokenHolders[tokenID]
	if !ok {
		return [20]byte{}, ErrTokenNotFound
	}
	return holder, nil
}

// RoyaltyInfo reports the flat 1.5% royalty due on a token sale.
func (r *Registry) RoyaltyInfo(salePrice *big.Int) *big.Int {
	if salePrice == nil || salePrice.Sign() <= 0 {
		return big.NewInt(0)
	}
	royalty := new(big.Int).Mul(salePrice, big.NewInt(royaltyNumerator))
	return royalty.Quo(royalty, big.NewInt(royaltyDenominator))
}

// Get returns a copy of the proxy record.
func (r *Registry) Get(proxyID uint64) (*Proxy, error) {
	proxy, ok := r.proxies[proxyID]
	if !ok {
		return nil, ErrProxyNotFound
	}
	return proxy.Clone(), nil
}

// Position reports the underlying stake as of the given day.
func (r *Registry) Position(proxyID, day uint64) (stake.Position, error) {
	proxy, ok := r.proxies[proxyID]
	if !ok {
		return stake.Position{}, ErrProxyNotFound
	}
	return r.stakes.Query(proxy.Custody, 0, day)
}

// AccountingUpdate runs the staking program's maintenance hook on the
// proxy's underlying position.
func (r *Registry) AccountingUpdate(proxyID uint64) error {
	proxy, ok := r.proxies[proxyID]
	if !ok {
		return ErrProxyNotFound
	}
	return r.stakes.AccountingUpdate(proxy.Custody, 0, proxy.StakeID)
}

// CountOwned reports how many proxies the owner holds directly.
func (r *Registry) CountOwned(owner [20]byte) int {
	return len(r.ownerLists[owner])
}

// VerifyHeld checks that the owner's list carries the proxy at the given
// position. List slots reshuffle when a proxy leaves, so operations addressed
// by an (index, proxyId) pair fail on a stale index instead of touching a
// different proxy.
func (r *Registry) VerifyHeld(owner [20]byte, index int, proxyID uint64) error {
	list := r.ownerLists[owner]
	if index < 0 || index >= len(list) || list[index] != proxyID {
		return ErrIndexMismatch
	}
	return nil
}

// OwnedAt returns the owner's proxy at the given list position.
func (r *Registry) OwnedAt(owner [20]byte, index int) (*Proxy, error) {
	list := r.ownerLists[owner]
	if index < 0 || index >= len(list) {
		return nil, ErrProxyNotFound
	}
	return r.proxies[list[index]].Clone(), nil
}

func (r *Registry) ownedBy(caller [20]byte, proxyID uint64) (*Proxy, error) {
	proxy, ok := r.proxies[proxyID]
	if !ok {
		return nil, ErrProxyNotFound
	}
	if proxy.Ownership.Kind == KindToken {
		return nil, ErrTokenized
	}
	if proxy.Ownership.Owner != caller {
		return nil, ErrNotOwner
	}
	return proxy, nil
}

func (r *Registry) appendToList(owner [20]byte, proxy *Proxy) {
	list := r.ownerLists[owner]
	proxy.ListIndex = len(list)
	r.ownerLists[owner] = append(list, proxy.ID)
}

// removeFromList deletes the proxy from the owner's list by swapping the
// last entry into its slot and fixing that entry's back-index.
func (r *Registry) removeFromList(owner [20]byte, proxy *Proxy) {
	list := r.ownerLists[owner]
	last := len(list) - 1
	moved := list[last]
	list[proxy.ListIndex] = moved
	r.ownerLists[owner] = list[:last]
	if moved != proxy.ID {
		r.proxies[moved].ListIndex = proxy.ListIndex
	}
	if last == 0 {
		delete(r.ownerLists, owner)
	}
}
