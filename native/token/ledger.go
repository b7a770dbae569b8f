package token

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: burn amount exceeds allowance")
)

// Ledger tracks reward-token balances, allowances and the circulating supply.
// All amounts are big integers; the ledger never retains caller-owned values.
type Ledger struct {
	balances    map[[20]byte]*big.Int
	allowances  map[[20]byte]map[[20]byte]*big.Int
	totalSupply *big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:    make(map[[20]byte]*big.Int),
		allowances:  make(map[[20]byte]map[[20]byte]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// TotalSupply returns a copy of the circulating supply.
func (l *Ledger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.totalSupply)
}

// Mint credits newly issued tokens to the account and grows the supply.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.credit(addr, amount)
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
	return nil
}

// Burn destroys tokens held by the account and shrinks the supply.
func (l *Ledger) Burn(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(addr, amount); err != nil {
		return err
	}
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	return nil
}

// Transfer moves tokens between accounts without touching the supply.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Approve grants spender the right to consume amount from owner's balance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	grants, ok := l.allowances[owner]
	if !ok {
		grants = make(map[[20]byte]*big.Int)
		l.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns a copy of the remaining grant from owner to spender.
func (l *Ledger) Allowance(owner, spender [20]byte) *big.Int {
	if grants, ok := l.allowances[owner]; ok {
		if amount, ok := grants[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// BurnFrom destroys tokens from owner's balance against the grant previously
// issued to spender, reducing both the allowance and the supply.
func (l *Ledger) BurnFrom(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	remaining := l.Allowance(owner, spender)
	if remaining.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, remaining, amount)
	}
	if err := l.Burn(owner, amount); err != nil {
		return err
	}
	l.allowances[owner][spender] = remaining.Sub(remaining, amount)
	return nil
}

func (l *Ledger) credit(addr [20]byte, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = big.NewInt(0)
	}
	l.balances[addr] = new(big.Int).Add(bal, amount)
}

func (l *Ledger) debit(addr [20]byte, amount *big.Int) error {
	bal, ok := l.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[addr] = new(big.Int).Sub(bal, amount)
	return nil
}

// Snapshot is the JSON-serialisable form of the ledger used by the state
// store. Addresses are hex encoded because JSON cannot key maps by arrays.
type Snapshot struct {
	Balances    map[string]*big.Int            `json:"balances"`
	Allowances  map[string]map[string]*big.Int `json:"allowances"`
	TotalSupply *big.Int                       `json:"totalSupply"`
}

func (l *Ledger) Snapshot() *Snapshot {
	snap := &Snapshot{
		Balances:    make(map[string]*big.Int, len(l.balances)),
		Allowances:  make(map[string]map[string]*big.Int, len(l.allowances)),
		TotalSupply: new(big.Int).Set(l.totalSupply),
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

func (l *Ledger) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
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
	l.balances = balances
	l.allowances = allowances
	l.totalSupply = big.NewInt(0)
	if snap.TotalSupply != nil {
		l.totalSupply = new(big.Int).Set(snap.TotalSupply)
	}
	return nil
}

func decodeKey(key string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(key)
	if err != nil {
		return out, fmt.Errorf("token: invalid snapshot key %q: %w", key, err)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("token: invalid snapshot key length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
