package core

import (
	"lockmint/native/accrual"
	"lockmint/native/registry"
	"lockmint/native/stake"
	"lockmint/native/token"
)

// Snapshot is the whole-engine persistence image. The stake ledger section
// is present only when the engine runs over the in-repo reference ledger;
// an external ledger persists itself.
type Snapshot struct {
	State    *StateSnapshot     `json:"state"`
	Tokens   *token.Snapshot    `json:"tokens"`
	Days     *accrual.Snapshot  `json:"days"`
	Registry *registry.Snapshot `json:"registry"`
	Stakes   *stake.Snapshot    `json:"stakes,omitempty"`
}

func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := &Snapshot{
		State:    e.state.Snapshot(),
		Tokens:   e.tokens.Snapshot(),
		Days:     e.days.Snapshot(),
		Registry: e.registry.Snapshot(),
	}
	if mem, ok := e.stakes.(*stake.MemLedger); ok {
		snap.Stakes = mem.Snapshot()
	}
	return snap
}

func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.state.Restore(snap.State); err != nil {
		return err
	}
	if err := e.tokens.Restore(snap.Tokens); err != nil {
		return err
	}
	if err := e.days.Restore(snap.Days); err != nil {
		return err
	}
	if err := e.registry.Restore(snap.Registry); err != nil {
		return err
	}
	if snap.Stakes != nil {
		if mem, ok := e.stakes.(*stake.MemLedger); ok {
			return mem.Restore(snap.Stakes)
		}
	}
	return nil
}
