package core

import (
	"sort"

	"lockmint/native/liquidation"
	"lockmint/native/loan"
	"lockmint/native/minting"
)

// State is the shared engine-state store behind the minting, loan and
// liquidation engines, plus the administrative pause switchboard. It
// satisfies each engine's narrow state interface.
type State struct {
	mintRecords  map[uint64]*minting.Record
	loans        map[uint64]*loan.Loan
	liquidations map[uint64]*liquidation.Liquidation
	nextLiqID    uint64
	paused       map[string]bool
}

func NewState() *State {
	return &State{
		mintRecords:  make(map[uint64]*minting.Record),
		loans:        make(map[uint64]*loan.Loan),
		liquidations: make(map[uint64]*liquidation.Liquidation),
		nextLiqID:    1,
		paused:       make(map[string]bool),
	}
}

func (s *State) GetMintRecord(stakeID uint64) *minting.Record {
	return s.mintRecords[stakeID]
}

func (s *State) PutMintRecord(record *minting.Record) {
	s.mintRecords[record.StakeID] = record
}

func (s *State) GetLoan(proxyID uint64) *loan.Loan {
	return s.loans[proxyID]
}

func (s *State) PutLoan(l *loan.Loan) {
	s.loans[l.ProxyID] = l
}

func (s *State) DeleteLoan(proxyID uint64) {
	delete(s.loans, proxyID)
}

func (s *State) GetLiquidation(id uint64) *liquidation.Liquidation {
	return s.liquidations[id]
}

func (s *State) PutLiquidation(liq *liquidation.Liquidation) {
	s.liquidations[liq.ID] = liq
}

func (s *State) DeleteLiquidation(id uint64) {
	delete(s.liquidations, id)
}

func (s *State) LiquidationByProxy(proxyID uint64) *liquidation.Liquidation {
	var found *liquidation.Liquidation
	for _, liq := range s.liquidations {
		if liq.ProxyID != proxyID {
			continue
		}
		if found == nil || liq.ID > found.ID {
			found = liq
		}
	}
	return found
}

func (s *State) NextLiquidationID() uint64 {
	id := s.nextLiqID
	s.nextLiqID++
	return id
}

// SetPaused toggles the administrative pause flag for a module name.
func (s *State) SetPaused(module string, paused bool) {
	if paused {
		s.paused[module] = true
		return
	}
	delete(s.paused, module)
}

// IsPaused satisfies common.PauseView.
func (s *State) IsPaused(module string) bool {
	return s.paused[module]
}

// Snapshot is the JSON-serialisable form of the shared engine state.
// Records are flattened into sorted slices for stable encoding.
type StateSnapshot struct {
	MintRecords  []*minting.Record          `json:"mintRecords"`
	Loans        []*loan.Loan               `json:"loans"`
	Liquidations []*liquidation.Liquidation `json:"liquidations"`
	NextLiqID    uint64                     `json:"nextLiquidationId"`
	Paused       []string                   `json:"paused,omitempty"`
}

func (s *State) Snapshot() *StateSnapshot {
	snap := &StateSnapshot{
		MintRecords:  make([]*minting.Record, 0, len(s.mintRecords)),
		Loans:        make([]*loan.Loan, 0, len(s.loans)),
		Liquidations: make([]*liquidation.Liquidation, 0, len(s.liquidations)),
		NextLiqID:    s.nextLiqID,
	}
	for _, record := range s.mintRecords {
		copied := *record
		snap.MintRecords = append(snap.MintRecords, &copied)
	}
	sort.Slice(snap.MintRecords, func(i, j int) bool {
		return snap.MintRecords[i].StakeID < snap.MintRecords[j].StakeID
	})
	for _, l := range s.loans {
		snap.Loans = append(snap.Loans, l.Clone())
	}
	sort.Slice(snap.Loans, func(i, j int) bool {
		return snap.Loans[i].ProxyID < snap.Loans[j].ProxyID
	})
	for _, liq := range s.liquidations {
		snap.Liquidations = append(snap.Liquidations, liq.Clone())
	}
	sort.Slice(snap.Liquidations, func(i, j int) bool {
		return snap.Liquidations[i].ID < snap.Liquidations[j].ID
	})
	for module := range s.paused {
		snap.Paused = append(snap.Paused, module)
	}
	sort.Strings(snap.Paused)
	return snap
}

func (s *State) Restore(snap *StateSnapshot) error {
	if snap == nil {
		return nil
	}
	mintRecords := make(map[uint64]*minting.Record, len(snap.MintRecords))
	for _, record := range snap.MintRecords {
		copied := *record
		mintRecords[copied.StakeID] = &copied
	}
	loans := make(map[uint64]*loan.Loan, len(snap.Loans))
	for _, l := range snap.Loans {
		loans[l.ProxyID] = l.Clone()
	}
	liquidations := make(map[uint64]*liquidation.Liquidation, len(snap.Liquidations))
	for _, liq := range snap.Liquidations {
		liquidations[liq.ID] = liq.Clone()
	}
	paused := make(map[string]bool, len(snap.Paused))
	for _, module := range snap.Paused {
		paused[module] = true
	}
	s.mintRecords = mintRecords
	s.loans = loans
	s.liquidations = liquidations
	s.nextLiqID = snap.NextLiqID
	if s.nextLiqID == 0 {
		s.nextLiqID = 1
	}
	s.paused = paused
	return nil
}
