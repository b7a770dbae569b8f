package registry

import (
	"encoding/hex"
	"fmt"
)

// Snapshot is the JSON-serialisable form of the registry. Owner lists are
// rebuilt from the proxies' own list indices on restore.
type Snapshot struct {
	NextProxyID  uint64            `json:"nextProxyId"`
	NextTokenID  uint64            `json:"nextTokenId"`
	Proxies      []*Proxy          `json:"proxies"`
	TokenHolders map[uint64]string `json:"tokenHolders"`
}

func (r *Registry) Snapshot() *Snapshot {
	snap := &Snapshot{
		NextProxyID:  r.nextProxyID,
		NextTokenID:  r.nextTokenID,
		Proxies:      make([]*Proxy, 0, len(r.proxies)),
		TokenHolders: make(map[uint64]string, len(r.tokenHolders)),
	}
	for _, proxy := range r.proxies {
		snap.Proxies = append(snap.Proxies, proxy.Clone())
	}
	for tokenID, holder := range r.tokenHolders {
		snap.TokenHolders[tokenID] = hex.EncodeToString(holder[:])
	}
	return snap
}

func (r *Registry) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	proxies := make(map[uint64]*Proxy, len(snap.Proxies))
	ownerLists := make(map[[20]byte][]uint64)
	tokenProxies := make(map[uint64]uint64)
	for _, proxy := range snap.Proxies {
		stored := proxy.Clone()
		proxies[stored.ID] = stored
		switch stored.Ownership.Kind {
		case KindDirect:
			owner := stored.Ownership.Owner
			list := ownerLists[owner]
			for len(list) <= stored.ListIndex {
				list = append(list, 0)
			}
			list[stored.ListIndex] = stored.ID
			ownerLists[owner] = list
		case KindToken:
			tokenProxies[stored.Ownership.TokenID] = stored.ID
		}
	}
	tokenHolders := make(map[uint64][20]byte, len(snap.TokenHolders))
	for tokenID, encoded := range snap.TokenHolders {
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != 20 {
			return fmt.Errorf("registry: invalid snapshot holder for token %d", tokenID)
		}
		var holder [20]byte
		copy(holder[:], raw)
		tokenHolders[tokenID] = holder
	}
	r.nextProxyID = snap.NextProxyID
	if r.nextProxyID == 0 {
		r.nextProxyID = 1
	}
	r.nextTokenID = snap.NextTokenID
	if r.nextTokenID == 0 {
		r.nextTokenID = 1
	}
	r.proxies = proxies
	r.ownerLists = ownerLists
	r.tokenHolders = tokenHolders
	r.tokenProxies = tokenProxies
	return nil
}
