package registry

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the persisted form of a registry. Owner and coordinate
// indices are derived and rebuilt on Restore.
type Snapshot struct {
	Lands    []LandRecord        `json:"lands" cbor:"lands"`
	Listings []Listing           `json:"listings" cbor:"listings"`
	Ledger   []TransactionRecord `json:"ledger" cbor:"ledger"`
	Admins   []Principal         `json:"admins" cbor:"admins"`
	NextID   LandID              `json:"next_id" cbor:"next_id"`
}

// Snapshot copies the whole registry state.
func (e *Engine) Snapshot() Snapshot {
	var snap Snapshot
	e.view(func(st *state) {
		snap.Lands = make([]LandRecord, 0, len(st.lands))
		for _, id := range st.sortedLandIDs() {
			snap.Lands = append(snap.Lands, st.lands[id].clone())
		}
		ids := make([]LandID, 0, len(st.market))
		for id := range st.market {
			ids = append(ids, id)
		}
		sortIDs(ids)
		snap.Listings = make([]Listing, 0, len(ids))
		for _, id := range ids {
			snap.Listings = append(snap.Listings, st.market[id].clone())
		}
		snap.Ledger = cloneLedger(st.ledger)
		snap.Admins = sortedAdmins(st.admins)
		snap.NextID = st.nextID
	})
	return snap
}

// Restore replaces every registry component with snap. The snapshot is
// validated as a whole first; on error the registry is unchanged.
func (e *Engine) Restore(snap Snapshot) error {
	return e.mutate(OpRestore, "", func(_ *state, _ time.Time) (commit, error) {
		next, err := stateFromSnapshot(snap)
		if err != nil {
			return commit{}, err
		}
		return commit{swap: next}, nil
	})
}

func stateFromSnapshot(snap Snapshot) (*state, error) {
	lands, next, err := buildLandStore(snap.Lands)
	if err != nil {
		return nil, err
	}
	if snap.NextID < next {
		return nil, fmt.Errorf("%w: next id %d is not above stored lands", ErrInvalidInput, snap.NextID)
	}
	st := newState()
	st.lands = lands
	st.nextID = snap.NextID
	st.rebuildIndexes()

	for _, listing := range snap.Listings {
		land, ok := lands[listing.LandID]
		if !ok {
			return nil, fmt.Errorf("%w: listing for missing land %d", ErrLandNotFound, listing.LandID)
		}
		if listing.Seller != land.Owner {
			return nil, fmt.Errorf("%w: listing for land %d is not by its owner", ErrUnauthorized, listing.LandID)
		}
		if listing.Price == 0 {
			return nil, fmt.Errorf("%w: listing for land %d has zero price", ErrInvalidInput, listing.LandID)
		}
		if _, dup := st.market[listing.LandID]; dup {
			return nil, fmt.Errorf("%w: duplicate listing for land %d", ErrInvalidInput, listing.LandID)
		}
		st.market[listing.LandID] = listing.clone()
	}
	st.ledger = cloneLedger(snap.Ledger)
	for _, p := range snap.Admins {
		if strings.TrimSpace(string(p)) == "" {
			return nil, fmt.Errorf("%w: blank admin principal", ErrInvalidInput)
		}
		st.admins[p] = struct{}{}
	}
	if len(st.admins) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no admins", ErrInvalidInput)
	}
	return &st, nil
}
