package registry

import (
	"fmt"
	"strings"
	"time"
)

// RegisterLand creates a parcel owned by caller and returns its identifier.
// Preconditions are checked in order: coordinates, dimensions, description,
// land type, then overlap with every existing parcel.
func (e *Engine) RegisterLand(caller Principal, reg Registration) (LandID, error) {
	var id LandID
	err := e.mutate(OpRegister, caller, func(st *state, now time.Time) (commit, error) {
		if !ValidateCoordinates(reg.Coordinates) {
			return commit{}, fmt.Errorf("%w: %+v", ErrInvalidCoordinates, reg.Coordinates)
		}
		if !ValidateDimensions(reg.Dimensions) {
			return commit{}, fmt.Errorf("%w: %+v", ErrInvalidDimensions, reg.Dimensions)
		}
		if strings.TrimSpace(reg.Description) == "" {
			return commit{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
		}
		if !reg.LandType.Valid() {
			return commit{}, fmt.Errorf("%w: unknown land type %q", ErrInvalidInput, reg.LandType)
		}
		if other, ok := st.overlapping(reg.Coordinates, reg.Dimensions, nil); ok {
			return commit{}, fmt.Errorf("%w: overlaps land %d", ErrLandAlreadyExists, other)
		}

		// The top identifier is reserved, so reaching it means none are left.
		if st.nextID == ^LandID(0) {
			return commit{}, fmt.Errorf("%w: land identifiers exhausted", ErrInvalidInput)
		}
		id = st.nextID
		land := LandRecord{
			ID:          id,
			Owner:       caller,
			Coordinates: reg.Coordinates,
			Dimensions:  reg.Dimensions,
			LandType:    reg.LandType,
			Description: reg.Description,
			Metadata:    reg.Metadata.clone(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return commit{
			subject: id,
			put:     []LandRecord{land},
			ledger: []TransactionRecord{{
				LandID:    id,
				From:      Anonymous,
				To:        caller,
				Kind:      KindRegistration,
				Timestamp: now,
			}},
			nextID:  id + 1,
			advance: true,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Land returns a copy of one parcel.
func (e *Engine) Land(id LandID) (LandRecord, bool) {
	var (
		out LandRecord
		ok  bool
	)
	e.view(func(st *state) {
		var land LandRecord
		land, ok = st.lands[id]
		if ok {
			out = land.clone()
		}
	})
	return out, ok
}

// Lands returns every parcel ordered by identifier.
func (e *Engine) Lands() []LandRecord {
	return e.filterLands(nil)
}

// LandOwner returns the current owner of id.
func (e *Engine) LandOwner(id LandID) (Principal, bool) {
	land, ok := e.Land(id)
	return land.Owner, ok
}

// VerifyOwnership reports whether claimed currently owns id.
func (e *Engine) VerifyOwnership(id LandID, claimed Principal) bool {
	owner, ok := e.LandOwner(id)
	return ok && owner == claimed
}

// LandsByOwner resolves the ownership index for owner.
func (e *Engine) LandsByOwner(owner Principal) []LandRecord {
	var out []LandRecord
	e.view(func(st *state) {
		set := st.owners[owner]
		ids := make([]LandID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sortIDs(ids)
		out = make([]LandRecord, 0, len(ids))
		for _, id := range ids {
			if land, ok := st.lands[id]; ok {
				out = append(out, land.clone())
			}
		}
	})
	return out
}

// LandCountByOwner returns how many parcels owner holds.
func (e *Engine) LandCountByOwner(owner Principal) uint64 {
	var n uint64
	e.view(func(st *state) {
		n = uint64(len(st.owners[owner]))
	})
	return n
}

// LandsByType returns every parcel tagged t.
func (e *Engine) LandsByType(t LandType) []LandRecord {
	return e.filterLands(func(land LandRecord) bool { return land.LandType == t })
}

// TotalSupply returns the number of existing parcels.
func (e *Engine) TotalSupply() uint64 {
	var n uint64
	e.view(func(st *state) {
		n = uint64(len(st.lands))
	})
	return n
}

// NextLandID returns the identifier the next registration will receive.
func (e *Engine) NextLandID() LandID {
	var id LandID
	e.view(func(st *state) {
		id = st.nextID
	})
	return id
}

// TransferLand moves id from caller to newOwner and drops any listing for it.
func (e *Engine) TransferLand(caller Principal, id LandID, newOwner Principal) error {
	return e.mutate(OpTransfer, caller, func(st *state, now time.Time) (commit, error) {
		land, ok := st.lands[id]
		if !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotFound, id)
		}
		if land.Owner != caller {
			return commit{}, fmt.Errorf("%w: %q does not own land %d", ErrUnauthorized, caller, id)
		}
		if newOwner == caller {
			return commit{}, fmt.Errorf("%w: cannot transfer land to its owner", ErrInvalidInput)
		}
		if strings.TrimSpace(string(newOwner)) == "" {
			return commit{}, fmt.Errorf("%w: new owner is required", ErrInvalidInput)
		}
		return ownershipChange(land, newOwner, now, KindTransfer, nil), nil
	})
}

// ownershipChange builds the commit shared by transfer and sale.
func ownershipChange(land LandRecord, to Principal, now time.Time, kind TransactionKind, price *Price) commit {
	from := land.Owner
	land = land.clone()
	land.Owner = to
	land.UpdatedAt = now
	return commit{
		subject: land.ID,
		unlist:  []LandID{land.ID},
		put:     []LandRecord{land},
		ledger: []TransactionRecord{{
			LandID:    land.ID,
			From:      from,
			To:        to,
			Price:     price,
			Kind:      kind,
			Timestamp: now,
		}},
	}
}

// UpdateLandMetadata replaces the metadata of a parcel owned by caller.
// Existing listings keep the metadata captured when they were created.
func (e *Engine) UpdateLandMetadata(caller Principal, id LandID, meta LandMetadata) error {
	return e.mutate(OpUpdateMetadata, caller, func(st *state, now time.Time) (commit, error) {
		land, ok := st.lands[id]
		if !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotFound, id)
		}
		if land.Owner != caller {
			return commit{}, fmt.Errorf("%w: %q does not own land %d", ErrUnauthorized, caller, id)
		}
		land = land.clone()
		land.Metadata = meta.clone()
		land.UpdatedAt = now
		return commit{subject: id, put: []LandRecord{land}}, nil
	})
}

func (e *Engine) filterLands(keep func(LandRecord) bool) []LandRecord {
	var out []LandRecord
	e.view(func(st *state) {
		out = make([]LandRecord, 0, len(st.lands))
		for _, id := range st.sortedLandIDs() {
			land := st.lands[id]
			if keep == nil || keep(land) {
				out = append(out, land.clone())
			}
		}
	})
	return out
}
