package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AddAdmin grants admin rights to p. The caller must already be an admin.
func (e *Engine) AddAdmin(caller, p Principal) error {
	return e.mutate(OpAddAdmin, caller, func(st *state, _ time.Time) (commit, error) {
		if _, ok := st.admins[caller]; !ok {
			return commit{}, fmt.Errorf("%w: %q is not an admin", ErrUnauthorized, caller)
		}
		if strings.TrimSpace(string(p)) == "" {
			return commit{}, fmt.Errorf("%w: admin principal is required", ErrInvalidInput)
		}
		return commit{admins: []Principal{p}}, nil
	})
}

// IsAdmin reports whether p holds admin rights.
func (e *Engine) IsAdmin(p Principal) bool {
	var ok bool
	e.view(func(st *state) {
		_, ok = st.admins[p]
	})
	return ok
}

// Admins returns every admin in sorted order.
func (e *Engine) Admins() []Principal {
	var out []Principal
	e.view(func(st *state) {
		out = sortedAdmins(st.admins)
	})
	return out
}

// RemoveLand deletes a parcel together with its listing and index entries.
// No ledger record is written for a removal.
func (e *Engine) RemoveLand(caller Principal, id LandID) error {
	return e.mutate(OpRemoveLand, caller, func(st *state, _ time.Time) (commit, error) {
		if _, ok := st.admins[caller]; !ok {
			return commit{}, fmt.Errorf("%w: %q is not an admin", ErrUnauthorized, caller)
		}
		if _, ok := st.lands[id]; !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotFound, id)
		}
		return commit{subject: id, remove: []LandID{id}}, nil
	})
}

// BackupLands returns every parcel for an admin caller and an empty slice
// for anyone else.
func (e *Engine) BackupLands(caller Principal) []LandRecord {
	if !e.IsAdmin(caller) {
		return []LandRecord{}
	}
	return e.filterLands(nil)
}

// RestoreLands replaces the land store with records and rebuilds the
// derived indices. Listings whose land is gone or re-owned are dropped; the
// ledger is kept as is. The next identifier never moves backwards.
func (e *Engine) RestoreLands(caller Principal, records []LandRecord) error {
	return e.mutate(OpRestoreLands, caller, func(st *state, _ time.Time) (commit, error) {
		if _, ok := st.admins[caller]; !ok {
			return commit{}, fmt.Errorf("%w: %q is not an admin", ErrUnauthorized, caller)
		}
		lands, next, err := buildLandStore(records)
		if err != nil {
			return commit{}, err
		}
		return commit{replace: lands, nextID: next, advance: true}, nil
	})
}

// buildLandStore validates records as a complete land store and returns it
// keyed by identifier along with the first free identifier.
func buildLandStore(records []LandRecord) (map[LandID]LandRecord, LandID, error) {
	lands := make(map[LandID]LandRecord, len(records))
	var next LandID
	for _, rec := range records {
		if !ValidateCoordinates(rec.Coordinates) {
			return nil, 0, fmt.Errorf("%w: land %d: %+v", ErrInvalidCoordinates, rec.ID, rec.Coordinates)
		}
		if !ValidateDimensions(rec.Dimensions) {
			return nil, 0, fmt.Errorf("%w: land %d: %+v", ErrInvalidDimensions, rec.ID, rec.Dimensions)
		}
		if strings.TrimSpace(rec.Description) == "" {
			return nil, 0, fmt.Errorf("%w: land %d has no description", ErrInvalidInput, rec.ID)
		}
		if !rec.LandType.Valid() {
			return nil, 0, fmt.Errorf("%w: land %d has unknown type %q", ErrInvalidInput, rec.ID, rec.LandType)
		}
		if strings.TrimSpace(string(rec.Owner)) == "" {
			return nil, 0, fmt.Errorf("%w: land %d has no owner", ErrInvalidInput, rec.ID)
		}
		if rec.ID == ^LandID(0) {
			return nil, 0, fmt.Errorf("%w: land id %d is out of range", ErrInvalidInput, rec.ID)
		}
		if _, dup := lands[rec.ID]; dup {
			return nil, 0, fmt.Errorf("%w: duplicate land %d", ErrInvalidInput, rec.ID)
		}
		for _, other := range lands {
			if Overlaps(rec.Coordinates, rec.Dimensions, other.Coordinates, other.Dimensions) {
				return nil, 0, fmt.Errorf("%w: land %d overlaps land %d", ErrLandAlreadyExists, rec.ID, other.ID)
			}
		}
		lands[rec.ID] = rec.clone()
		if rec.ID >= next {
			next = rec.ID + 1
		}
	}
	return lands, next, nil
}

func sortedAdmins(set map[Principal]struct{}) []Principal {
	out := make([]Principal, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
