package registry

import (
	"fmt"
	"time"
)

// ListForSale creates or replaces the listing for id at price.
func (e *Engine) ListForSale(caller Principal, id LandID, price Price) error {
	return e.mutate(OpList, caller, func(st *state, now time.Time) (commit, error) {
		land, ok := st.lands[id]
		if !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotFound, id)
		}
		if land.Owner != caller {
			return commit{}, fmt.Errorf("%w: %q does not own land %d", ErrUnauthorized, caller, id)
		}
		if price == 0 {
			return commit{}, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
		}
		return commit{
			subject: id,
			list: []Listing{{
				LandID:   id,
				Seller:   caller,
				Price:    price,
				ListedAt: now,
				Land:     land.clone(),
			}},
		}, nil
	})
}

// RemoveFromSale deletes the listing for id. Only its seller may do so.
func (e *Engine) RemoveFromSale(caller Principal, id LandID) error {
	return e.mutate(OpUnlist, caller, func(st *state, _ time.Time) (commit, error) {
		listing, ok := st.market[id]
		if !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotForSale, id)
		}
		if listing.Seller != caller {
			return commit{}, fmt.Errorf("%w: %q is not the seller of land %d", ErrUnauthorized, caller, id)
		}
		return commit{subject: id, unlist: []LandID{id}}, nil
	})
}

// BuyLand transfers a listed parcel to caller at the listed price. No payment
// is captured; the sale is recorded in the ledger with the listing price.
func (e *Engine) BuyLand(caller Principal, id LandID) error {
	return e.mutate(OpBuy, caller, func(st *state, now time.Time) (commit, error) {
		listing, ok := st.market[id]
		if !ok {
			return commit{}, fmt.Errorf("%w: %d", ErrLandNotForSale, id)
		}
		if listing.Seller == caller {
			return commit{}, fmt.Errorf("%w: cannot buy own listing", ErrInvalidInput)
		}
		land, ok := st.lands[id]
		if !ok || land.Owner != listing.Seller {
			// unreachable while listings follow their land
			return commit{}, fmt.Errorf("%w: listing for land %d is stale", ErrLandNotForSale, id)
		}
		price := listing.Price
		return ownershipChange(land, caller, now, KindSale, &price), nil
	})
}

// Listings returns every active listing ordered by land identifier.
func (e *Engine) Listings() []Listing {
	return e.filterListings(nil)
}

// Listing returns the active listing for id.
func (e *Engine) Listing(id LandID) (Listing, bool) {
	var (
		out Listing
		ok  bool
	)
	e.view(func(st *state) {
		var listing Listing
		listing, ok = st.market[id]
		if ok {
			out = listing.clone()
		}
	})
	return out, ok
}

// ListingsByType returns listings whose land snapshot is tagged t.
func (e *Engine) ListingsByType(t LandType) []Listing {
	return e.filterListings(func(l Listing) bool { return l.Land.LandType == t })
}

func (e *Engine) filterListings(keep func(Listing) bool) []Listing {
	var out []Listing
	e.view(func(st *state) {
		ids := make([]LandID, 0, len(st.market))
		for id := range st.market {
			ids = append(ids, id)
		}
		sortIDs(ids)
		out = make([]Listing, 0, len(ids))
		for _, id := range ids {
			listing := st.market[id]
			if keep == nil || keep(listing) {
				out = append(out, listing.clone())
			}
		}
	})
	return out
}
