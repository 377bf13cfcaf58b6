package registry

import (
	"fmt"
	"math/bits"
)

// TransactionHistory returns the ledger in order, restricted to one land
// when id is non-nil.
func (e *Engine) TransactionHistory(id *LandID) []TransactionRecord {
	if id == nil {
		return e.filterLedger(nil)
	}
	want := *id
	return e.filterLedger(func(tx TransactionRecord) bool { return tx.LandID == want })
}

// UserTransactions returns ledger entries sent or received by user.
func (e *Engine) UserTransactions(user Principal) []TransactionRecord {
	return e.filterLedger(func(tx TransactionRecord) bool {
		return tx.From == user || tx.To == user
	})
}

// RecentTransactions returns the last limit ledger entries in ledger order,
// or the whole ledger when limit exceeds its length.
func (e *Engine) RecentTransactions(limit uint64) []TransactionRecord {
	var out []TransactionRecord
	e.view(func(st *state) {
		start := 0
		if n := uint64(len(st.ledger)); limit < n {
			start = int(n - limit)
		}
		out = cloneLedger(st.ledger[start:])
	})
	return out
}

// PriceHistory returns the sale prices recorded for id.
func (e *Engine) PriceHistory(id LandID) []PricePoint {
	var out []PricePoint
	e.view(func(st *state) {
		out = make([]PricePoint, 0)
		for _, tx := range st.ledger {
			if tx.LandID == id && tx.Price != nil {
				out = append(out, PricePoint{Timestamp: tx.Timestamp, Price: *tx.Price})
			}
		}
	})
	return out
}

// Statistics summarizes the registry. AveragePrice is the floor of the mean
// listing price and nil when nothing is listed.
func (e *Engine) Statistics() Statistics {
	var out Statistics
	e.view(func(st *state) {
		out = Statistics{
			TotalLands:        uint64(len(st.lands)),
			TotalOwners:       uint64(len(st.owners)),
			LandsForSale:      uint64(len(st.market)),
			TotalTransactions: uint64(len(st.ledger)),
		}
		if len(st.market) == 0 {
			return
		}
		// 128-bit sum; hi stays below the listing count so Div64 cannot panic.
		var hi, lo uint64
		for _, listing := range st.market {
			var carry uint64
			lo, carry = bits.Add64(lo, uint64(listing.Price), 0)
			hi += carry
		}
		avg, _ := bits.Div64(hi, lo, out.LandsForSale)
		price := Price(avg)
		out.AveragePrice = &price
	})
	return out
}

// TotalLandArea sums width × height over every parcel.
func (e *Engine) TotalLandArea() (uint64, error) {
	var (
		total uint64
		err   error
	)
	e.view(func(st *state) {
		for _, land := range st.lands {
			area, aerr := Area(land.Dimensions)
			if aerr != nil {
				err = aerr
				return
			}
			var carry uint64
			total, carry = bits.Add64(total, uint64(area), 0)
			if carry != 0 {
				err = fmt.Errorf("%w: total area overflows", ErrInvalidDimensions)
				return
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (e *Engine) filterLedger(keep func(TransactionRecord) bool) []TransactionRecord {
	var out []TransactionRecord
	e.view(func(st *state) {
		out = make([]TransactionRecord, 0)
		for _, tx := range st.ledger {
			if keep == nil || keep(tx) {
				out = append(out, tx.clone())
			}
		}
	})
	return out
}

func cloneLedger(in []TransactionRecord) []TransactionRecord {
	out := make([]TransactionRecord, len(in))
	for i, tx := range in {
		out[i] = tx.clone()
	}
	return out
}
