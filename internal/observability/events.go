package observability

import (
	"github.com/danmuck/landctl/internal/registry"
	"github.com/rs/zerolog"
)

// RegistryObserver logs every applied registry mutation and updates the
// registry metrics.
func RegistryObserver(logger zerolog.Logger) registry.Observer {
	return registry.ObserverFunc(func(ev registry.Event) {
		RecordRegistryOp(ev.Op, OutcomeOK)
		RecordRegistrySize(ev.Counts.Lands, ev.Counts.Owners, ev.Counts.Listings, ev.Counts.Ledger)

		event := logger.Info().
			Str("op", ev.Op).
			Str("caller", string(ev.Caller)).
			Uint64("land_id", uint64(ev.LandID)).
			Int("lands", ev.Counts.Lands).
			Int("listings", ev.Counts.Listings)
		for _, tx := range ev.Transactions {
			event = event.Str("tx", string(tx.Kind)).Str("to", string(tx.To))
			if tx.Price != nil {
				event = event.Uint64("price", uint64(*tx.Price))
			}
		}
		event.Msg("registry_event")
	})
}
