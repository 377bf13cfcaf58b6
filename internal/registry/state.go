package registry

import (
	"fmt"
	"sort"
)

// state is the single owner of every registry component. lands is
// authoritative; owners and coords are derived from it and never persisted.
type state struct {
	lands  map[LandID]LandRecord
	owners map[Principal]map[LandID]struct{}
	coords map[Coordinates]LandID
	market map[LandID]Listing
	ledger []TransactionRecord
	admins map[Principal]struct{}
	nextID LandID
}

func newState() state {
	return state{
		lands:  make(map[LandID]LandRecord),
		owners: make(map[Principal]map[LandID]struct{}),
		coords: make(map[Coordinates]LandID),
		market: make(map[LandID]Listing),
		ledger: make([]TransactionRecord, 0),
		admins: make(map[Principal]struct{}),
	}
}

// commit is the full set of changes one operation makes. Operations build a
// commit after all preconditions pass and apply it in one step.
type commit struct {
	subject LandID
	remove  []LandID
	unlist  []LandID
	put     []LandRecord
	list    []Listing
	ledger  []TransactionRecord
	admins  []Principal
	nextID  LandID
	advance bool

	// replace swaps the whole land store and rebuilds the derived indices.
	replace map[LandID]LandRecord
	// swap replaces every component at once.
	swap *state
}

func (s *state) apply(c commit) {
	if c.swap != nil {
		*s = *c.swap
		return
	}
	if c.replace != nil {
		s.lands = c.replace
		s.rebuildIndexes()
		s.reconcileMarket()
	}
	for _, id := range c.remove {
		s.deleteLand(id)
	}
	for _, id := range c.unlist {
		delete(s.market, id)
	}
	for _, land := range c.put {
		s.putLand(land)
	}
	for _, listing := range c.list {
		s.market[listing.LandID] = listing
	}
	s.ledger = append(s.ledger, c.ledger...)
	for _, p := range c.admins {
		s.admins[p] = struct{}{}
	}
	if c.advance && c.nextID > s.nextID {
		s.nextID = c.nextID
	}
}

// putLand inserts or replaces a record and keeps both derived indices in step.
func (s *state) putLand(land LandRecord) {
	if prev, ok := s.lands[land.ID]; ok {
		if prev.Owner != land.Owner {
			s.unindexOwner(prev.Owner, land.ID)
		}
		if prev.Coordinates != land.Coordinates {
			s.unindexCoords(prev.Coordinates, land.ID)
		}
	}
	s.lands[land.ID] = land
	s.indexOwner(land.Owner, land.ID)
	s.coords[land.Coordinates] = land.ID
}

func (s *state) deleteLand(id LandID) {
	land, ok := s.lands[id]
	if !ok {
		return
	}
	delete(s.lands, id)
	delete(s.market, id)
	s.unindexOwner(land.Owner, id)
	s.unindexCoords(land.Coordinates, id)
}

func (s *state) indexOwner(owner Principal, id LandID) {
	set, ok := s.owners[owner]
	if !ok {
		set = make(map[LandID]struct{})
		s.owners[owner] = set
	}
	set[id] = struct{}{}
}

func (s *state) unindexOwner(owner Principal, id LandID) {
	set, ok := s.owners[owner]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.owners, owner)
	}
}

func (s *state) unindexCoords(c Coordinates, id LandID) {
	if current, ok := s.coords[c]; ok && current == id {
		delete(s.coords, c)
	}
}

// rebuildIndexes recomputes owners and coords from lands.
func (s *state) rebuildIndexes() {
	s.owners = make(map[Principal]map[LandID]struct{})
	s.coords = make(map[Coordinates]LandID, len(s.lands))
	for id, land := range s.lands {
		s.indexOwner(land.Owner, id)
		s.coords[land.Coordinates] = id
	}
}

// reconcileMarket drops listings whose land is gone or has a new owner.
func (s *state) reconcileMarket() {
	for id, listing := range s.market {
		land, ok := s.lands[id]
		if !ok || land.Owner != listing.Seller {
			delete(s.market, id)
		}
	}
}

// overlapping returns the first existing land whose box intersects the given
// one, skipping ignore.
func (s *state) overlapping(c Coordinates, d Dimensions, ignore func(LandID) bool) (LandID, bool) {
	for id, land := range s.lands {
		if ignore != nil && ignore(id) {
			continue
		}
		if Overlaps(c, d, land.Coordinates, land.Dimensions) {
			return id, true
		}
	}
	return 0, false
}

func (s *state) sortedLandIDs() []LandID {
	ids := make([]LandID, 0, len(s.lands))
	for id := range s.lands {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []LandID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// checkInvariants verifies every cross-index invariant of the registry.
func (s *state) checkInvariants() error {
	for id, land := range s.lands {
		if land.ID != id {
			return fmt.Errorf("land %d stored under key %d", land.ID, id)
		}
		if id >= s.nextID {
			return fmt.Errorf("land %d not below next id %d", id, s.nextID)
		}
		if _, ok := s.owners[land.Owner][id]; !ok {
			return fmt.Errorf("land %d missing from owner %q index", id, land.Owner)
		}
		if got, ok := s.coords[land.Coordinates]; !ok || got != id {
			return fmt.Errorf("land %d missing from coordinate index", id)
		}
	}
	for owner, set := range s.owners {
		if len(set) == 0 {
			return fmt.Errorf("owner %q has an empty index entry", owner)
		}
		for id := range set {
			land, ok := s.lands[id]
			if !ok {
				return fmt.Errorf("owner %q indexes missing land %d", owner, id)
			}
			if land.Owner != owner {
				return fmt.Errorf("owner %q indexes land %d owned by %q", owner, id, land.Owner)
			}
		}
	}
	for c, id := range s.coords {
		land, ok := s.lands[id]
		if !ok || land.Coordinates != c {
			return fmt.Errorf("coordinate index entry %v points at land %d", c, id)
		}
	}
	for id, listing := range s.market {
		land, ok := s.lands[id]
		if !ok {
			return fmt.Errorf("listing for missing land %d", id)
		}
		if listing.Seller != land.Owner {
			return fmt.Errorf("listing for land %d by %q but owner is %q", id, listing.Seller, land.Owner)
		}
	}
	ids := s.sortedLandIDs()
	for i := 0; i < len(ids); i++ {
		a := s.lands[ids[i]]
		for j := i + 1; j < len(ids); j++ {
			b := s.lands[ids[j]]
			if Overlaps(a.Coordinates, a.Dimensions, b.Coordinates, b.Dimensions) {
				return fmt.Errorf("lands %d and %d overlap", a.ID, b.ID)
			}
		}
	}
	return nil
}
