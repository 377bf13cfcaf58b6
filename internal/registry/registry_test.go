package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/landctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin Principal = "admin"
	alice Principal = "alice"
	bob   Principal = "bob"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(admin, append([]Option{WithClock(stepClock())}, opts...)...)
}

func cube(x, y, z int32, side uint32) Registration {
	return Registration{
		Coordinates: Coordinates{X: x, Y: y, Z: z},
		Dimensions:  Dimensions{Width: side, Height: side, Depth: side},
		LandType:    Residential,
		Description: "parcel",
	}
}

func mustRegister(t *testing.T, e *Engine, owner Principal, reg Registration) LandID {
	t.Helper()
	id, err := e.RegisterLand(owner, reg)
	require.NoError(t, err)
	return id
}

func TestRegisterTouchingAndOverlapping(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	first := mustRegister(t, e, alice, cube(0, 0, 0, 10))
	second := mustRegister(t, e, alice, cube(10, 0, 0, 10))
	assert.Equal(t, LandID(0), first)
	assert.Equal(t, LandID(1), second)

	_, err := e.RegisterLand(alice, cube(5, 0, 0, 10))
	require.ErrorIs(t, err, ErrLandAlreadyExists)

	_, err = e.RegisterLand(bob, cube(9, 9, 9, 10))
	require.ErrorIs(t, err, ErrLandAlreadyExists)

	assert.Equal(t, uint64(2), e.TotalSupply())
	assert.Equal(t, LandID(2), e.NextLandID())
	require.NoError(t, e.CheckInvariants())
}

func TestRegisterValidationOrder(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		reg  Registration
		want error
	}{
		{
			name: "coordinates first",
			reg: Registration{
				Coordinates: Coordinates{X: MaxHorizontal + 1},
				Dimensions:  Dimensions{},
				Description: "",
			},
			want: ErrInvalidCoordinates,
		},
		{
			name: "dimensions before description",
			reg: Registration{
				Dimensions:  Dimensions{Width: 0, Height: 1, Depth: 1},
				LandType:    Residential,
				Description: "",
			},
			want: ErrInvalidDimensions,
		},
		{
			name: "blank description",
			reg: Registration{
				Dimensions:  Dimensions{Width: 1, Height: 1, Depth: 1},
				LandType:    Residential,
				Description: "   ",
			},
			want: ErrInvalidInput,
		},
		{
			name: "unknown type",
			reg: Registration{
				Dimensions:  Dimensions{Width: 1, Height: 1, Depth: 1},
				LandType:    "Swamp",
				Description: "wet",
			},
			want: ErrInvalidInput,
		},
		{
			name: "vertical bound",
			reg: Registration{
				Coordinates: Coordinates{Z: -MaxVertical - 1},
				Dimensions:  Dimensions{Width: 1, Height: 1, Depth: 1},
				LandType:    Residential,
				Description: "deep",
			},
			want: ErrInvalidCoordinates,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.RegisterLand(alice, tc.reg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if e.NextLandID() != 0 || e.TotalSupply() != 0 {
				t.Fatalf("failed registration mutated state")
			}
			if len(e.TransactionHistory(nil)) != 0 {
				t.Fatalf("failed registration wrote to the ledger")
			}
		})
	}
}

func TestRegisterWritesLedgerAndIndices(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 5))

	land, ok := e.Land(id)
	require.True(t, ok)
	assert.Equal(t, alice, land.Owner)
	assert.Equal(t, land.CreatedAt, land.UpdatedAt)

	history := e.TransactionHistory(&id)
	require.Len(t, history, 1)
	assert.Equal(t, KindRegistration, history[0].Kind)
	assert.Equal(t, Anonymous, history[0].From)
	assert.Equal(t, alice, history[0].To)
	assert.Nil(t, history[0].Price)

	assert.Equal(t, uint64(1), e.LandCountByOwner(alice))
	assert.True(t, e.VerifyOwnership(id, alice))
	assert.False(t, e.VerifyOwnership(id, bob))
	assert.False(t, e.VerifyOwnership(99, alice))
}

func TestScenarioSaleTransferAndStatistics(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	land0 := mustRegister(t, e, alice, cube(0, 0, 0, 10))
	land1 := mustRegister(t, e, alice, cube(10, 0, 0, 10))

	require.NoError(t, e.ListForSale(alice, land0, 100))
	require.Len(t, e.Listings(), 1)

	require.NoError(t, e.BuyLand(bob, land0))
	owner, ok := e.LandOwner(land0)
	require.True(t, ok)
	assert.Equal(t, bob, owner)
	assert.Empty(t, e.Listings())

	recent := e.RecentTransactions(1)
	require.Len(t, recent, 1)
	last := recent[0]
	assert.Equal(t, KindSale, last.Kind)
	assert.Equal(t, alice, last.From)
	assert.Equal(t, bob, last.To)
	require.NotNil(t, last.Price)
	assert.Equal(t, Price(100), *last.Price)

	stats := e.Statistics()
	assert.Equal(t, Statistics{
		TotalLands:        2,
		TotalOwners:       2,
		LandsForSale:      0,
		TotalTransactions: 3,
	}, stats)

	require.NoError(t, e.TransferLand(alice, land1, bob))
	err := e.ListForSale(alice, land1, 50)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, uint64(0), e.LandCountByOwner(alice))
	assert.Equal(t, uint64(2), e.LandCountByOwner(bob))
	require.NoError(t, e.CheckInvariants())
}

func TestTransferPreconditions(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))

	require.ErrorIs(t, e.TransferLand(alice, 42, bob), ErrLandNotFound)
	require.ErrorIs(t, e.TransferLand(bob, id, alice), ErrUnauthorized)
	require.ErrorIs(t, e.TransferLand(alice, id, alice), ErrInvalidInput)
	require.ErrorIs(t, e.TransferLand(alice, id, " "), ErrInvalidInput)

	require.NoError(t, e.ListForSale(alice, id, 10))
	require.NoError(t, e.TransferLand(alice, id, bob))
	_, listed := e.Listing(id)
	assert.False(t, listed, "transfer must drop the listing")

	history := e.TransactionHistory(&id)
	require.Len(t, history, 2)
	assert.Equal(t, KindTransfer, history[1].Kind)
	assert.Nil(t, history[1].Price)
}

func TestMarketplaceErrors(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))

	require.ErrorIs(t, e.ListForSale(alice, 7, 10), ErrLandNotFound)
	require.ErrorIs(t, e.ListForSale(bob, id, 10), ErrUnauthorized)
	require.ErrorIs(t, e.ListForSale(alice, id, 0), ErrInvalidInput)
	require.ErrorIs(t, e.BuyLand(bob, id), ErrLandNotForSale)

	require.NoError(t, e.ListForSale(alice, id, 10))
	require.NoError(t, e.ListForSale(alice, id, 20))
	listing, ok := e.Listing(id)
	require.True(t, ok)
	assert.Equal(t, Price(20), listing.Price)

	require.ErrorIs(t, e.BuyLand(alice, id), ErrInvalidInput)
	require.ErrorIs(t, e.RemoveFromSale(bob, id), ErrUnauthorized)

	require.NoError(t, e.RemoveFromSale(alice, id))
	require.ErrorIs(t, e.RemoveFromSale(alice, id), ErrLandNotForSale)
}

func TestListingKeepsLandSnapshot(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))
	require.NoError(t, e.ListForSale(alice, id, 10))

	env := "forest"
	require.NoError(t, e.UpdateLandMetadata(alice, id, LandMetadata{Environment: &env}))

	listing, ok := e.Listing(id)
	require.True(t, ok)
	assert.Nil(t, listing.Land.Metadata)

	land, _ := e.Land(id)
	require.NotNil(t, land.Metadata)
	assert.Equal(t, "forest", *land.Metadata.Environment)
	assert.True(t, land.UpdatedAt.After(land.CreatedAt))
}

func TestUpdateMetadataAuthorization(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))

	require.ErrorIs(t, e.UpdateLandMetadata(bob, id, LandMetadata{}), ErrUnauthorized)
	require.ErrorIs(t, e.UpdateLandMetadata(alice, 3, LandMetadata{}), ErrLandNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	reg := cube(0, 0, 0, 1)
	reg.Metadata = &LandMetadata{SpecialFeatures: []string{"lake"}}
	id := mustRegister(t, e, alice, reg)

	reg.Metadata.SpecialFeatures[0] = "mutated"
	land, _ := e.Land(id)
	land.Metadata.SpecialFeatures[0] = "mutated"

	again, _ := e.Land(id)
	assert.Equal(t, []string{"lake"}, again.Metadata.SpecialFeatures)
}

func TestRecentTransactionsTail(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	for i := int32(0); i < 4; i++ {
		mustRegister(t, e, alice, cube(i*10, 0, 0, 5))
	}

	recent := e.RecentTransactions(2)
	require.Len(t, recent, 2)
	assert.Equal(t, LandID(2), recent[0].LandID)
	assert.Equal(t, LandID(3), recent[1].LandID)

	assert.Len(t, e.RecentTransactions(100), 4)
	assert.Empty(t, e.RecentTransactions(0))
}

func TestUserTransactionsAndPriceHistory(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))
	mustRegister(t, e, bob, cube(5, 5, 5, 1))

	require.NoError(t, e.ListForSale(alice, id, 30))
	require.NoError(t, e.BuyLand(bob, id))
	require.NoError(t, e.ListForSale(bob, id, 45))
	require.NoError(t, e.BuyLand(alice, id))

	assert.Len(t, e.UserTransactions(alice), 3)
	assert.Len(t, e.UserTransactions(bob), 3)

	prices := e.PriceHistory(id)
	require.Len(t, prices, 2)
	assert.Equal(t, Price(30), prices[0].Price)
	assert.Equal(t, Price(45), prices[1].Price)
	assert.Empty(t, e.PriceHistory(99))
}

func TestStatisticsAveragePrice(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	assert.Nil(t, e.Statistics().AveragePrice)

	a := mustRegister(t, e, alice, cube(0, 0, 0, 1))
	b := mustRegister(t, e, alice, cube(2, 0, 0, 1))
	c := mustRegister(t, e, bob, cube(4, 0, 0, 1))
	require.NoError(t, e.ListForSale(alice, a, 10))
	require.NoError(t, e.ListForSale(alice, b, 11))
	require.NoError(t, e.ListForSale(bob, c, 11))

	stats := e.Statistics()
	require.NotNil(t, stats.AveragePrice)
	assert.Equal(t, Price(10), *stats.AveragePrice)
	assert.Equal(t, uint64(3), stats.LandsForSale)
}

func TestStatisticsAverageDoesNotOverflow(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	top := Price(^uint64(0))
	a := mustRegister(t, e, alice, cube(0, 0, 0, 1))
	b := mustRegister(t, e, alice, cube(2, 0, 0, 1))
	require.NoError(t, e.ListForSale(alice, a, top))
	require.NoError(t, e.ListForSale(alice, b, top))

	stats := e.Statistics()
	require.NotNil(t, stats.AveragePrice)
	assert.Equal(t, top, *stats.AveragePrice)
}

func TestTotalLandArea(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	mustRegister(t, e, alice, cube(0, 0, 0, 10))
	mustRegister(t, e, bob, cube(100, 0, 0, 3))

	area, err := e.TotalLandArea()
	require.NoError(t, err)
	assert.Equal(t, uint64(109), area)
}

func TestAdminOperations(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	assert.True(t, e.IsAdmin(admin))
	assert.False(t, e.IsAdmin(alice))

	require.ErrorIs(t, e.AddAdmin(alice, bob), ErrUnauthorized)
	require.NoError(t, e.AddAdmin(admin, alice))
	require.NoError(t, e.AddAdmin(alice, bob))
	assert.Equal(t, []Principal{admin, alice, bob}, e.Admins())
}

func TestRemoveLandPrunesEverything(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	id := mustRegister(t, e, alice, cube(0, 0, 0, 4))
	require.NoError(t, e.ListForSale(alice, id, 9))
	ledgerBefore := len(e.TransactionHistory(nil))

	require.ErrorIs(t, e.RemoveLand(alice, id), ErrUnauthorized)
	require.ErrorIs(t, e.RemoveLand(admin, 12), ErrLandNotFound)
	require.NoError(t, e.RemoveLand(admin, id))

	_, ok := e.Land(id)
	assert.False(t, ok)
	assert.Empty(t, e.Listings())
	assert.Empty(t, e.LandsByOwner(alice))
	assert.Equal(t, uint64(0), e.Statistics().TotalOwners)
	assert.Len(t, e.TransactionHistory(nil), ledgerBefore)
	require.NoError(t, e.CheckInvariants())

	// the space is free again
	mustRegister(t, e, bob, cube(0, 0, 0, 4))
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	mustRegister(t, e, alice, cube(0, 0, 0, 2))
	mustRegister(t, e, bob, cube(10, 10, 10, 2))
	mustRegister(t, e, alice, cube(-20, 0, 0, 2))

	assert.Empty(t, e.BackupLands(alice))

	backup := e.BackupLands(admin)
	require.Len(t, backup, 3)
	before := e.Snapshot()

	require.NoError(t, e.RestoreLands(admin, backup))
	assert.Equal(t, before, e.Snapshot())
	assert.Len(t, e.LandsByOwner(alice), 2)
	require.NoError(t, e.CheckInvariants())
}

func TestRestoreLandsReconcilesMarketplace(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	a := mustRegister(t, e, alice, cube(0, 0, 0, 2))
	b := mustRegister(t, e, alice, cube(10, 0, 0, 2))
	require.NoError(t, e.ListForSale(alice, a, 5))
	require.NoError(t, e.ListForSale(alice, b, 6))

	backup := e.BackupLands(admin)
	restored := []LandRecord{backup[0], backup[1]}
	restored[1].Owner = bob
	restored = append(restored, LandRecord{
		ID:          40,
		Owner:       bob,
		Coordinates: Coordinates{X: 500},
		Dimensions:  Dimensions{Width: 1, Height: 1, Depth: 1},
		LandType:    Mixed,
		Description: "imported",
	})

	require.ErrorIs(t, e.RestoreLands(alice, restored), ErrUnauthorized)
	require.NoError(t, e.RestoreLands(admin, restored))

	listings := e.Listings()
	require.Len(t, listings, 1)
	assert.Equal(t, a, listings[0].LandID)
	assert.Equal(t, LandID(41), e.NextLandID())
	require.NoError(t, e.CheckInvariants())
}

func TestRestoreLandsRejectsInvalidRecords(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	mustRegister(t, e, alice, cube(0, 0, 0, 2))

	base := LandRecord{
		Owner:       alice,
		Dimensions:  Dimensions{Width: 2, Height: 2, Depth: 2},
		LandType:    Residential,
		Description: "x",
	}
	overlap := base
	overlap.ID = 1
	overlap.Coordinates = Coordinates{X: 1}
	err := e.RestoreLands(admin, []LandRecord{base, overlap})
	require.ErrorIs(t, err, ErrLandAlreadyExists)

	dup := base
	dup.Coordinates = Coordinates{X: 100}
	err = e.RestoreLands(admin, []LandRecord{base, dup})
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, uint64(1), e.TotalSupply())
}

func TestRegisterStopsAtLastIdentifier(t *testing.T) {
	testlog.Start(t)

	restoredAt := func(id LandID) []LandRecord {
		return []LandRecord{{
			ID:          id,
			Owner:       bob,
			Coordinates: Coordinates{X: 500},
			Dimensions:  Dimensions{Width: 1, Height: 1, Depth: 1},
			LandType:    Mixed,
			Description: "imported",
		}}
	}

	e := newTestEngine(t)
	require.NoError(t, e.RestoreLands(admin, restoredAt(^LandID(0)-2)))
	id := mustRegister(t, e, alice, cube(0, 0, 0, 2))
	assert.Equal(t, ^LandID(0)-1, id)
	_, err := e.RegisterLand(alice, cube(10, 0, 0, 2))
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, uint64(2), e.TotalSupply())
	assert.Len(t, e.LandsByOwner(alice), 1)
	require.NoError(t, e.CheckInvariants())

	e = newTestEngine(t)
	require.NoError(t, e.RestoreLands(admin, restoredAt(^LandID(0)-1)))
	_, err = e.RegisterLand(alice, cube(0, 0, 0, 2))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.RegisterLand(alice, cube(10, 0, 0, 2))
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, uint64(1), e.TotalSupply())
	require.NoError(t, e.CheckInvariants())

	snap := e.Snapshot()
	snap.NextID = ^LandID(0)
	restored := newTestEngine(t)
	require.NoError(t, restored.Restore(snap))
	_, err = restored.RegisterLand(alice, cube(0, 0, 0, 2))
	require.ErrorIs(t, err, ErrInvalidInput)
	require.NoError(t, restored.CheckInvariants())
}

func TestObserversSeeCommitsInOrder(t *testing.T) {
	testlog.Start(t)

	var events []Event
	e := newTestEngine(t, WithObserver(ObserverFunc(func(ev Event) {
		events = append(events, ev)
	})))
	id := mustRegister(t, e, alice, cube(0, 0, 0, 1))
	require.NoError(t, e.ListForSale(alice, id, 3))
	require.ErrorIs(t, e.ListForSale(bob, id, 3), ErrUnauthorized)
	require.NoError(t, e.BuyLand(bob, id))

	require.Len(t, events, 3)
	assert.Equal(t, OpRegister, events[0].Op)
	assert.Equal(t, OpList, events[1].Op)
	assert.Equal(t, OpBuy, events[2].Op)
	assert.Equal(t, bob, events[2].Caller)
	require.Len(t, events[2].Transactions, 1)
	assert.Equal(t, KindSale, events[2].Transactions[0].Kind)
	assert.Equal(t, Counts{Lands: 1, Owners: 1, Listings: 0, Ledger: 2}, events[2].Counts)
}

func TestErrorCodes(t *testing.T) {
	testlog.Start(t)

	e := newTestEngine(t)
	_, err := e.RegisterLand(alice, Registration{})
	assert.Equal(t, "InvalidDimensions", Code(err))
	assert.Equal(t, "LandNotForSale", Code(e.BuyLand(bob, 1)))
	assert.Equal(t, "", Code(nil))
}
