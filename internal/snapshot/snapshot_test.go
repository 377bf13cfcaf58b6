package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/testutil/testlog"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var snapshotCmp = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
}

func sampleSnapshot(t *testing.T) registry.Snapshot {
	t.Helper()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	e := registry.New("root", registry.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	env := "coastal"
	id, err := e.RegisterLand("alice", registry.Registration{
		Coordinates: registry.Coordinates{X: -10, Y: 4, Z: 2},
		Dimensions:  registry.Dimensions{Width: 5, Height: 5, Depth: 5},
		LandType:    registry.Agricultural,
		Description: "orchard",
		Metadata: &registry.LandMetadata{
			Environment:     &env,
			SpecialFeatures: []string{"river"},
		},
	})
	require.NoError(t, err)
	_, err = e.RegisterLand("bob", registry.Registration{
		Coordinates: registry.Coordinates{X: 100},
		Dimensions:  registry.Dimensions{Width: 1, Height: 1, Depth: 1},
		LandType:    registry.Commercial,
		Description: "kiosk",
	})
	require.NoError(t, err)
	require.NoError(t, e.ListForSale("alice", id, 250))
	require.NoError(t, e.AddAdmin("root", "ops"))
	return e.Snapshot()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)

	snap := sampleSnapshot(t)
	meta := NewMeta(snap, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	data, meta, err := Encode(meta, snap)
	require.NoError(t, err)
	require.Equal(t, len(data), meta.Size)
	require.Equal(t, 2, meta.LandCount)

	got, gotMeta, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got, snapshotCmp...); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(meta, gotMeta, snapshotCmp...); diff != "" {
		t.Fatalf("meta mismatch (-want +got):\n%s", diff)
	}

	e := registry.New("someone")
	require.NoError(t, e.Restore(got))
	require.NoError(t, e.CheckInvariants())
	require.True(t, e.IsAdmin("ops"))
	require.False(t, e.IsAdmin("someone"))
	require.Equal(t, registry.LandID(2), e.NextLandID())
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	testlog.Start(t)

	data, err := cbor.Marshal(envelope{Version: FormatVersion + 1})
	require.NoError(t, err)
	_, _, err = Decode(data)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected unsupported version, got %v", err)
	}

	_, _, err = Decode([]byte{0xff, 0x00})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected corrupt payload, got %v", err)
	}
}
