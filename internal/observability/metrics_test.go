package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("landctl-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordSnapshotSave("sqlite", 3*time.Millisecond, true)
	RecordFeedClients(2)
	RecordRegistryOp(registry.OpBuy, "LandNotForSale")

	if got := testutil.ToFloat64(feedClients); got != 2 {
		t.Fatalf("expected 2 feed clients, got %v", got)
	}
}

func TestRegistryObserverLogsAndCounts(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	before := testutil.ToFloat64(registryOps.WithLabelValues(registry.OpRegister, OutcomeOK))

	e := registry.New("root", registry.WithObserver(RegistryObserver(logger)))
	if _, err := e.RegisterLand("alice", registry.Registration{
		Dimensions:  registry.Dimensions{Width: 2, Height: 2, Depth: 2},
		LandType:    registry.Residential,
		Description: "cabin",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	after := testutil.ToFloat64(registryOps.WithLabelValues(registry.OpRegister, OutcomeOK))
	if after != before+1 {
		t.Fatalf("expected register counter to grow by one, %v -> %v", before, after)
	}
	if got := testutil.ToFloat64(registrySize.WithLabelValues("lands")); got != 1 {
		t.Fatalf("expected lands gauge 1, got %v", got)
	}
	if !strings.Contains(buf.String(), `"op":"register_land"`) {
		t.Fatalf("expected registry_event log line, got %q", buf.String())
	}
}
