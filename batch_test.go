package locate

import (
	"math"
	"testing"

	kitlog "github.com/go-kit/kit/log"
)

func TestEstimatePositionsSingleObservationS1(t *testing.T) {
	groups := map[string][]Observation{
		"C": {{TimestampMs: 0, Latitude: 35.681200, Longitude: 139.767100, RSSIDbm: -80, CellID: "C"}},
	}
	got := EstimatePositions(groups, []string{"C"}, DefaultConfig(), nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 estimate, got %d", len(got))
	}
	e := got[0]
	if !e.HasPosition || e.CellID != "C" || e.Count != 1 {
		t.Fatalf("unexpected estimate: %+v", e)
	}
	if e.Latitude != 35.681200 || e.Longitude != 139.767100 {
		t.Fatalf("expected passthrough of the single observation, got (%v,%v)", e.Latitude, e.Longitude)
	}
}

// TestEstimatePositionsForcesCentroidBelowTwoObservations is spec's
// dispatch property: any configured method falls back to centroid when
// fewer than 2 observations remain after dedup, since intersection/WLS/
// robust are underdetermined with a single circle.
func TestEstimatePositionsForcesCentroidBelowTwoObservations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodRobust
	obs := []Observation{{TimestampMs: 0, Latitude: 10, Longitude: 20, RSSIDbm: -80, CellID: "C"}}
	got := estimateOne("C", obs, cfg, kitlog.NewNopLogger())
	if got.Latitude != 10 || got.Longitude != 20 || !got.HasPosition {
		t.Fatalf("expected centroid-equivalent passthrough, got %+v", got)
	}
}

// TestEstimatePositionsFallsBackOnMethodFailure is spec property 8:
// if the configured method fails (here, WLS on collinear observations),
// the dispatcher falls back to centroid rather than returning no estimate.
func TestEstimatePositionsFallsBackOnMethodFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodWLS
	obs := []Observation{
		{TimestampMs: 0, Latitude: 0.0000, Longitude: 0.0000, RSSIDbm: -70, CellID: "C"},
		{TimestampMs: 0, Latitude: 0.0005, Longitude: 0.0000, RSSIDbm: -70, CellID: "C"},
		{TimestampMs: 0, Latitude: 0.0010, Longitude: 0.0000, RSSIDbm: -70, CellID: "C"},
	}
	got := estimateOne("C", obs, cfg, kitlog.NewNopLogger())
	if !got.HasPosition {
		t.Fatal("expected fallback to centroid to still produce a position")
	}
}

func TestEstimatePositionsEmptyGroupYieldsNoPosition(t *testing.T) {
	groups := map[string][]Observation{"C": {}}
	got := EstimatePositions(groups, []string{"C"}, DefaultConfig(), nil)
	if len(got) != 1 || got[0].HasPosition {
		t.Fatalf("expected a no-position estimate for an empty group, got %+v", got)
	}
}

func TestEstimatePositionsPreservesGroupOrder(t *testing.T) {
	groups := map[string][]Observation{
		"A": {{Latitude: 1, Longitude: 1, RSSIDbm: -70, CellID: "A"}},
		"B": {{Latitude: 2, Longitude: 2, RSSIDbm: -70, CellID: "B"}},
		"C": {{Latitude: 3, Longitude: 3, RSSIDbm: -70, CellID: "C"}},
	}
	order := []string{"C", "A", "B"}
	got := EstimatePositions(groups, order, DefaultConfig(), nil)
	for i, id := range order {
		if got[i].CellID != id {
			t.Fatalf("expected output order %v, got cell %s at index %d", order, got[i].CellID, i)
		}
	}
}

func TestDedupeKeepsLatestAndDropsIllFormed(t *testing.T) {
	obs := []Observation{
		{TimestampMs: 1, Latitude: 10, Longitude: 20, RSSIDbm: -70, CellID: "C"},
		{TimestampMs: 5, Latitude: 10, Longitude: 20, RSSIDbm: -60, CellID: "C"}, // same key, newer
		{TimestampMs: 2, Latitude: math.NaN(), Longitude: 20, RSSIDbm: -70, CellID: "C"},
	}
	out := dedupe(obs)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving observation, got %d", len(out))
	}
	if out[0].RSSIDbm != -60 {
		t.Fatalf("expected the later duplicate to win, got RSSI %d", out[0].RSSIDbm)
	}
}

func TestSortedCellIDs(t *testing.T) {
	groups := map[string][]Observation{"B": nil, "A": nil, "C": nil}
	got := sortedCellIDs(groups)
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
