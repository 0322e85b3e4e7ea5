package locate

import (
	"math"
	"testing"
)

func TestWLSSolveRecoversKnownPoint(t *testing.T) {
	truth := tangentPoint{X: 42, Y: -17}
	pts := []tangentPoint{
		{X: 0, Y: 0},
		{X: 100, Y: 0},
		{X: 0, Y: 100},
		{X: 100, Y: 100},
	}
	radii := make([]float64, len(pts))
	for i, p := range pts {
		radii[i] = dist(p, truth)
	}

	got, ok := wlsSolve(pts, radii)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if d := dist(got, truth); d > 0.01 {
		t.Fatalf("expected to recover (%v,%v) closely, got (%v,%v), off by %.4fm", truth.X, truth.Y, got.X, got.Y, d)
	}
}

func TestWLSSolveRequiresThreeObservations(t *testing.T) {
	pts := []tangentPoint{{0, 0}, {100, 0}}
	radii := []float64{50, 50}
	_, ok := wlsSolve(pts, radii)
	if ok {
		t.Fatal("expected ok=false with fewer than 3 observations")
	}
}

func TestWLSSolveRejectsCollinearObservations(t *testing.T) {
	// Three observations on a line give a singular normal-equation
	// matrix: no unique 2D solution.
	pts := []tangentPoint{{0, 0}, {50, 0}, {100, 0}}
	radii := []float64{10, 10, 10}
	_, ok := wlsSolve(pts, radii)
	if ok {
		t.Fatal("expected ok=false for collinear observations")
	}
}

func TestWLSEstimateGeographic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = MethodWLS
	plane := newTangentPlane(35.0, 139.0)
	truth := tangentPoint{X: 30, Y: 40}

	corners := []tangentPoint{{0, 0}, {100, 0}, {0, 100}, {100, 100}}
	var obs []Observation
	for i, c := range corners {
		lat, lon := plane.inverse(c)
		d := dist(c, truth)
		rssi := int(math.Round(RSSIFromDistance(d, cfg.PathLossExponent, cfg.ReferenceRSSIDbm, cfg.ReferenceDistanceM)))
		obs = append(obs, Observation{TimestampMs: int64(i), Latitude: lat, Longitude: lon, RSSIDbm: rssi, CellID: "C"})
	}

	lat, lon, ok := wlsEstimate(obs, cfg)
	if !ok {
		t.Fatal("expected ok=true")
	}
	wantLat, wantLon := plane.inverse(truth)
	got := plane.forward(lat, lon)
	want := plane.forward(wantLat, wantLon)
	// Integer-dBm RSSI puts the weighted least-squares optimum itself
	// about 2.9m from truth for this layout.
	if d := dist(got, want); d > 3.0 {
		t.Fatalf("expected estimate within 3m of truth (quantized RSSI), got %.2fm away", d)
	}
}
