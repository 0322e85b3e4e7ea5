// Package simulate generates synthetic observer walks and noisy RSSI
// measurements around a known base station, for exercising the EKF
// convergence property (see SPEC_FULL.md §8 property 5) and for the
// cmd/simulate CLI. It is test-support tooling, not part of the
// estimation core: the core never generates data or performs I/O.
package simulate

import (
	"math"

	"github.com/ChristopherRabotin/ode"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/rssiloc/locate"
)

// circularWalk integrates the observer's bearing angle around a fixed
// radius circle at constant angular rate, the way the teacher's
// OrbitEstimate integrates orbital state with ode.NewRK4: the ODE here
// is the trivial dTheta/dt = omega, but it is run through the same
// RK4 integrator rather than hand-stepped trigonometry.
type circularWalk struct {
	omega float64 // rad/s
	theta float64 // current angle, radians
	t     float64 // current sim time, seconds
	stopT float64
	dt    float64
}

func (w *circularWalk) GetState() []float64 { return []float64{w.theta} }

func (w *circularWalk) SetState(t float64, s []float64) {
	w.theta = s[0]
	w.t += w.dt
}

func (w *circularWalk) Stop(t float64) bool { return w.t >= w.stopT }

func (w *circularWalk) Func(t float64, f []float64) []float64 {
	return []float64{w.omega}
}

// CircularWalkPoint is one sampled observer position on the simulated
// walk, already in UTM meters in the same zone/hemisphere as the true
// base station.
type CircularWalkPoint struct {
	UTM locate.UTM
}

// CircularWalk returns n observer positions spaced evenly around a
// circle of the given radius centered at centerUTM, integrated with
// ode.NewRK4 one sample apart.
func CircularWalk(centerUTM locate.UTM, radiusM float64, n int) []CircularWalkPoint {
	if n <= 0 {
		return nil
	}
	const stepSeconds = 1.0
	omega := 2 * math.Pi / float64(n) // rad per sample, one sample per stepSeconds
	w := &circularWalk{omega: omega, dt: stepSeconds}

	points := make([]CircularWalkPoint, 0, n)
	for i := 0; i < n; i++ {
		w.stopT = w.t + stepSeconds
		ode.NewRK4(w.t, stepSeconds, w).Solve()

		x := centerUTM.Easting + radiusM*math.Cos(w.theta)
		y := centerUTM.Northing + radiusM*math.Sin(w.theta)
		points = append(points, CircularWalkPoint{
			UTM: locate.UTM{Easting: x, Northing: y, Zone: centerUTM.Zone, Hemisphere: centerUTM.Hemisphere},
		})
	}
	return points
}

// RSSINoise draws zero-mean Gaussian RSSI noise in dB with the given
// standard deviation, seeded deterministically so simulation runs (and
// tests that depend on them) are reproducible.
type RSSINoise struct {
	dist *distmv.Normal
}

// NewRSSINoise builds a noise source with standard deviation sigmaDb,
// the way the teacher's station.go builds its range-noise distmv.Normal.
func NewRSSINoise(sigmaDb float64, seed uint64) *RSSINoise {
	src := rand.New(rand.NewSource(seed))
	dist, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{sigmaDb * sigmaDb}), src)
	if !ok {
		panic("invalid RSSI noise covariance")
	}
	return &RSSINoise{dist: dist}
}

// Sample returns one noise draw in dB.
func (n *RSSINoise) Sample() float64 {
	return n.dist.Rand(nil)[0]
}

// StepMillis is a helper for cmd/simulate to stamp synthetic
// observations with monotonic millisecond timestamps spaced one second
// apart, starting at zero.
func StepMillis(i int) int64 {
	return int64(i) * 1000
}
