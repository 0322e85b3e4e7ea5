package locate

import (
	"math"

	kitlog "github.com/go-kit/kit/log"
	"gonum.org/v1/gonum/mat"
)

// ekfStateDim is the dimension of the EKF state vector (x_b, y_b, P0, eta).
const ekfStateDim = 4

const (
	defaultInitP0       = -40.0
	defaultInitEta      = 3.0
	defaultInitP        = 1000.0
	defaultProcessNoise = 1e-5
	defaultMeasVariance = 9.0 // R, dB^2
)

// scaledIdentity returns s*I of the given size, the way the teacher's
// math.go builds ScaledDenseIdentity.
func scaledIdentity(n int, s float64) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, s)
	}
	return d
}

// EKF is a self-calibrating Extended Kalman Filter tracking one stationary
// base station's position and log-distance path-loss parameters. See
// spec §4.3. Not safe for concurrent use by multiple goroutines; distinct
// instances are independent.
type EKF struct {
	initialized bool
	zone        int
	hemisphere  byte

	x *mat.VecDense // state: x_b, y_b, P0, eta
	p *mat.SymDense // covariance
	q float64       // process noise scalar (diagonal)
	r float64       // measurement variance

	lastUserUTM UTM
	lastRSSI    float64
	count       int

	logger kitlog.Logger
}

// NewEKF returns an uninitialized filter. q and r, if zero, default to
// the source constants (1e-5, 9.0); spec §9 leaves both configurable.
func NewEKF(q, r float64, logger kitlog.Logger) *EKF {
	if q == 0 {
		q = defaultProcessNoise
	}
	if r == 0 {
		r = defaultMeasVariance
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &EKF{q: q, r: r, logger: kitlog.With(logger, "component", "ekf")}
}

// IsInitialized reports whether the filter has left the Uninitialized
// state (spec §4.3's state machine).
func (f *EKF) IsInitialized() bool {
	return f.initialized
}

// Initialize sets the filter to Tracking using the spec §4.3 initial
// state, capturing the UTM zone/hemisphere of the first user position as
// the filter's immutable frame.
func (f *EKF) Initialize(userUTM UTM) {
	f.zone = userUTM.Zone
	f.hemisphere = userUTM.Hemisphere
	f.x = mat.NewVecDense(ekfStateDim, []float64{
		userUTM.Easting, userUTM.Northing, defaultInitP0, defaultInitEta,
	})
	f.p = mat.NewSymDense(ekfStateDim, nil)
	init := scaledIdentity(ekfStateDim, defaultInitP)
	for i := 0; i < ekfStateDim; i++ {
		f.p.SetSym(i, i, init.At(i, i))
	}
	f.initialized = true
	f.count = 0
}

// Reset returns the filter to Uninitialized; the next Step re-initializes.
func (f *EKF) Reset() {
	f.initialized = false
	f.x = nil
	f.p = nil
	f.count = 0
}

// Step performs one predict-update iteration given the user's UTM
// position (which must lie in the filter's captured zone/hemisphere once
// initialized) and the measured RSSI in dBm. Auto-initializes on the
// first call. Never panics; an out-of-frame position or a numerically
// degenerate update is skipped and logged rather than applied, per spec
// §4.2 ("the core never auto-reprojects").
func (f *EKF) Step(userUTM UTM, rssiDbm float64) {
	if !f.initialized {
		f.Initialize(userUTM)
	}
	if !userUTM.SameFrame(UTM{Zone: f.zone, Hemisphere: f.hemisphere}) {
		f.logger.Log("warn", "skipping update: user position outside filter's captured UTM zone/hemisphere; caller must re-project", "zone", f.zone, "hemisphere", string(f.hemisphere))
		return
	}

	f.lastUserUTM = userUTM
	f.lastRSSI = rssiDbm
	f.count++

	// 1. Predict: x unchanged (stationary target), P += Q.
	for i := 0; i < ekfStateDim; i++ {
		f.p.SetSym(i, i, f.p.At(i, i)+f.q)
	}

	xb, yb, p0, eta := f.x.AtVec(0), f.x.AtVec(1), f.x.AtVec(2), f.x.AtVec(3)
	ux, uy := userUTM.Easting, userUTM.Northing

	zHat, d := ekfMeasurementModel(xb, yb, p0, eta, ux, uy)
	h := ekfJacobian(xb, yb, eta, ux, uy, d)

	// 5. Innovation covariance S = H P H^T + R.
	var hp mat.Dense
	hp.Mul(h, f.p)
	var hpht mat.Dense
	hpht.Mul(&hp, h.T())
	s := hpht.At(0, 0) + f.r

	if s <= 0 {
		f.logger.Log("warn", "skipping update: non-positive innovation covariance", "S", s, "count", f.count)
		return
	}

	// 6. Kalman gain K = P H^T / S (4x1).
	var pht mat.Dense
	pht.Mul(f.p, h.T())
	k := mat.NewVecDense(ekfStateDim, nil)
	for i := 0; i < ekfStateDim; i++ {
		k.SetVec(i, pht.At(i, 0)/s)
	}

	// 7. State update x += K * innovation.
	innovation := rssiDbm - zHat
	var dxVec mat.VecDense
	dxVec.ScaleVec(innovation, k)
	f.x.AddVec(f.x, &dxVec)

	// 8. Covariance update P = (I - K H) P, then symmetrize.
	var kh mat.Dense
	kh.Mul(k, h)
	ikh := mat.NewDense(ekfStateDim, ekfStateDim, nil)
	for i := 0; i < ekfStateDim; i++ {
		for j := 0; j < ekfStateDim; j++ {
			v := -kh.At(i, j)
			if i == j {
				v++
			}
			ikh.Set(i, j, v)
		}
	}
	var pNext mat.Dense
	pNext.Mul(ikh, f.p)

	for i := 0; i < ekfStateDim; i++ {
		for j := i; j < ekfStateDim; j++ {
			v := (pNext.At(i, j) + pNext.At(j, i)) / 2
			f.p.SetSym(i, j, v)
		}
	}
}

// ekfMeasurementModel evaluates the predicted RSSI h(x) at base-station
// position (xb, yb), path-loss parameters (p0, eta), for a user at
// (ux, uy). Distance is clamped at 1m to avoid a Jacobian singularity
// when the user and base station coincide.
func ekfMeasurementModel(xb, yb, p0, eta, ux, uy float64) (zHat, d float64) {
	dx := xb - ux
	dy := yb - uy
	d = math.Hypot(dx, dy)
	if d < 1.0 {
		d = 1.0
	}
	zHat = p0 - 10*eta*math.Log10(d)
	return zHat, d
}

// ekfJacobian returns dh/dx evaluated at the same point used to produce d
// via ekfMeasurementModel, as a 1x4 row vector ordered (x_b, y_b, P0,
// eta). The negative sign on the position partials falls straight out of
// d(log10 d)/dx_b = (x_b-u_x)/(d^2 ln10); dropping it is a correctness
// bug that causes divergence, not a sign convention either way works.
// Inside the 1m clamp the position partials are this formula evaluated
// at d = 1, not the zero slope of the clamped model; they vanish only
// when the user and base station coincide exactly.
func ekfJacobian(xb, yb, eta, ux, uy, d float64) *mat.Dense {
	dx := xb - ux
	dy := yb - uy
	coeff := -(10 * eta) / (math.Ln10 * d * d)
	return mat.NewDense(1, ekfStateDim, []float64{
		coeff * dx,
		coeff * dy,
		1,
		-10 * math.Log10(d),
	})
}

// EstimatedPositionUTM returns the current base-station estimate in the
// filter's captured frame, or the zero value and false if Uninitialized.
func (f *EKF) EstimatedPositionUTM() (UTM, bool) {
	if !f.initialized {
		return UTM{}, false
	}
	return UTM{
		Easting:    f.x.AtVec(0),
		Northing:   f.x.AtVec(1),
		Zone:       f.zone,
		Hemisphere: f.hemisphere,
	}, true
}

// EstimatedPosition returns the current base-station estimate as
// geographic coordinates via the filter's captured inverse projection.
func (f *EKF) EstimatedPosition() (lat, lon float64, ok bool) {
	u, ok := f.EstimatedPositionUTM()
	if !ok {
		return 0, 0, false
	}
	lat, lon = utmInverse(u)
	return lat, lon, true
}

// ErrorRadiusM returns sqrt(P11 + P22), the RMS of position variances.
// Display only; callers must not treat it as a specific confidence
// level. Returns +Inf if Uninitialized.
func (f *EKF) ErrorRadiusM() float64 {
	if !f.initialized {
		return math.Inf(1)
	}
	return math.Sqrt(f.p.At(0, 0) + f.p.At(1, 1))
}

// PathLossParameters returns the current (P0, eta) estimate.
func (f *EKF) PathLossParameters() (p0, eta float64) {
	if !f.initialized {
		return 0, 0
	}
	return f.x.AtVec(2), f.x.AtVec(3)
}

// PositionUncertainty returns the standard deviations of the position
// components.
func (f *EKF) PositionUncertainty() (sigmaX, sigmaY float64) {
	if !f.initialized {
		return math.Inf(1), math.Inf(1)
	}
	return math.Sqrt(f.p.At(0, 0)), math.Sqrt(f.p.At(1, 1))
}

// Covariance returns a copy of the 4x4 covariance matrix.
func (f *EKF) Covariance() *mat.Dense {
	if !f.initialized {
		return nil
	}
	d := mat.NewDense(ekfStateDim, ekfStateDim, nil)
	d.CloneFrom(f.p)
	return d
}

// MeasurementCount returns the cumulative number of in-frame Step calls
// since the last Initialize/Reset, including those whose update was
// skipped for a non-positive innovation covariance. Out-of-frame calls
// are not counted.
func (f *EKF) MeasurementCount() int {
	return f.count
}

// TrackingState snapshots the filter's output, per spec §3.
type TrackingState struct {
	Latitude, Longitude float64
	HasPosition         bool
	ErrorRadiusM        float64
	P0, Eta             float64
	LastUserUTM         UTM
	LastRSSIDbm         float64
	MeasurementCount    int
}

// Snapshot returns the current TrackingState.
func (f *EKF) Snapshot() TrackingState {
	lat, lon, ok := f.EstimatedPosition()
	p0, eta := f.PathLossParameters()
	return TrackingState{
		Latitude:         lat,
		Longitude:        lon,
		HasPosition:      ok,
		ErrorRadiusM:     f.ErrorRadiusM(),
		P0:               p0,
		Eta:              eta,
		LastUserUTM:      f.lastUserUTM,
		LastRSSIDbm:      f.lastRSSI,
		MeasurementCount: f.count,
	}
}
