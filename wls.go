package locate

import "math"

const (
	wlsMaxIterations = 20
	wlsConvergenceM  = 0.1
	wlsDetEpsilon    = 1e-10
)

// wlsEstimate minimizes sum w_i*(||p - p_i|| - d_i)^2 by Gauss-Newton,
// solving the 2x2 normal equations in closed form each iteration. See
// spec §4.4.3. Requires at least 3 observations.
func wlsEstimate(obs []Observation, cfg Config) (lat, lon float64, ok bool) {
	plane, pts, radii := observationsToPlane(obs, cfg)
	p, ok := wlsSolve(pts, radii)
	if !ok {
		return 0, 0, false
	}
	lat, lon = plane.inverse(p)
	return lat, lon, true
}

// wlsSolve runs the Gauss-Newton iteration in the tangent plane and
// returns the solved point, or ok=false on too few observations or a
// singular normal-equation matrix.
func wlsSolve(pts []tangentPoint, radii []float64) (tangentPoint, bool) {
	n := len(pts)
	if n < 3 {
		return tangentPoint{}, false
	}

	var p tangentPoint
	for _, pt := range pts {
		p.X += pt.X
		p.Y += pt.Y
	}
	p.X /= float64(n)
	p.Y /= float64(n)

	for iter := 0; iter < wlsMaxIterations; iter++ {
		var hTWh00, hTWh01, hTWh11, hTWr0, hTWr1 float64

		for i := 0; i < n; i++ {
			dx := p.X - pts[i].X
			dy := p.Y - pts[i].Y
			rangeToPt := math.Hypot(dx, dy)
			if rangeToPt < 1e-9 {
				rangeToPt = 1e-9
			}
			jx := dx / rangeToPt
			jy := dy / rangeToPt
			residual := rangeToPt - radii[i]
			w := 1 / (1 + radii[i]/1000)

			hTWh00 += w * jx * jx
			hTWh01 += w * jx * jy
			hTWh11 += w * jy * jy
			hTWr0 += w * jx * residual
			hTWr1 += w * jy * residual
		}

		det := hTWh00*hTWh11 - hTWh01*hTWh01
		if math.Abs(det) < wlsDetEpsilon {
			return tangentPoint{}, false
		}

		// Cramer's rule for the 2x2 solve (H^T W H) delta = H^T W r.
		deltaX := (hTWr0*hTWh11 - hTWr1*hTWh01) / det
		deltaY := (hTWh00*hTWr1 - hTWh01*hTWr0) / det

		p.X -= deltaX
		p.Y -= deltaY

		if math.Hypot(deltaX, deltaY) < wlsConvergenceM {
			break
		}
	}

	return p, true
}
