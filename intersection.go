package locate

import "math"

// weightedPoint is an intersection point stamped with its crossing-angle
// weight, per spec §4.4.2.
type weightedPoint struct {
	p tangentPoint
	w float64
}

// circleIntersections returns the 0, 1 (tangent-degenerate, rare given
// floating point) or 2 points where circles (c0, r0) and (c1, r1) meet,
// each stamped with its crossing-angle weight. No intersections are
// reported for identical, separate, nested, or near-coincident-center
// circles.
func circleIntersections(c0 tangentPoint, r0 float64, c1 tangentPoint, r1 float64) []weightedPoint {
	d := dist(c0, c1)
	if d <= 1e-6 || d > r0+r1 || d < math.Abs(r0-r1) {
		return nil
	}

	a := (r0*r0 - r1*r1 + d*d) / (2 * d)
	h2 := r0*r0 - a*a
	if h2 < 0 {
		h2 = 0
	}
	h := math.Sqrt(h2)

	xm := c0.X + a*(c1.X-c0.X)/d
	ym := c0.Y + a*(c1.Y-c0.Y)/d

	minR := math.Min(r0, r1)
	w := clamp(h/minR, 0, 1)

	rx := h * (c1.Y - c0.Y) / d
	ry := h * (c1.X - c0.X) / d

	p1 := tangentPoint{X: xm + rx, Y: ym - ry}
	p2 := tangentPoint{X: xm - rx, Y: ym + ry}

	if h == 0 {
		return []weightedPoint{{p1, w}}
	}
	return []weightedPoint{{p1, w}, {p2, w}}
}

// intersectionEstimate implements the circle-intersection voting method
// of spec §4.4.2.
func intersectionEstimate(obs []Observation, cfg Config) (lat, lon float64, ok bool) {
	plane, pts, radii := observationsToPlane(obs, cfg)

	var points []weightedPoint
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			points = append(points, circleIntersections(pts[i], radii[i], pts[j], radii[j])...)
		}
	}
	if len(points) == 0 {
		return 0, 0, false
	}

	b := math.Max(5, cfg.ClusterBandwidthM)

	// coincidentWeight sums the weight of points essentially colocated
	// with pk: how many independent circle pairs agree on this spot.
	// Used only to break exact score ties (e.g. a perfectly symmetric
	// tower layout, where every candidate sees the same total mass
	// within the ball) in favor of the better-corroborated location.
	const coincideEps = 1e-6
	coincidentWeight := func(pk tangentPoint) float64 {
		w := 0.0
		for _, pm := range points {
			if dist(pm.p, pk) <= coincideEps {
				w += pm.w
			}
		}
		return w
	}

	bestIdx := 0
	bestScore := math.Inf(-1)
	bestCoincident := math.Inf(-1)
	const tieEps = 1e-9
	for k, pk := range points {
		score := 0.0
		for _, pm := range points {
			if dist(pm.p, pk.p) <= b {
				score += pm.w
			}
		}
		coincident := coincidentWeight(pk.p)
		better := score > bestScore+tieEps ||
			(math.Abs(score-bestScore) <= tieEps && coincident > bestCoincident)
		if better {
			bestScore = score
			bestCoincident = coincident
			bestIdx = k
		}
	}
	star := points[bestIdx].p

	var totalWeight, wx, wy float64
	for _, pm := range points {
		dm := dist(pm.p, star)
		if dm > b {
			continue
		}
		w := pm.w * (1 - dm/b)
		wx += w * pm.p.X
		wy += w * pm.p.Y
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0, 0, false
	}

	lat, lon = plane.inverse(tangentPoint{X: wx / totalWeight, Y: wy / totalWeight})
	return lat, lon, true
}

// observationsToPlane projects observations onto a tangent plane centered
// at their arithmetic-mean position and computes each one's path-loss
// distance.
func observationsToPlane(obs []Observation, cfg Config) (tangentPlane, []tangentPoint, []float64) {
	var latSum, lonSum float64
	for _, o := range obs {
		latSum += o.Latitude
		lonSum += o.Longitude
	}
	n := float64(len(obs))
	plane := newTangentPlane(latSum/n, lonSum/n)

	pts := make([]tangentPoint, len(obs))
	radii := make([]float64, len(obs))
	for i, o := range obs {
		pts[i] = plane.forward(o.Latitude, o.Longitude)
		radii[i] = rssiToDistance(float64(o.RSSIDbm), cfg.PathLossExponent, cfg.ReferenceRSSIDbm, cfg.ReferenceDistanceM)
	}
	return plane, pts, radii
}
