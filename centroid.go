package locate

import "math"

// centroidEstimate computes the received-power-weighted mean position.
// See spec §4.4.1. Weight is p^(2/eta) where p is linear power from RSSI.
// Undefined (ok=false) if every weight is zero.
func centroidEstimate(obs []Observation, cfg Config) (lat, lon float64, ok bool) {
	var totalWeight, wLat, wLon float64
	for _, o := range obs {
		p := math.Pow(10, float64(o.RSSIDbm)/10)
		w := math.Pow(p, 2/cfg.PathLossExponent)
		wLat += w * o.Latitude
		wLon += w * o.Longitude
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0, 0, false
	}
	return wLat / totalWeight, wLon / totalWeight, true
}
