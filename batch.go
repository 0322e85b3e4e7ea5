package locate

import (
	"math"
	"sort"

	kitlog "github.com/go-kit/kit/log"
)

// Method selects a batch estimation algorithm. See spec §4.4, §6.
type Method string

const (
	MethodCentroid     Method = "centroid"
	MethodIntersection Method = "intersection"
	MethodWLS          Method = "wls"
	MethodRobust       Method = "robust"
)

// Config holds the batch estimators' tunables. Zero-value Config is NOT
// directly usable; call DefaultConfig to get the documented defaults.
type Config struct {
	PathLossExponent   float64
	ReferenceRSSIDbm   float64
	ReferenceDistanceM float64
	ClusterBandwidthM  float64
	OutlierThresholdMAD float64
	Method             Method
}

// DefaultConfig returns the defaults from spec §3/§6.
func DefaultConfig() Config {
	return Config{
		PathLossExponent:    2.0,
		ReferenceRSSIDbm:    -40.0,
		ReferenceDistanceM:  1.0,
		ClusterBandwidthM:   150.0,
		OutlierThresholdMAD: 2.5,
		Method:              MethodRobust,
	}
}

// Observation is an immutable input record: one (time, position, RSSI,
// cell) sample. See spec §3.
type Observation struct {
	TimestampMs int64
	Latitude    float64
	Longitude   float64
	RSSIDbm     int
	CellID      string
	Tech        string
}

// wellFormed reports whether all numeric fields are present and finite.
func (o Observation) wellFormed() bool {
	return !math.IsNaN(o.Latitude) && !math.IsInf(o.Latitude, 0) &&
		!math.IsNaN(o.Longitude) && !math.IsInf(o.Longitude, 0)
}

// Estimate is one cell's output record. Latitude/Longitude are only
// meaningful when HasPosition is true.
type Estimate struct {
	CellID      string
	Tech        string
	Latitude    float64
	Longitude   float64
	HasPosition bool
	Count       int
}

// dedupe collapses observations with identical (lat, lon, cell_id),
// keeping the one with the latest timestamp, and drops ill-formed ones.
func dedupe(obs []Observation) []Observation {
	type key struct {
		lat, lon float64
		cell     string
	}
	latest := make(map[key]Observation)
	order := make([]key, 0, len(obs))
	for _, o := range obs {
		if !o.wellFormed() {
			continue
		}
		k := key{o.Latitude, o.Longitude, o.CellID}
		if prev, ok := latest[k]; !ok || o.TimestampMs > prev.TimestampMs {
			if !ok {
				order = append(order, k)
			}
			latest[k] = o
		}
	}
	out := make([]Observation, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// EstimatePositions runs the configured batch method over each cell
// group, falling back to centroid on any numerical failure, and returns
// one Estimate per group in the iteration order of groupOrder (the
// caller's key order, since Go maps have no stable order of their own).
// See spec §4.4.5, §6.
func EstimatePositions(groups map[string][]Observation, groupOrder []string, cfg Config, logger kitlog.Logger) []Estimate {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "component", "batch")

	estimates := make([]Estimate, 0, len(groupOrder))
	for _, cellID := range groupOrder {
		obs := dedupe(groups[cellID])
		if len(obs) == 0 {
			estimates = append(estimates, Estimate{CellID: cellID})
			continue
		}
		estimates = append(estimates, estimateOne(cellID, obs, cfg, logger))
	}
	return estimates
}

func estimateOne(cellID string, obs []Observation, cfg Config, logger kitlog.Logger) Estimate {
	tech := obs[0].Tech
	latestTS := obs[0].TimestampMs
	for _, o := range obs {
		if o.TimestampMs >= latestTS {
			latestTS = o.TimestampMs
			tech = o.Tech
		}
	}

	method := cfg.Method
	if len(obs) < 2 {
		method = MethodCentroid
	}

	var lat, lon float64
	var ok bool

	switch method {
	case MethodIntersection:
		lat, lon, ok = intersectionEstimate(obs, cfg)
	case MethodWLS:
		lat, lon, ok = wlsEstimate(obs, cfg)
	case MethodRobust:
		lat, lon, ok = robustEstimate(obs, cfg)
	default:
		lat, lon, ok = centroidEstimate(obs, cfg)
	}

	if !ok {
		logger.Log("info", "method failed, falling back to centroid", "cell_id", cellID, "method", method, "observations", len(obs))
		lat, lon, ok = centroidEstimate(obs, cfg)
	}

	return Estimate{
		CellID:      cellID,
		Tech:        tech,
		Latitude:    lat,
		Longitude:   lon,
		HasPosition: ok,
		Count:       len(obs),
	}
}

// sortedCellIDs is a convenience for callers that built groups from a
// Go map and want deterministic iteration order (e.g. CLI output).
func sortedCellIDs(groups map[string][]Observation) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
