// Command localize runs the batch position estimators over a CSV of
// archived observations, grouped by cell identifier. It is the CLI
// analogue of the teacher's cmd/od: a flag-selected config file loaded
// with viper, driving the library's pure estimation core.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	kitlog "github.com/go-kit/kit/log"
	"github.com/spf13/viper"

	"github.com/rssiloc/locate"
)

var (
	configPath string
	inputPath  string
)

func init() {
	flag.StringVar(&configPath, "config", "", "TOML config file (path_loss_exponent, reference_rssi_dbm, reference_distance_m, cluster_bandwidth_m, outlier_threshold_mad, method)")
	flag.StringVar(&inputPath, "input", "", "CSV file of timestamp_ms,lat,lon,rssi_dbm,cell_id,tech")
}

func main() {
	flag.Parse()
	if inputPath == "" {
		log.Fatal("no -input CSV provided")
	}

	cfg := locate.DefaultConfig()
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("%s: %s", configPath, err)
		}
		if viper.IsSet("path_loss_exponent") {
			cfg.PathLossExponent = viper.GetFloat64("path_loss_exponent")
		}
		if viper.IsSet("reference_rssi_dbm") {
			cfg.ReferenceRSSIDbm = viper.GetFloat64("reference_rssi_dbm")
		}
		if viper.IsSet("reference_distance_m") {
			cfg.ReferenceDistanceM = viper.GetFloat64("reference_distance_m")
		}
		if viper.IsSet("cluster_bandwidth_m") {
			cfg.ClusterBandwidthM = viper.GetFloat64("cluster_bandwidth_m")
		}
		if viper.IsSet("outlier_threshold_mad") {
			cfg.OutlierThresholdMAD = viper.GetFloat64("outlier_threshold_mad")
		}
		if m := viper.GetString("method"); m != "" {
			switch locate.Method(m) {
			case locate.MethodCentroid, locate.MethodIntersection, locate.MethodWLS, locate.MethodRobust:
				cfg.Method = locate.Method(m)
			default:
				log.Fatalf("unknown method `%s`", m)
			}
		}
	}

	groups, order, err := loadObservations(inputPath)
	if err != nil {
		log.Fatalf("%s: %s", inputPath, err)
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	estimates := locate.EstimatePositions(groups, order, cfg, logger)

	for _, e := range estimates {
		if e.HasPosition {
			fmt.Printf("%s\t%s\tlat=%.6f\tlon=%.6f\tn=%d\n", e.CellID, e.Tech, e.Latitude, e.Longitude, e.Count)
		} else {
			fmt.Printf("%s\t%s\tno estimate\tn=%d\n", e.CellID, e.Tech, e.Count)
		}
	}
}

func loadObservations(path string) (map[string][]locate.Observation, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	groups := make(map[string][]locate.Observation)
	var order []string
	for _, rec := range records {
		if len(rec) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			continue
		}
		rssi, err := strconv.Atoi(rec[3])
		if err != nil {
			continue
		}
		cellID := rec[4]
		tech := rec[5]

		if _, ok := groups[cellID]; !ok {
			order = append(order, cellID)
		}
		groups[cellID] = append(groups[cellID], locate.Observation{
			TimestampMs: ts,
			Latitude:    lat,
			Longitude:   lon,
			RSSIDbm:     rssi,
			CellID:      cellID,
			Tech:        tech,
		})
	}
	return groups, order, nil
}
