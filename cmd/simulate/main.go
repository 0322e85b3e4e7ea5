// Command simulate prints a synthetic CSV walk of observations around a
// known base station, usable as cmd/localize's -input. It exists to
// exercise the simulate package end to end, the way the teacher's
// examples/ scripts exercise the estimator against a known truth orbit.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/rssiloc/locate"
	"github.com/rssiloc/locate/simulate"
)

func main() {
	var (
		lat, lon   float64
		radius     float64
		n          int
		eta, p0    float64
		sigma      float64
		seed       uint64
		cellID     string
	)
	flag.Float64Var(&lat, "lat", 35.681200, "true base station latitude")
	flag.Float64Var(&lon, "lon", 139.767100, "true base station longitude")
	flag.Float64Var(&radius, "radius", 200, "observer walk radius, meters")
	flag.IntVar(&n, "n", 50, "number of observations")
	flag.Float64Var(&eta, "eta", 2.5, "true path-loss exponent")
	flag.Float64Var(&p0, "p0", -45, "true reference power at 1m, dBm")
	flag.Float64Var(&sigma, "sigma", 3.0, "RSSI noise standard deviation, dB")
	flag.Uint64Var(&seed, "seed", 42, "noise RNG seed")
	flag.StringVar(&cellID, "cell", "SIM-1", "synthetic cell id")
	flag.Parse()

	truth := locate.ForwardUTM(lat, lon)
	walk := simulate.CircularWalk(truth, radius, n)
	noise := simulate.NewRSSINoise(sigma, seed)

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	for i, pt := range walk {
		d := dist2D(truth, pt.UTM)
		rssi := locate.RSSIFromDistance(d, eta, p0, 1.0) + noise.Sample()
		ulat, ulon := locate.InverseUTM(pt.UTM)
		rec := []string{
			strconv.FormatInt(simulate.StepMillis(i), 10),
			strconv.FormatFloat(ulat, 'f', 6, 64),
			strconv.FormatFloat(ulon, 'f', 6, 64),
			strconv.Itoa(int(rssi)),
			cellID,
			"LTE",
		}
		if err := w.Write(rec); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Fprintf(os.Stderr, "wrote %d synthetic observations around (%.6f, %.6f)\n", n, lat, lon)
}

func dist2D(a, b locate.UTM) float64 {
	dx := a.Easting - b.Easting
	dy := a.Northing - b.Northing
	return math.Sqrt(dx*dx + dy*dy)
}
