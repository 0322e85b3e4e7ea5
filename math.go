package locate

import "math"

const (
	deg2rad = math.Pi / 180
	rad2deg = 1 / deg2rad
)

// Deg2rad converts degrees to radians.
func Deg2rad(a float64) float64 {
	return a * deg2rad
}

// Rad2deg converts radians to degrees.
func Rad2deg(a float64) float64 {
	return a * rad2deg
}
