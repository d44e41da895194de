package home

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// circularMean averages angles on the unit circle so that headings either
// side of ±π do not cancel out.
func circularMean(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	sins := make([]float64, len(angles))
	coss := make([]float64, len(angles))
	for i, a := range angles {
		sins[i] = math.Sin(a)
		coss[i] = math.Cos(a)
	}
	return math.Atan2(floats.Sum(sins), floats.Sum(coss))
}
