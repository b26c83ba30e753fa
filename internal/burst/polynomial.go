package burst

import (
	"sort"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// Polynomial is a slant range polynomial evaluated as
// sum(c[k] * ((r - R0) / Scale)^k) for slant range r in meters.
type Polynomial struct {
	AzimuthTime  time.Time `json:"azimuth_time"`
	R0           float64   `json:"r0"`
	Scale        float64   `json:"scale"`
	Coefficients []float64 `json:"coefficients"`
}

// Eval evaluates the polynomial at slant range r.
func (p Polynomial) Eval(r float64) float64 {
	x := (r - p.R0) / p.Scale
	v := 0.0
	for k := len(p.Coefficients) - 1; k >= 0; k-- {
		v = v*x + p.Coefficients[k]
	}
	return v
}

// NearestPolynomial selects the polynomial whose reference time is nearest to
// t. Candidates are scanned in time order and the scan stops as soon as the
// distance starts growing, so on ties the later polynomial wins.
func NearestPolynomial(polys []safe.TimedPolynomial, t time.Time) (Polynomial, bool) {
	if len(polys) == 0 {
		return Polynomial{}, false
	}

	sorted := make([]safe.TimedPolynomial, len(polys))
	copy(sorted, polys)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AzimuthTime.Before(sorted[j].AzimuthTime) })

	best := sorted[0]
	dt := absDuration(t.Sub(best.AzimuthTime))
	for _, p := range sorted[1:] {
		d := absDuration(t.Sub(p.AzimuthTime))
		if d > dt {
			break
		}
		best, dt = p, d
	}

	halfC := 0.5 * safe.SpeedOfLight
	coeffs := make([]float64, len(best.Coefficients))
	copy(coeffs, best.Coefficients)
	return Polynomial{
		AzimuthTime:  best.AzimuthTime,
		R0:           best.T0 * halfC,
		Scale:        halfC,
		Coefficients: coeffs,
	}, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
