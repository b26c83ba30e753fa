// Package reconcile compares burst records produced by different builders or
// read from different locations of the same product.
package reconcile

import (
	"errors"
	"fmt"
	"math"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// ErrReconciliationMismatch is wrapped by every MismatchError.
var ErrReconciliationMismatch = errors.New("burst records do not reconcile")

// MismatchError names the first field on which two records disagree.
type MismatchError struct {
	Burst string
	Field string
	A, B  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: field %s differs: %v != %v", e.Burst, e.Field, e.A, e.B)
}

func (e *MismatchError) Unwrap() error {
	return ErrReconciliationMismatch
}

// Tolerances bound the accepted differences.
type Tolerances struct {
	// Float is the relative tolerance of scalar fields.
	Float float64
	// Polynomial is the relative tolerance of polynomial coefficients.
	Polynomial float64
	// MinIoU is the smallest accepted intersection over union of the
	// footprint bounding boxes.
	MinIoU float64
}

// DefaultTolerances accepts footprints from different geolocation models.
var DefaultTolerances = Tolerances{Float: 1e-9, Polynomial: 1e-9, MinIoU: 0.5}

// Reconciler compares burst records field by field.
type Reconciler struct {
	Tolerances Tolerances
}

// New returns a reconciler with DefaultTolerances.
func New() *Reconciler {
	return &Reconciler{Tolerances: DefaultTolerances}
}

type field struct {
	name    string
	compare func(r *Reconciler, a, b *burst.Metadata) (x, y any, ok bool)
}

func exact[T comparable](name string, get func(*burst.Metadata) T) field {
	return field{name, func(_ *Reconciler, a, b *burst.Metadata) (any, any, bool) {
		x, y := get(a), get(b)
		return x, y, x == y
	}}
}

func scalar(name string, get func(*burst.Metadata) float64) field {
	return field{name, func(r *Reconciler, a, b *burst.Metadata) (any, any, bool) {
		x, y := get(a), get(b)
		return x, y, near(x, y, r.Tolerances.Float)
	}}
}

func polynomial(name string, get func(*burst.Metadata) burst.Polynomial) field {
	return field{name, func(r *Reconciler, a, b *burst.Metadata) (any, any, bool) {
		x, y := get(a), get(b)
		return x, y, r.samePolynomial(x, y)
	}}
}

// fields lists every compared field. The orbit key, the local and remote
// locations and the attached range and data are deliberately absent.
var fields = []field{
	exact("ID", func(m *burst.Metadata) string { return m.ID }),
	exact("AbsoluteID", func(m *burst.Metadata) string { return m.AbsoluteID }),
	exact("RelativeID", func(m *burst.Metadata) int { return m.RelativeID }),
	exact("StackID", func(m *burst.Metadata) string { return m.StackID }),
	exact("Index", func(m *burst.Metadata) int { return m.Index }),
	exact("Platform", func(m *burst.Metadata) string { return m.Platform }),
	exact("Mode", func(m *burst.Metadata) string { return m.Mode }),
	exact("AbsoluteOrbit", func(m *burst.Metadata) int { return m.AbsoluteOrbit }),
	exact("RelativeOrbit", func(m *burst.Metadata) int { return m.RelativeOrbit }),
	exact("Swath", func(m *burst.Metadata) string { return m.Swath }),
	exact("SwathIndex", func(m *burst.Metadata) int { return m.SwathIndex }),
	exact("Polarization", func(m *burst.Metadata) string { return m.Polarization }),
	exact("OrbitDirection", func(m *burst.Metadata) string { return m.OrbitDirection }),
	exact("SensingStart", func(m *burst.Metadata) int64 { return m.SensingStart.UnixMicro() }),
	exact("SensingStop", func(m *burst.Metadata) int64 { return m.SensingStop.UnixMicro() }),
	scalar("RadarFrequency", func(m *burst.Metadata) float64 { return m.RadarFrequency }),
	scalar("Wavelength", func(m *burst.Metadata) float64 { return m.Wavelength }),
	scalar("AzimuthSteerRate", func(m *burst.Metadata) float64 { return m.AzimuthSteerRate }),
	scalar("AzimuthTimeInterval", func(m *burst.Metadata) float64 { return m.AzimuthTimeInterval }),
	scalar("SlantRangeTime", func(m *burst.Metadata) float64 { return m.SlantRangeTime }),
	scalar("StartingRange", func(m *burst.Metadata) float64 { return m.StartingRange }),
	scalar("IW2MidRange", func(m *burst.Metadata) float64 { return m.IW2MidRange }),
	scalar("RangeSamplingRate", func(m *burst.Metadata) float64 { return m.RangeSamplingRate }),
	scalar("RangePixelSpacing", func(m *burst.Metadata) float64 { return m.RangePixelSpacing }),
	scalar("RangeBandwidth", func(m *burst.Metadata) float64 { return m.RangeBandwidth }),
	exact("RangeWindowType", func(m *burst.Metadata) string { return m.RangeWindowType }),
	scalar("RangeWindowCoefficient", func(m *burst.Metadata) float64 { return m.RangeWindowCoefficient }),
	exact("Rank", func(m *burst.Metadata) int { return m.Rank }),
	scalar("PRF", func(m *burst.Metadata) float64 { return m.PRF }),
	scalar("RangeChirpRate", func(m *burst.Metadata) float64 { return m.RangeChirpRate }),
	exact("Shape", func(m *burst.Metadata) burst.Shape { return m.Shape }),
	exact("Valid", func(m *burst.Metadata) burst.Window { return m.Valid }),
	exact("Format", func(m *burst.Metadata) burst.PixelFormat { return m.Format }),
	{"Footprint", func(r *Reconciler, a, b *burst.Metadata) (any, any, bool) {
		x, y := a.Footprint.BBox(), b.Footprint.BBox()
		return x, y, x.IoU(y) >= r.Tolerances.MinIoU
	}},
	polynomial("AzimuthFMRate", func(m *burst.Metadata) burst.Polynomial { return m.AzimuthFMRate }),
	polynomial("Doppler", func(m *burst.Metadata) burst.Polynomial { return m.Doppler }),
	exact("SafeName", func(m *burst.Metadata) string { return m.SafeName }),
	exact("MeasurementPath", func(m *burst.Metadata) string { return m.MeasurementPath }),
	exact("AnnotationByteOffset", func(m *burst.Metadata) int64 { return m.AnnotationByteOffset }),
	exact("AnnotationByteLength", func(m *burst.Metadata) int64 { return m.AnnotationByteLength }),
}

// Fields returns the names of the compared fields in comparison order.
func Fields() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// Compare returns a *MismatchError for the first field on which a and b
// disagree, or nil.
func (r *Reconciler) Compare(a, b *burst.Metadata) error {
	if a == nil || b == nil {
		return fmt.Errorf("compare: nil burst record")
	}
	for _, f := range fields {
		if x, y, ok := f.compare(r, a, b); !ok {
			return &MismatchError{Burst: a.ID, Field: f.name, A: x, B: y}
		}
	}
	return nil
}

// Check builds burst index of sw with both builders and compares the
// results.
func (r *Reconciler) Check(sw *safe.Swath, index int, x, y burst.Builder) error {
	a, err := x.Build(sw, index)
	if err != nil {
		return fmt.Errorf("first builder: %w", err)
	}
	b, err := y.Build(sw, index)
	if err != nil {
		return fmt.Errorf("second builder: %w", err)
	}
	return r.Compare(a, b)
}

func (r *Reconciler) samePolynomial(a, b burst.Polynomial) bool {
	if !a.AzimuthTime.Equal(b.AzimuthTime) ||
		!near(a.R0, b.R0, r.Tolerances.Float) ||
		!near(a.Scale, b.Scale, r.Tolerances.Float) ||
		len(a.Coefficients) != len(b.Coefficients) {
		return false
	}
	for i := range a.Coefficients {
		if !near(a.Coefficients[i], b.Coefficients[i], r.Tolerances.Polynomial) {
			return false
		}
	}
	return true
}

// near reports whether x and y agree to relative tolerance tol.
func near(x, y, tol float64) bool {
	if x == y {
		return true
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	return math.Abs(x-y) <= tol*math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
}
