package burst

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Burst cycle constants of the ESA burst id grid, in seconds.
var (
	nominalOrbit = decimal.NewFromInt(12 * 86400).Div(decimal.NewFromInt(175))

	iwPreamble  = decimal.RequireFromString("2.299849")
	iwBeamCycle = decimal.RequireFromString("2.758273")
	ewPreamble  = decimal.RequireFromString("2.299970")
	ewBeamCycle = decimal.RequireFromString("3.038376")
	half        = decimal.RequireFromString("0.5")
)

// Identity holds the identifiers derived for one burst.
type Identity struct {
	ID         string // e.g. t174_372322_iw1
	AbsoluteID string // e.g. S1_SLC_20210131T151557_VV_372322_IW1
	RelativeID int
	StackID    string // e.g. 372322_IW1
	Track      int
}

// RelativeOrbit returns the track of an absolute orbit. Platforms without a
// known phase report false.
func RelativeOrbit(platform string, absoluteOrbit int) (int, bool) {
	switch strings.ToUpper(platform) {
	case "S1A":
		return phase(absoluteOrbit, 73), true
	case "S1B":
		return phase(absoluteOrbit, 27), true
	default:
		return 0, false
	}
}

// phase maps an absolute orbit onto the 175 orbit repeat cycle. Orbits before
// the reference orbit wrap to the end of the previous cycle.
func phase(absoluteOrbit, reference int) int {
	return ((absoluteOrbit-reference)%175+175)%175 + 1
}

// MidBurstDelta returns the time from the ascending node to the middle line of
// a burst, given the time from the ascending node to its first line.
func MidBurstDelta(firstLine decimal.Decimal, lines int, azimuthTimeInterval float64) decimal.Decimal {
	ati := decimal.NewFromFloat(azimuthTimeInterval)
	return firstLine.Add(decimal.NewFromInt(int64(lines - 1)).Mul(half).Mul(ati))
}

// DeltaFromTimes returns the time from the ascending node to t at microsecond
// resolution.
func DeltaFromTimes(t, ascendingNode time.Time) decimal.Decimal {
	return decimal.New(t.Sub(ascendingNode).Microseconds(), -6)
}

// RelativeBurstID places a mid-burst ascending node delta on the burst cycle
// grid of a track. mode is IW or EW.
func RelativeBurstID(mode string, track int, midDelta decimal.Decimal) (int, error) {
	preamble, cycle := iwPreamble, iwBeamCycle
	switch mode {
	case "IW":
	case "EW":
		preamble, cycle = ewPreamble, ewBeamCycle
	default:
		return 0, fmt.Errorf("%w: no burst cycle for mode %s", ErrGeometryResolution, mode)
	}
	if track < 1 || track > 175 {
		return 0, fmt.Errorf("%w: track %d out of range", ErrGeometryResolution, track)
	}

	distance := midDelta.Add(nominalOrbit.Mul(decimal.NewFromInt(int64(track - 1))))
	return int(distance.Sub(preamble).Div(cycle).Floor().IntPart()) + 1, nil
}

// Identify derives every burst identifier from the track, swath and the
// mid-burst ascending node delta.
func Identify(mode string, track, swathIndex int, pol string, start time.Time, midDelta decimal.Decimal) (Identity, error) {
	mode = strings.ToUpper(mode)
	if mode == "" {
		mode = "IW"
	}
	relid, err := RelativeBurstID(mode, track, midDelta)
	if err != nil {
		return Identity{}, err
	}
	swath := fmt.Sprintf("%s%d", mode, swathIndex)
	return Identity{
		ID:         fmt.Sprintf("t%03d_%06d_%s", track, relid, strings.ToLower(swath)),
		AbsoluteID: AbsoluteID(start, pol, relid, swath),
		RelativeID: relid,
		StackID:    fmt.Sprintf("%d_%s", relid, swath),
		Track:      track,
	}, nil
}

// AbsoluteID formats the id of one burst acquisition, e.g.
// S1_SLC_20210131T151557_VV_372322_IW1. An empty pol leaves the polarization
// out, giving the id shared by all polarizations of the acquisition.
func AbsoluteID(start time.Time, pol string, relid int, swath string) string {
	stamp := start.UTC().Format("20060102T150405")
	if pol == "" {
		return fmt.Sprintf("S1_SLC_%s_%06d_%s", stamp, relid, strings.ToUpper(swath))
	}
	return fmt.Sprintf("S1_SLC_%s_%s_%06d_%s", stamp, strings.ToUpper(pol), relid, strings.ToUpper(swath))
}
