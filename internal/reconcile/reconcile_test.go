package reconcile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/reconcile"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/internal/sensor"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

func TestCompare_LocalAndRemote(t *testing.T) {
	s := testutil.Small()
	local, err := safe.Parse("/data/"+s.Name+".zip", s.Manifest(), s.Annotations())
	require.NoError(t, err)
	remote := s.Product(t)

	r := reconcile.New()
	for _, pol := range s.Polarizations {
		for n := 1; n <= s.Swaths; n++ {
			lsw, err := local.Swath(pol, n)
			require.NoError(t, err)
			rsw, err := remote.Swath(pol, n)
			require.NoError(t, err)

			for i := 0; i < s.Bursts; i++ {
				a, err := burst.AnnotationBuilder{}.Build(lsw, i)
				require.NoError(t, err)
				b, err := burst.AnnotationBuilder{}.Build(rsw, i)
				require.NoError(t, err)

				require.NotEmpty(t, a.TiffPath)
				require.NotEmpty(t, b.URLPath)
				require.NoError(t, b.AttachRange(burst.ByteRange{Offset: 8, Length: 320}))
				assert.NoError(t, r.Compare(a, b), "%s IW%d burst %d", pol, n, i)
			}
		}
	}
}

func TestCheck_AnnotationAndSensor(t *testing.T) {
	s := testutil.Scenario()
	sw := s.Swath(t, "VV", 2)

	r := reconcile.New()
	for i := 0; i < s.Bursts; i++ {
		assert.NoError(t, r.Check(sw, i, burst.AnnotationBuilder{}, sensor.Builder{}), "burst %d", i)
	}
}

func TestCheck_BuilderError(t *testing.T) {
	sw := testutil.Small().Swath(t, "VV", 1)
	err := reconcile.New().Check(sw, 7, burst.AnnotationBuilder{}, sensor.Builder{})
	assert.ErrorIs(t, err, burst.ErrBurstNotFound)
	assert.False(t, errors.Is(err, reconcile.ErrReconciliationMismatch))
}

func TestCompare_Mismatch(t *testing.T) {
	sw := testutil.Small().Swath(t, "VV", 1)
	base, err := burst.AnnotationBuilder{}.Build(sw, 1)
	require.NoError(t, err)

	tests := []struct {
		field  string
		mutate func(m *burst.Metadata)
	}{
		{"ID", func(m *burst.Metadata) { m.ID = "t174_000001_iw1" }},
		{"SensingStart", func(m *burst.Metadata) { m.SensingStart = m.SensingStart.Add(1000) }},
		{"Wavelength", func(m *burst.Metadata) { m.Wavelength *= 1.001 }},
		{"Valid", func(m *burst.Metadata) { m.Valid.LastLine-- }},
		{"Doppler", func(m *burst.Metadata) { m.Doppler.Coefficients[0] += 1 }},
		{"Footprint", func(m *burst.Metadata) {
			for i := range m.Footprint.Ring {
				m.Footprint.Ring[i][0] += 10
			}
		}},
		{"AnnotationByteOffset", func(m *burst.Metadata) { m.AnnotationByteOffset++ }},
	}

	r := reconcile.New()
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(other)

			err := r.Compare(base, other)
			require.ErrorIs(t, err, reconcile.ErrReconciliationMismatch)

			var mismatch *reconcile.MismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.field, mismatch.Field)
		})
	}
}

func TestCompare_IgnoresLocationAndOrbit(t *testing.T) {
	sw := testutil.Small().Swath(t, "VV", 1)
	a, err := burst.AnnotationBuilder{}.Build(sw, 0)
	require.NoError(t, err)

	b := a.Clone()
	b.Orbit = "other"
	b.TiffPath = "/vsizip/elsewhere.zip/x.tiff"
	b.URLPath = ""
	assert.NoError(t, reconcile.New().Compare(a, b))
}

func TestCompare_Tolerance(t *testing.T) {
	sw := testutil.Small().Swath(t, "VV", 1)
	a, err := burst.AnnotationBuilder{}.Build(sw, 0)
	require.NoError(t, err)

	b := a.Clone()
	b.RangeSamplingRate *= 1 + 1e-12
	assert.NoError(t, reconcile.New().Compare(a, b))

	strict := &reconcile.Reconciler{Tolerances: reconcile.Tolerances{MinIoU: 1}}
	assert.Error(t, strict.Compare(a, b))
}

func TestFields(t *testing.T) {
	names := reconcile.Fields()
	assert.Contains(t, names, "Footprint")
	assert.NotContains(t, names, "Orbit")
	assert.NotContains(t, names, "TiffPath")
	assert.NotContains(t, names, "URLPath")
}
