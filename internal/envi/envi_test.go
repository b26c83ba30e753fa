package envi

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

func TestWrite(t *testing.T) {
	a := burst.NewArray(2, 3)
	for i := range a.Data {
		a.Data[i] = complex(float32(i), float32(-i))
	}

	base := filepath.Join(t.TempDir(), "t174_372322_iw1_vv")
	require.NoError(t, Write(base, a, Header{
		Description: "t174_372322_iw1 VV",
		Extra:       [][2]string{{"sensor type", "Sentinel-1"}},
	}))

	dataPath, headerPath := Paths(base)
	raw, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	require.Len(t, raw, 6*8)
	for i := 0; i < 6; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
		assert.Equal(t, float32(i), re)
		assert.Equal(t, float32(-i), im)
	}

	hdr, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	assert.Equal(t, `ENVI
description = {t174_372322_iw1 VV}
samples = 3
lines = 2
bands = 1
header offset = 0
file type = ENVI Standard
data type = 6
interleave = bsq
byte order = 0
sensor type = Sentinel-1
`, string(hdr))
}

func TestWriteRejectsInconsistentArray(t *testing.T) {
	base := filepath.Join(t.TempDir(), "bad")
	assert.Error(t, Write(base, nil, Header{}))
	assert.Error(t, Write(base, &burst.Array{Lines: 2, Samples: 2, Data: make([]complex64, 3)}, Header{}))

	_, err := os.Stat(base + ".slc")
	assert.True(t, os.IsNotExist(err))
}
