package safe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"microseconds", "2021-01-31T15:15:57.086587", time.Date(2021, 1, 31, 15, 15, 57, 86587000, time.UTC), false},
		{"zulu suffix", "2021-01-31T15:15:57.086587Z", time.Date(2021, 1, 31, 15, 15, 57, 86587000, time.UTC), false},
		{"milliseconds", "2021-01-31T15:15:57.086", time.Date(2021, 1, 31, 15, 15, 57, 86000000, time.UTC), false},
		{"whole seconds", "2021-01-31T15:15:57", time.Date(2021, 1, 31, 15, 15, 57, 0, time.UTC), false},
		{"nanoseconds", "2021-01-31T15:15:57.086587123", time.Time{}, true},
		{"empty", "  ", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	in := "2021-01-31T15:15:57.000001"
	got, err := ParseTime(in)
	require.NoError(t, err)
	assert.Equal(t, in, FormatTime(got))
	assert.Equal(t, 1000, got.Nanosecond())
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 2758277*time.Microsecond, Seconds(2.758277))
	assert.Equal(t, time.Second, Seconds(1.0000004))
	assert.Equal(t, time.Second+time.Microsecond, Seconds(1.0000006))
	assert.Equal(t, -time.Second-time.Microsecond, Seconds(-1.0000006))
}
