package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDays(t *testing.T) {
	cases := map[string]int{
		"30d": 30,
		"2w":  14,
		"90":  90,
		" 7D": 7,
	}
	for in, want := range cases {
		got, err := parseDays(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "d", "-3d", "0", "1y", "abc"} {
		_, err := parseDays(in)
		assert.Error(t, err, in)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-12,345", formatNumber(-12345))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "1.0 GB", formatBytes(1<<30))
}

func TestFormatDaysAndTime(t *testing.T) {
	assert.Equal(t, "1 day", formatDays(1))
	assert.Equal(t, "90 days", formatDays(90))

	assert.Equal(t, "never", formatTime(time.Time{}, time.UTC))
	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2026-03-15 00:09", formatTime(testNow, tokyo))
}
