package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/plotconv/pkg/config"
	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

func TestParseMemoryBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"512", 512 * units.MiB},
		{" 1024 ", units.GiB},
		{"1GiB", units.GiB},
		{"1GB", 1_000_000_000},
		{"256 MiB", 256 * units.MiB},
	}

	for _, tt := range tests {
		got, err := config.ParseMemoryBudget(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"lots", "-5", "9223372036854775807", "1ZiB"} {
		_, err := config.ParseMemoryBudget(bad)
		require.ErrorIs(t, err, config.ErrInvalidSize, bad)
	}
}

func TestParseRate(t *testing.T) {
	t.Parallel()

	got, err := config.ParseRate("50MB/s")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), got)

	got, err = config.ParseRate("1 MiB")
	require.NoError(t, err)
	assert.Equal(t, int64(units.MiB), got)

	got, err = config.ParseRate("")
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = config.ParseRate("fast")
	require.ErrorIs(t, err, config.ErrInvalidSize)
}

func TestParseThreshold(t *testing.T) {
	t.Parallel()

	got, err := config.ParseThreshold("50MB/s")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), got)

	for _, bad := range []string{"", "0", "0MB/s"} {
		_, err = config.ParseThreshold(bad)
		require.ErrorIs(t, err, config.ErrInvalidThreshold, bad)
	}

	_, err = config.ParseThreshold("fast")
	require.ErrorIs(t, err, config.ErrInvalidSize)
}
