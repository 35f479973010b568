package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeToMilliliters(t *testing.T) {
	tests := []struct {
		size string
		want float64
	}{
		{"750ML", 750},
		{"750ml", 750},
		{"1.75L", 1750},
		{"1L", 1000},
		{" 50ML ", 50},
		{"", 0},
		{"OZ", 0},
		{"abcL", 0},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			assert.InDelta(t, tt.want, SizeToMilliliters(tt.size), 1e-9)
		})
	}
}

func TestVolumeMilliliters(t *testing.T) {
	assert.InDelta(t, 750*4*6, VolumeMilliliters("750ML", 4, 6), 1e-9)
	assert.Zero(t, VolumeMilliliters("unknown", 4, 6))
}
