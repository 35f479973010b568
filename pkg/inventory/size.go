package inventory

import (
	"strconv"
	"strings"
)

// SizeToMilliliters converts a size descriptor such as "750ML" or "1.75L"
// into millilitres. Unknown or malformed descriptors convert to 0.
func SizeToMilliliters(size string) float64 {
	s := strings.ToUpper(strings.TrimSpace(size))
	var (
		num   string
		scale float64
	)
	switch {
	case strings.HasSuffix(s, "ML"):
		num, scale = strings.TrimSuffix(s, "ML"), 1
	case strings.HasSuffix(s, "L"):
		num, scale = strings.TrimSuffix(s, "L"), 1000
	default:
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0
	}
	return v * scale
}

// VolumeMilliliters is the total volume held for a SKU: bottle size times
// quantity times cases per pallet.
func VolumeMilliliters(size string, quantity, casesPerPallet int) float64 {
	return SizeToMilliliters(size) * float64(quantity) * float64(casesPerPallet)
}
