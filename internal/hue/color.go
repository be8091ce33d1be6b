package hue

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Colour temperature range supported by Hue white ambiance bulbs, in mirek.
const (
	minMirek = 153
	maxMirek = 500
)

// hexToXY converts a six digit hex colour to CIE 1931 xy chromaticity.
func hexToXY(code string) ([]float32, error) {
	c, err := colorful.Hex("#" + code)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", code, err)
	}
	x, y, _ := c.Xyy()
	return []float32{float32(x), float32(y)}, nil
}

// hexToMirek approximates the colour temperature of a hex colour (McCamy's
// formula) and clamps it to the range white ambiance bulbs accept.
func hexToMirek(code string) (uint16, error) {
	c, err := colorful.Hex("#" + code)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", code, err)
	}
	x, y, _ := c.Xyy()

	n := (x - 0.3320) / (0.1858 - y)
	cct := 449*n*n*n + 3525*n*n + 6823.3*n + 5520.33
	if cct <= 0 {
		return maxMirek, nil
	}

	mirek := math.Round(1e6 / cct)
	return uint16(math.Max(minMirek, math.Min(maxMirek, mirek))), nil
}
