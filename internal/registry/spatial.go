package registry

import (
	"fmt"
	"math/bits"
)

const (
	MaxHorizontal = 1_000_000
	MaxVertical   = 1_000
	MaxWidth      = 10_000
	MaxHeight     = 10_000
	MaxDepth      = 1_000
)

// ValidateCoordinates reports whether every axis is within its bound.
func ValidateCoordinates(c Coordinates) bool {
	return c.X >= -MaxHorizontal && c.X <= MaxHorizontal &&
		c.Y >= -MaxHorizontal && c.Y <= MaxHorizontal &&
		c.Z >= -MaxVertical && c.Z <= MaxVertical
}

// ValidateDimensions reports whether every extent is in (0, bound].
func ValidateDimensions(d Dimensions) bool {
	return d.Width > 0 && d.Width <= MaxWidth &&
		d.Height > 0 && d.Height <= MaxHeight &&
		d.Depth > 0 && d.Depth <= MaxDepth
}

// Area returns width × height, failing instead of wrapping on overflow.
func Area(d Dimensions) (uint32, error) {
	hi, lo := bits.Mul32(d.Width, d.Height)
	if hi != 0 {
		return 0, fmt.Errorf("%w: area overflows %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}
	return lo, nil
}

// Overlaps reports whether two half-open boxes [origin, origin+extent)
// intersect on all three axes. Boxes that only share a face do not overlap.
func Overlaps(c1 Coordinates, d1 Dimensions, c2 Coordinates, d2 Dimensions) bool {
	return axisOverlaps(c1.X, d1.Width, c2.X, d2.Width) &&
		axisOverlaps(c1.Y, d1.Height, c2.Y, d2.Height) &&
		axisOverlaps(c1.Z, d1.Depth, c2.Z, d2.Depth)
}

func axisOverlaps(origin1 int32, extent1 uint32, origin2 int32, extent2 uint32) bool {
	min1, max1 := int64(origin1), int64(origin1)+int64(extent1)
	min2, max2 := int64(origin2), int64(origin2)+int64(extent2)
	return min1 < max2 && min2 < max1
}

// chebyshevWithin reports whether every axis of a and b differs by at most radius.
func chebyshevWithin(a, b Coordinates, radius uint32) bool {
	r := int64(radius)
	return abs64(int64(a.X)-int64(b.X)) <= r &&
		abs64(int64(a.Y)-int64(b.Y)) <= r &&
		abs64(int64(a.Z)-int64(b.Z)) <= r
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
