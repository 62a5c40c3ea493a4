package polygon

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerate reports a polygon that cannot be used as a profile.
var ErrDegenerate = errors.New("polygon: degenerate")

// Validate checks that p has at least three points, does not cross
// itself and encloses at least MinArea. The reason string is meant for
// diagnostics and is returned in both the valid and invalid case.
func Validate(p Polygon) (string, error) {
	if len(p) == 0 {
		reason := "empty points list"
		return reason, fmt.Errorf("%w: %s", ErrDegenerate, reason)
	}
	if len(p) < 3 {
		reason := fmt.Sprintf("only %d points (need >= 3)", len(p))
		return reason, fmt.Errorf("%w: %s", ErrDegenerate, reason)
	}
	if SelfIntersects(p) {
		reason := "invalid geometry: self-intersection"
		return reason, fmt.Errorf("%w: %s", ErrDegenerate, reason)
	}
	a := p.Area()
	if a < MinArea {
		reason := fmt.Sprintf("area too small (%.4f mm^2)", a)
		return reason, fmt.Errorf("%w: %s", ErrDegenerate, reason)
	}
	return fmt.Sprintf("valid (area=%.2f mm^2)", a), nil
}

// SelfIntersects reports whether two non-adjacent edges of p cross.
// Touching and collinear overlap are not counted.
func SelfIntersects(p Polygon) bool {
	n := len(p)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := p[i], p[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent through the closing edge
			}
			b1, b2 := p[j], p[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func segmentsCross(a1, a2, b1, b2 r2.Vec) bool {
	const eps = 1e-12
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)
	return ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps))
}
