package polygon

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// ConvexHull returns the counter-clockwise convex hull of pts using the
// monotone chain algorithm. Fewer than three non-collinear points give nil.
func ConvexHull(pts []r2.Vec) Polygon {
	ps := Dedupe(pts)
	if len(ps) < 3 {
		return nil
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})

	hull := make(Polygon, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		return nil
	}
	return hull
}

// Dedupe removes repeated points, keeping first occurrences in order.
func Dedupe(pts []r2.Vec) []r2.Vec {
	seen := make(map[r2.Vec]struct{}, len(pts))
	out := make([]r2.Vec, 0, len(pts))
	for _, p := range pts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
