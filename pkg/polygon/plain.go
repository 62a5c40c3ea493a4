package polygon

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Compile-time interface check.
var _ Backend = (*PlainBackend)(nil)

// PlainBackend is the degraded Backend built from plain arithmetic. It
// buffers by radial scaling, intersects only against convex clip rings and
// cannot triangulate, which makes the alpha shape fall back to the hull.
type PlainBackend struct{}

// NewPlainBackend returns a PlainBackend.
func NewPlainBackend() *PlainBackend {
	return &PlainBackend{}
}

// Name implements Backend.
func (b *PlainBackend) Name() string { return BackendPlain }

// Buffer implements Backend with RadialOffset. A zero distance returns p
// unchanged since there is no way to resolve crossings here.
func (b *PlainBackend) Buffer(p Polygon, distance float64) ([]Polygon, error) {
	if len(p) < 3 {
		return nil, fmt.Errorf("%w: buffer needs 3 points, got %d", ErrDegenerate, len(p))
	}
	if distance == 0 {
		return []Polygon{p.Clone()}, nil
	}
	return []Polygon{RadialOffset(p, distance)}, nil
}

// Boolean implements Backend. Only intersection with a convex ring works.
func (b *PlainBackend) Boolean(op BooleanOp, a, c Polygon) ([]Polygon, error) {
	if op != OpIntersection || !IsConvex(c) {
		return nil, fmt.Errorf("%w: plain %s", ErrUnsupported, op)
	}
	out := clipConvex(a, c)
	if len(out) < 3 {
		return nil, nil
	}
	return []Polygon{out}, nil
}

// Delaunay implements Backend; it is not available here.
func (b *PlainBackend) Delaunay(pts []r2.Vec) ([][3]int, error) {
	return nil, fmt.Errorf("%w: plain delaunay", ErrUnsupported)
}

// ConvexHull implements Backend with the monotone chain hull.
func (b *PlainBackend) ConvexHull(pts []r2.Vec) (Polygon, error) {
	hull := ConvexHull(pts)
	if hull == nil {
		return nil, fmt.Errorf("%w: fewer than 3 non-collinear points", ErrDegenerate)
	}
	return hull, nil
}

// RadialOffset moves every vertex away from (or toward) the vertex mean by
// distance. This approximates a buffer for near-convex shapes only.
func RadialOffset(p Polygon, distance float64) Polygon {
	if len(p) == 0 {
		return nil
	}
	var c r2.Vec
	for _, v := range p {
		c = r2.Add(c, v)
	}
	c = r2.Scale(1/float64(len(p)), c)

	out := make(Polygon, len(p))
	for i, v := range p {
		d := r2.Sub(v, c)
		dist := r2.Norm(d)
		if dist == 0 {
			out[i] = v
			continue
		}
		out[i] = r2.Add(c, r2.Scale((dist+distance)/dist, d))
	}
	return out
}

// IsConvex reports whether p turns the same way at every vertex.
func IsConvex(p Polygon) bool {
	if len(p) < 3 {
		return false
	}
	var sign float64
	for i := range p {
		o := orient(p[i], p[(i+1)%len(p)], p[(i+2)%len(p)])
		if o == 0 {
			continue
		}
		if sign == 0 {
			sign = o
		} else if (o > 0) != (sign > 0) {
			return false
		}
	}
	return sign != 0
}
