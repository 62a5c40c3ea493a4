package polygon

import (
	"fmt"
	"math"

	clipper "github.com/ctessum/go.clipper"
	"github.com/ctessum/geom"
	"github.com/fogleman/delaunay"
	"gonum.org/v1/gonum/spatial/r2"
)

// Compile-time interface check.
var _ Backend = (*ClipperBackend)(nil)

const (
	// clipperScale converts millimetres to clipper's integer grid (0.1 µm).
	clipperScale = 1e4
	// miterLimit bounds how far mitered corners may spike, in multiples of
	// the offset distance.
	miterLimit = 5.0
)

// ClipperBackend is the full-featured Backend: offsets through
// go.clipper, booleans through ctessum/geom and triangulation through
// fogleman/delaunay.
type ClipperBackend struct{}

// NewClipperBackend returns a ClipperBackend.
func NewClipperBackend() *ClipperBackend {
	return &ClipperBackend{}
}

// Name implements Backend.
func (b *ClipperBackend) Name() string { return BackendClipper }

// Buffer offsets p with mitered joins. A zero distance runs a strictly
// simple union instead, which splits self-intersecting rings apart.
func (b *ClipperBackend) Buffer(p Polygon, distance float64) (out []Polygon, err error) {
	if len(p) < 3 {
		return nil, fmt.Errorf("%w: buffer needs 3 points, got %d", ErrDegenerate, len(p))
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("polygon: clipper buffer: %v", r)
		}
	}()

	var paths clipper.Paths
	if distance == 0 {
		paths = clipper.NewClipper(clipper.IoNone).SimplifyPolygon(toPath(p), clipper.PftNonZero)
	} else {
		co := clipper.NewClipperOffset()
		co.MiterLimit = miterLimit
		co.AddPath(toPath(p), clipper.JtMiter, clipper.EtClosedPolygon)
		paths = co.Execute(distance * clipperScale)
	}
	for _, path := range paths {
		if q := fromPath(path); len(q) >= 3 {
			out = append(out, q)
		}
	}
	return out, nil
}

// Boolean implements Backend using ctessum/geom polygon clipping.
func (b *ClipperBackend) Boolean(op BooleanOp, a, c Polygon) (out []Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("polygon: geom %s: %v", op, r)
		}
	}()

	ga, gc := toGeom(a), toGeom(c)
	var res geom.Polygon
	switch op {
	case OpIntersection:
		res = ga.Intersection(gc)
	case OpUnion:
		res = ga.Union(gc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}
	for _, path := range res {
		q := make(Polygon, len(path))
		for i, pt := range path {
			q[i] = r2.Vec{X: pt.X, Y: pt.Y}
		}
		if q = dropRepeats(q); len(q) >= 3 {
			out = append(out, q)
		}
	}
	return out, nil
}

// UnionAll merges many rings in a single clipper pass. Holes come back as
// separate rings; callers usually keep the Largest.
func UnionAll(rings []Polygon) (out []Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("polygon: clipper union: %v", r)
		}
	}()

	c := clipper.NewClipper(clipper.IoNone)
	n := 0
	for _, p := range rings {
		if len(p) < 3 || p.Area() == 0 {
			continue
		}
		c.AddPath(toPath(p.CCW()), clipper.PtSubject, true)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: nothing to union", ErrDegenerate)
	}
	paths, ok := c.Execute1(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return nil, fmt.Errorf("polygon: clipper union failed")
	}
	for _, path := range paths {
		if q := fromPath(path); len(q) >= 3 {
			out = append(out, q)
		}
	}
	return out, nil
}

// Delaunay implements Backend.
func (b *ClipperBackend) Delaunay(pts []r2.Vec) ([][3]int, error) {
	tri, err := delaunay.Triangulate(toDelaunay(pts))
	if err != nil {
		return nil, fmt.Errorf("polygon: delaunay: %w", err)
	}
	out := make([][3]int, len(tri.Triangles)/3)
	for i := range out {
		out[i] = [3]int{tri.Triangles[3*i], tri.Triangles[3*i+1], tri.Triangles[3*i+2]}
	}
	return out, nil
}

// ConvexHull implements Backend using the hull delaunay already computes.
func (b *ClipperBackend) ConvexHull(pts []r2.Vec) (Polygon, error) {
	tri, err := delaunay.Triangulate(toDelaunay(Dedupe(pts)))
	if err != nil {
		return nil, fmt.Errorf("polygon: convex hull: %w", err)
	}
	hull := make(Polygon, len(tri.ConvexHull))
	for i, p := range tri.ConvexHull {
		hull[i] = r2.Vec{X: p.X, Y: p.Y}
	}
	if len(hull) < 3 {
		return nil, fmt.Errorf("%w: hull has %d points", ErrDegenerate, len(hull))
	}
	return hull.CCW(), nil
}

func toPath(p Polygon) clipper.Path {
	path := make(clipper.Path, len(p))
	for i, v := range p {
		path[i] = &clipper.IntPoint{
			X: clipper.CInt(math.Round(v.X * clipperScale)),
			Y: clipper.CInt(math.Round(v.Y * clipperScale)),
		}
	}
	return path
}

func fromPath(path clipper.Path) Polygon {
	p := make(Polygon, len(path))
	for i, pt := range path {
		p[i] = r2.Vec{X: float64(pt.X) / clipperScale, Y: float64(pt.Y) / clipperScale}
	}
	return dropRepeats(p)
}

func toGeom(p Polygon) geom.Polygon {
	path := make(geom.Path, len(p))
	for i, v := range p {
		path[i] = geom.Point{X: v.X, Y: v.Y}
	}
	return geom.Polygon{path}
}

func toDelaunay(pts []r2.Vec) []delaunay.Point {
	out := make([]delaunay.Point, len(pts))
	for i, p := range pts {
		out[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	return out
}
