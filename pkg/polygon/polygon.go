// Package polygon provides the 2D polygon operations used to derive mold
// opening contours: offsetting, half-plane clipping, mirroring and validity
// checks. Buffering, booleans and triangulation go through a Backend that
// is chosen once at startup.
package polygon

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MinArea is the smallest area (mm²) a polygon may have to be usable.
const MinArea = 1e-2

// Polygon is a closed ring of points. The closing point is implicit and
// must not be repeated.
type Polygon []r2.Vec

// FromPoints builds a Polygon from plain coordinate pairs.
func FromPoints(pts [][2]float64) Polygon {
	p := make(Polygon, len(pts))
	for i, pt := range pts {
		p[i] = r2.Vec{X: pt[0], Y: pt[1]}
	}
	return p
}

// Points returns the polygon as plain coordinate pairs.
func (p Polygon) Points() [][2]float64 {
	out := make([][2]float64, len(p))
	for i, v := range p {
		out[i] = [2]float64{v.X, v.Y}
	}
	return out
}

// MarshalJSON encodes p as a list of [x, y] pairs.
func (p Polygon) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.Points())
}

// UnmarshalJSON decodes a list of [x, y] pairs.
func (p *Polygon) UnmarshalJSON(b []byte) error {
	var pts [][2]float64
	if err := json.Unmarshal(b, &pts); err != nil {
		return fmt.Errorf("polygon: %w", err)
	}
	if pts == nil {
		*p = nil
		return nil
	}
	*p = FromPoints(pts)
	return nil
}

// Clone returns a copy that shares no storage with p.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Reversed returns the points of p in reverse order.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// SignedArea is the shoelace area, positive for counter-clockwise rings.
func (p Polygon) SignedArea() float64 {
	if len(p) < 3 {
		return 0
	}
	var a float64
	for i := range p {
		j := (i + 1) % len(p)
		a += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return a / 2
}

// Area returns the unsigned enclosed area.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// Perimeter returns the length of the closed boundary.
func (p Polygon) Perimeter() float64 {
	if len(p) < 2 {
		return 0
	}
	var l float64
	for i := range p {
		l += r2.Norm(r2.Sub(p[(i+1)%len(p)], p[i]))
	}
	return l
}

// CCW returns p with counter-clockwise winding.
func (p Polygon) CCW() Polygon {
	if p.SignedArea() < 0 {
		return p.Reversed()
	}
	return p.Clone()
}

// Centroid returns the area centroid. Rings with (near) zero area fall
// back to the mean of their vertices.
func (p Polygon) Centroid() r2.Vec {
	if len(p) == 0 {
		return r2.Vec{}
	}
	a := p.SignedArea()
	if math.Abs(a) < 1e-12 {
		var sum r2.Vec
		for _, v := range p {
			sum = r2.Add(sum, v)
		}
		return r2.Scale(1/float64(len(p)), sum)
	}
	var cx, cy float64
	for i := range p {
		j := (i + 1) % len(p)
		cross := p[i].X*p[j].Y - p[j].X*p[i].Y
		cx += (p[i].X + p[j].X) * cross
		cy += (p[i].Y + p[j].Y) * cross
	}
	return r2.Vec{X: cx / (6 * a), Y: cy / (6 * a)}
}

// Bounds returns the axis-aligned bounding box of p.
func (p Polygon) Bounds() (min, max r2.Vec) {
	if len(p) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	min, max = p[0], p[0]
	for _, v := range p[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
	}
	return min, max
}

// Rectangle returns an axis-aligned counter-clockwise rectangle centered
// on (cx, cy).
func Rectangle(cx, cy, w, h float64) Polygon {
	hw, hh := w/2, h/2
	return Polygon{
		{X: cx - hw, Y: cy - hh},
		{X: cx + hw, Y: cy - hh},
		{X: cx + hw, Y: cy + hh},
		{X: cx - hw, Y: cy + hh},
	}
}

// Mirror reflects p across the X axis, (x, y) -> (x, -y), and reverses
// the point order so the winding direction is preserved. Mirror is an
// involution: Mirror(Mirror(p)) equals p point for point.
func Mirror(p Polygon) Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	for i, v := range p {
		out[len(p)-1-i] = r2.Vec{X: v.X, Y: -v.Y}
	}
	return out
}

// Largest returns the piece with the greatest area, or nil.
func Largest(pieces []Polygon) Polygon {
	var best Polygon
	bestArea := -1.0
	for _, pc := range pieces {
		if len(pc) < 3 {
			continue
		}
		if a := pc.Area(); a > bestArea {
			best, bestArea = pc, a
		}
	}
	return best
}

// Circumradius returns the radius of the circle through a, b and c using
// side lengths and Heron's formula. Triangles with (near) zero area have
// an infinite circumradius.
func Circumradius(a, b, c r2.Vec) float64 {
	la := r2.Norm(r2.Sub(b, c))
	lb := r2.Norm(r2.Sub(a, c))
	lc := r2.Norm(r2.Sub(a, b))
	s := (la + lb + lc) / 2
	sq := s * (s - la) * (s - lb) * (s - lc)
	if sq <= 0 {
		return math.Inf(1)
	}
	area := math.Sqrt(sq)
	if area < 1e-10 {
		return math.Inf(1)
	}
	return la * lb * lc / (4 * area)
}
