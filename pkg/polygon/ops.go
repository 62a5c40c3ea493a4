package polygon

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Ops bundles the polygon operations the mold planner needs on top of a
// Backend, adding the documented fallbacks when the backend fails.
type Ops struct {
	backend Backend
}

// NewOps returns Ops that delegate to b. A nil b selects the clipper
// backend.
func NewOps(b Backend) *Ops {
	if b == nil {
		b = NewClipperBackend()
	}
	return &Ops{backend: b}
}

// Backend returns the backend in use.
func (o *Ops) Backend() Backend { return o.backend }

// Offset grows (d > 0) or shrinks (d < 0) p with mitered joins. When the
// backend fails or returns nothing, vertices are scaled radially instead,
// which is only faithful for near-convex shapes.
func (o *Ops) Offset(p Polygon, d float64) Polygon {
	if len(p) < 3 || d == 0 {
		return p.Clone()
	}
	pieces, err := o.backend.Buffer(p, d)
	if best := Largest(pieces); err == nil && best != nil {
		return best
	}
	logging.Logger().WithFields(logrus.Fields{
		"backend":  o.backend.Name(),
		"distance": d,
	}).Debugf("polygon: buffer unavailable (%v), using radial offset", err)
	return RadialOffset(p, d)
}

// ClipToHalfPlane keeps the part of p below (keepBelow) or above the line
// y = bound. Multi-piece results keep the largest piece. An empty
// intersection returns nil.
func (o *Ops) ClipToHalfPlane(p Polygon, bound float64, keepBelow bool) Polygon {
	if len(p) < 3 {
		return nil
	}
	min, max := p.Bounds()
	margin := 1 + 2*math.Max(max.X-min.X, max.Y-min.Y)

	var half Polygon
	if keepBelow {
		lo := math.Min(min.Y, bound) - margin
		half = Rectangle((min.X+max.X)/2, (lo+bound)/2, max.X-min.X+2*margin, bound-lo)
	} else {
		hi := math.Max(max.Y, bound) + margin
		half = Rectangle((min.X+max.X)/2, (bound+hi)/2, max.X-min.X+2*margin, hi-bound)
	}

	pieces, err := o.backend.Boolean(OpIntersection, p, half)
	if err == nil {
		return Largest(pieces)
	}
	logging.Logger().WithField("backend", o.backend.Name()).
		Debugf("polygon: boolean clip unavailable (%v), using single-edge clip", err)
	out := clipHalfPlane(p, bound, keepBelow)
	if len(out) < 3 {
		return nil
	}
	return out
}

// Union merges a and b and keeps the largest resulting piece.
func (o *Ops) Union(a, b Polygon) (Polygon, error) {
	pieces, err := o.backend.Boolean(OpUnion, a, b)
	if err != nil {
		return nil, fmt.Errorf("polygon: union: %w", err)
	}
	best := Largest(pieces)
	if best == nil {
		return nil, fmt.Errorf("polygon: union: %w", ErrDegenerate)
	}
	return best, nil
}

// Clean resolves self-intersections with a zero-width buffer and keeps the
// largest piece. If the backend cannot help, p is returned as is.
func (o *Ops) Clean(p Polygon) Polygon {
	pieces, err := o.backend.Buffer(p, 0)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			logging.Logger().Debugf("polygon: clean failed: %v", err)
		}
		return p
	}
	if best := Largest(pieces); best != nil {
		return best
	}
	return p
}
