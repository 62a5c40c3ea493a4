package polygon

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrUnsupported is returned by a Backend that cannot perform an operation.
var ErrUnsupported = errors.New("polygon: operation not supported by backend")

// BooleanOp selects a 2D boolean operation.
type BooleanOp int

const (
	OpIntersection BooleanOp = iota
	OpUnion
)

func (op BooleanOp) String() string {
	switch op {
	case OpIntersection:
		return "intersection"
	case OpUnion:
		return "union"
	}
	return fmt.Sprintf("BooleanOp(%d)", int(op))
}

// Backend is the set of geometry primitives the polygon and alpha shape
// code depends on. Implementations are selected once at startup.
type Backend interface {
	// Name identifies the implementation in logs and reports.
	Name() string
	// Buffer grows (distance > 0) or shrinks (distance < 0) p with
	// mitered joins. A zero distance cleans up self-intersections.
	Buffer(p Polygon, distance float64) ([]Polygon, error)
	// Boolean combines a and b. Results may have several pieces.
	Boolean(op BooleanOp, a, b Polygon) ([]Polygon, error)
	// Delaunay triangulates pts, returning index triples into pts.
	Delaunay(pts []r2.Vec) ([][3]int, error)
	// ConvexHull returns the hull of pts.
	ConvexHull(pts []r2.Vec) (Polygon, error)
}

// Backend names accepted by SelectBackend.
const (
	BackendClipper = "clipper"
	BackendPlain   = "plain"
)

// SelectBackend returns the backend registered under name. An empty name
// selects the full-featured clipper backend.
func SelectBackend(name string) (Backend, error) {
	switch name {
	case "", BackendClipper:
		return NewClipperBackend(), nil
	case BackendPlain:
		return NewPlainBackend(), nil
	}
	return nil, fmt.Errorf("polygon: unknown backend %q: %w", name, ErrUnsupported)
}
