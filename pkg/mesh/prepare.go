package mesh

import (
	"fmt"
	"math"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// SymmetryTolerance bounds |min + max| per axis for a centered mesh.
const SymmetryTolerance = 1e-3

// CoordinateTracker records how Prepare moved a mesh. It is not modified
// after Prepare returns.
type CoordinateTracker struct {
	OriginalBounds       Bounds
	OriginalCenterOfMass r3.Vec
	BBoxCenter           r3.Vec
	// Offset is the translation applied to every vertex (-BBoxCenter).
	Offset r3.Vec
	// Recenter is the extra shift applied after reorientation.
	Recenter    r3.Vec
	FinalBounds Bounds
	// Reoriented is the axis rotated onto Z, or AxisZ if none.
	Reoriented Axis
}

// IsSymmetric reports whether the final bounds straddle the origin within
// tol on every axis.
func (t *CoordinateTracker) IsSymmetric(tol float64) bool {
	b := t.FinalBounds
	return math.Abs(b.Min.X+b.Max.X) <= tol &&
		math.Abs(b.Min.Y+b.Max.Y) <= tol &&
		math.Abs(b.Min.Z+b.Max.Z) <= tol
}

// Apply2D moves externally computed profile points (in original XY
// coordinates) into the centered frame. A Z projection cannot follow a
// reorientation, so it fails with ErrReoriented unless Reoriented is Z.
func (t *CoordinateTracker) Apply2D(pts []r2.Vec) ([]r2.Vec, error) {
	if t.Reoriented != AxisZ {
		return nil, fmt.Errorf("%w: %s was rotated onto z", ErrReoriented, t.Reoriented)
	}
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[i] = r2.Vec{X: p.X + t.Offset.X, Y: p.Y + t.Offset.Y}
	}
	return out, nil
}

func (t *CoordinateTracker) String() string {
	return fmt.Sprintf("offset=(%.3f, %.3f, %.3f) final=[%.3f..%.3f, %.3f..%.3f, %.3f..%.3f]",
		t.Offset.X, t.Offset.Y, t.Offset.Z,
		t.FinalBounds.Min.X, t.FinalBounds.Max.X,
		t.FinalBounds.Min.Y, t.FinalBounds.Max.Y,
		t.FinalBounds.Min.Z, t.FinalBounds.Max.Z)
}

// Prepare centers m on its bounding-box center in place, then rotates the
// reorient axis onto Z when it is not Z already.
func Prepare(m *Mesh, reorient Axis) (*CoordinateTracker, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	log := logging.Logger()

	t := &CoordinateTracker{
		OriginalBounds:       m.Bounds(),
		OriginalCenterOfMass: m.CenterOfMass(),
		Reoriented:           AxisZ,
	}
	t.BBoxCenter = t.OriginalBounds.Center()
	t.Offset = r3.Scale(-1, t.BBoxCenter)
	m.Translate(t.Offset)

	if reorient != AxisZ {
		m.Rotate(reorientation(reorient))
		t.Reoriented = reorient
		if c := m.Bounds().Center(); r3.Norm(c) > 0 {
			t.Recenter = r3.Scale(-1, c)
			m.Translate(t.Recenter)
		}
	}
	t.FinalBounds = m.Bounds()

	fields := logrus.Fields{
		"original_center": t.BBoxCenter,
		"center_of_mass":  t.OriginalCenterOfMass,
		"reoriented":      t.Reoriented.String(),
	}
	if !t.IsSymmetric(SymmetryTolerance) {
		log.WithFields(fields).Errorf("mesh: bounds not symmetric after centering: %s", t)
	} else {
		log.WithFields(fields).Debugf("mesh: prepared %s", t)
	}
	return t, nil
}

// reorientation returns the rotation taking axis onto Z.
func reorientation(axis Axis) mgl64.Mat3 {
	switch axis {
	case AxisX:
		return mgl64.Rotate3DY(math.Pi / 2)
	case AxisY:
		return mgl64.Rotate3DX(-math.Pi / 2)
	}
	return mgl64.Ident3()
}
