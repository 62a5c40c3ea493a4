package analysis

import (
	"fmt"
	"math"

	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/unixpickle/model3d/model3d"
)

// Severity grades the share of undercut vertices.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

const (
	// rayNudge lifts each ray origin off its own vertex.
	rayNudge = 0.001
	// minHitDistance ignores hits at the ray origin.
	minHitDistance = 1e-6
	// maxUndercutIndices caps UndercutReport.VertexIndices.
	maxUndercutIndices = 1000
)

// UndercutReport describes vertices trapped when demolding along +Axis.
type UndercutReport struct {
	Axis          mesh.Axis `json:"axis"`
	Count         int       `json:"undercutVertexCount"`
	Percentage    float64   `json:"undercutPercentage"`
	MaxDepth      float64   `json:"maxUndercutDepth"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	VertexIndices []int     `json:"undercutVertexIndices,omitempty"`
}

// SeverityFor grades an undercut percentage and describes it.
func SeverityFor(pct float64) (Severity, string) {
	switch {
	case pct < 1:
		return SeverityNone, "No significant undercuts detected"
	case pct < 10:
		return SeverityMinor, fmt.Sprintf("Minor undercuts (%.1f%%) - may be acceptable for flexible molds", pct)
	case pct < 30:
		return SeverityModerate, fmt.Sprintf("Moderate undercuts (%.1f%%) - consider reorienting part", pct)
	}
	return SeveritySevere, fmt.Sprintf("Severe undercuts (%.1f%%) - not suitable for simple two-part mold", pct)
}

// UndercutAnalyzer casts one ray per vertex along the demold direction.
// A vertex is undercut when its ray enters material again, that is hits a
// face whose normal opposes the ray.
type UndercutAnalyzer struct {
	m        *mesh.Mesh
	collider model3d.Collider
}

// NewUndercutAnalyzer indexes m for ray casting.
func NewUndercutAnalyzer(m *mesh.Mesh) (*UndercutAnalyzer, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &UndercutAnalyzer{m: m, collider: model3d.MeshToCollider(m.ToModel3D())}, nil
}

// depths returns, per vertex, the distance to the first entering hit along
// +axis, or -1 when the ray escapes. A panic in the collider is returned as
// an error.
func (u *UndercutAnalyzer) depths(axis mesh.Axis) (out []float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("analysis: ray casting along %s: %v", axis, p)
		}
	}()
	dir := axis.Unit()
	d := model3d.XYZ(dir.X, dir.Y, dir.Z)
	out = make([]float64, len(u.m.Vertices))
	for i, v := range u.m.Vertices {
		origin := model3d.XYZ(v.X, v.Y, v.Z).Add(d.Scale(rayNudge))
		first := math.Inf(1)
		u.collider.RayCollisions(&model3d.Ray{Origin: origin, Direction: d}, func(rc model3d.RayCollision) {
			if rc.Scale > minHitDistance && rc.Normal.Dot(d) < 0 && rc.Scale < first {
				first = rc.Scale
			}
		})
		if math.IsInf(first, 1) {
			out[i] = -1
		} else {
			out[i] = first
		}
	}
	return out, nil
}

// Percentage returns the share of undercut vertices along axis, 0..100.
func (u *UndercutAnalyzer) Percentage(axis mesh.Axis) (float64, error) {
	ds, err := u.depths(axis)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range ds {
		if d >= 0 {
			n++
		}
	}
	return 100 * float64(n) / float64(len(u.m.Vertices)), nil
}

// Analyze returns the detailed report for axis. includeIndices lists up to
// 1000 undercut vertex indices. On error the report carries the message
// and severity none.
func (u *UndercutAnalyzer) Analyze(axis mesh.Axis, includeIndices bool) (UndercutReport, error) {
	ds, err := u.depths(axis)
	if err != nil {
		return failedUndercut(axis, err), err
	}
	r := UndercutReport{Axis: axis}
	var indices []int
	for i, d := range ds {
		if d < 0 {
			continue
		}
		r.Count++
		r.MaxDepth = math.Max(r.MaxDepth, d)
		indices = append(indices, i)
	}
	r.Percentage = 100 * float64(r.Count) / float64(len(u.m.Vertices))
	r.Severity, r.Description = SeverityFor(r.Percentage)
	if includeIndices {
		if len(indices) > maxUndercutIndices {
			indices = indices[:maxUndercutIndices]
		}
		r.VertexIndices = indices
		if r.VertexIndices == nil {
			r.VertexIndices = []int{}
		}
	}
	return r, nil
}

// UndercutPercentage is a one-shot Percentage for m.
func UndercutPercentage(m *mesh.Mesh, axis mesh.Axis) (float64, error) {
	u, err := NewUndercutAnalyzer(m)
	if err != nil {
		return 0, err
	}
	return u.Percentage(axis)
}

// AnalyzeUndercuts is a one-shot Analyze for m.
func AnalyzeUndercuts(m *mesh.Mesh, axis mesh.Axis, includeIndices bool) (UndercutReport, error) {
	u, err := NewUndercutAnalyzer(m)
	if err != nil {
		return failedUndercut(axis, err), err
	}
	return u.Analyze(axis, includeIndices)
}

func failedUndercut(axis mesh.Axis, err error) UndercutReport {
	return UndercutReport{
		Axis:        axis,
		Severity:    SeverityNone,
		Description: fmt.Sprintf("Analysis error: %v", err),
	}
}
