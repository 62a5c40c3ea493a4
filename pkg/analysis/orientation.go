package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
)

// OrientationScore rates demolding along one axis. Higher is better.
type OrientationScore struct {
	Axis               mesh.Axis `json:"axis"`
	ProjectedArea      float64   `json:"projectedArea"`
	UndercutPercentage float64   `json:"undercutPercentage"`
	Height             float64   `json:"height"`
	Score              float64   `json:"score"`
	Summary            string    `json:"summary"`
}

// ProjectedArea is the convex shadow area of m viewed along axis. If no
// hull can be formed the bounding rectangle is used.
func ProjectedArea(m *mesh.Mesh, axis mesh.Axis, b polygon.Backend) float64 {
	pts := m.ProjectVertices(axis)
	if b != nil {
		if h, err := b.ConvexHull(pts); err == nil && len(h) >= 3 {
			return h.Area()
		}
	}
	if h := polygon.ConvexHull(pts); h != nil {
		return h.Area()
	}
	s := m.Bounds().Size()
	switch axis {
	case mesh.AxisX:
		return s.Y * s.Z
	case mesh.AxisY:
		return s.X * s.Z
	}
	return s.X * s.Y
}

// OrientationScoreFor combines shadow area, undercut share and height.
func OrientationScoreFor(axis mesh.Axis, area, undercutPct, height float64) OrientationScore {
	factor := 1.0
	if undercutPct != 0 {
		factor = 1 / (undercutPct + 1)
	}
	desc := "significant"
	switch {
	case undercutPct < 5:
		desc = "minimal"
	case undercutPct < 15:
		desc = "moderate"
	}
	return OrientationScore{
		Axis:               axis,
		ProjectedArea:      area,
		UndercutPercentage: undercutPct,
		Height:             height,
		Score:              area * factor / math.Max(height, 0.1),
		Summary:            fmt.Sprintf("%s undercuts (%.1f%%), %.1fmm height", desc, undercutPct, height),
	}
}

// ScoreOrientations scores x, y and z and returns them best first. An axis
// whose ray casting fails scores as free of undercuts.
func ScoreOrientations(m *mesh.Mesh, u *UndercutAnalyzer, b polygon.Backend) []OrientationScore {
	size := m.Bounds().Size()
	scores := make([]OrientationScore, 0, 3)
	for _, axis := range mesh.Axes {
		pct, err := u.Percentage(axis)
		if err != nil {
			logging.Logger().WithField("axis", axis.String()).Warnf("analysis: undercut scoring failed: %v", err)
		}
		scores = append(scores, OrientationScoreFor(
			axis,
			ProjectedArea(m, axis, b),
			pct,
			axis.Component(size),
		))
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}
