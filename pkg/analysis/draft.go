package analysis

import (
	"fmt"
	"math"

	"github.com/chazu/moldsmith/pkg/mesh"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultDraftThreshold is the minimum acceptable draft in degrees.
const DefaultDraftThreshold = 1.0

const maxProblemFaces = 100

// ProblemFace is a face with too little draft.
type ProblemFace struct {
	Index  int        `json:"index"`
	Draft  float64    `json:"draft"`
	Normal [3]float64 `json:"normal"`
}

// DraftReport summarises face draft angles against a demold axis.
type DraftReport struct {
	Axis             mesh.Axis     `json:"axis"`
	MinDraft         float64       `json:"minDraft"`
	MaxDraft         float64       `json:"maxDraft"`
	AvgDraft         float64       `json:"avgDraft"`
	Threshold        float64       `json:"threshold"`
	ProblemFaceCount int           `json:"problemFaceCount"`
	ProblemFaces     []ProblemFace `json:"problemFaces"`
	RecommendedDraft float64       `json:"recommendedDraft"`
}

// fallbackDraft is reported when draft cannot be measured.
func fallbackDraft(axis mesh.Axis, threshold float64) DraftReport {
	return DraftReport{
		Axis:         axis,
		MinDraft:     0,
		MaxDraft:     90,
		AvgDraft:     45,
		Threshold:    threshold,
		ProblemFaces: []ProblemFace{},
	}
}

// FaceDraft returns the draft of a face with unit normal n against axis
// direction a, in degrees: 0 for a wall parallel to a, 90 for a face
// perpendicular to it.
func FaceDraft(n, a r3.Vec) float64 {
	c := math.Min(1, math.Abs(r3.Dot(n, a)))
	return 90 - math.Acos(c)*180/math.Pi
}

// AnalyzeDraft measures every face of m against axis and flags faces
// whose draft is below threshold degrees.
func AnalyzeDraft(m *mesh.Mesh, axis mesh.Axis, threshold float64) (DraftReport, error) {
	if err := m.Validate(); err != nil {
		return fallbackDraft(axis, threshold), fmt.Errorf("analysis: draft: %w", err)
	}
	a := axis.Unit()
	normals := m.FaceNormals()
	drafts := make([]float64, 0, len(normals))
	r := DraftReport{Axis: axis, Threshold: threshold, ProblemFaces: []ProblemFace{}}
	for i, n := range normals {
		if n == (r3.Vec{}) {
			continue
		}
		d := FaceDraft(n, a)
		drafts = append(drafts, d)
		if d < threshold {
			r.ProblemFaceCount++
			if len(r.ProblemFaces) < maxProblemFaces {
				r.ProblemFaces = append(r.ProblemFaces, ProblemFace{Index: i, Draft: d, Normal: [3]float64{n.X, n.Y, n.Z}})
			}
		}
	}
	if len(drafts) == 0 {
		return fallbackDraft(axis, threshold), fmt.Errorf("analysis: draft: %w: every face is degenerate", mesh.ErrInvalidMesh)
	}

	r.MinDraft = floats.Min(drafts)
	r.MaxDraft = floats.Max(drafts)
	r.AvgDraft = floats.Sum(drafts) / float64(len(drafts))
	switch {
	case float64(r.ProblemFaceCount) > 0.1*float64(len(drafts)):
		r.RecommendedDraft = 2.0
	case r.ProblemFaceCount > 0:
		r.RecommendedDraft = 1.0
	}
	return r, nil
}
