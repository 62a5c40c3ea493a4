// Package analysis judges whether a mesh can be cast in a two-part
// compression mold: manifoldness, demold direction scoring, undercuts,
// draft angles and the silhouette used to shape the mold opening.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Report is the outcome of Analyze.
type Report struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	VertexCount          int        `json:"vertexCount"`
	TriangleCount        int        `json:"triangleCount"`
	BoundingBox          [3]float64 `json:"boundingBox"`
	SurfaceArea          float64    `json:"surfaceArea"`
	IsManifold           bool       `json:"isManifold"`
	NonManifoldEdgeCount int        `json:"nonManifoldEdgeCount"`
	Volume               *float64   `json:"volume"`

	RepairInfo             mesh.RepairInfo              `json:"repairInfo"`
	OrientationScores      []OrientationScore           `json:"orientationScores"`
	RecommendedOrientation mesh.Axis                    `json:"recommendedOrientation"`
	UndercutAnalysis       map[mesh.Axis]UndercutReport `json:"undercutAnalysis"`
	DraftAnalysis          DraftReport                  `json:"draftAnalysis"`
	AlphaShape             *AlphaShape                  `json:"alphaShape"`
	GeometryBackend        string                       `json:"geometryBackend"`

	IsMoldable     bool     `json:"isMoldable"`
	Warnings       []string `json:"warnings"`
	Errors         []string `json:"errors"`
	AnalysisTimeMs int64    `json:"analysisTimeMs"`

	// Mesh is the analysed (possibly repaired) mesh.
	Mesh *mesh.Mesh `json:"-"`
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) fail(err error) *Report {
	r.Success = false
	r.Error = err.Error()
	r.Errors = append(r.Errors, fmt.Sprintf("Analysis failed: %v", err))
	r.IsMoldable = false
	return r
}

// Analyzer runs moldability analysis with one geometry backend.
type Analyzer struct {
	backend polygon.Backend
	alpha   *AlphaShapeBuilder
}

// NewAnalyzer returns an Analyzer on b; nil selects the clipper backend.
func NewAnalyzer(b polygon.Backend) *Analyzer {
	ab := NewAlphaShapeBuilder(b)
	return &Analyzer{backend: ab.Backend, alpha: ab}
}

// AnalyzeSTL decodes STL bytes and analyses them. Decode failures are
// reported as an unsuccessful Report.
func (a *Analyzer) AnalyzeSTL(ctx context.Context, data []byte, opts Options) *Report {
	m, err := mesh.ReadSTL(bytes.NewReader(data))
	if err != nil {
		start := time.Now()
		r := &Report{ID: uuid.NewString(), Warnings: []string{}, Errors: []string{}, GeometryBackend: a.backend.Name()}
		r.fail(err)
		r.AnalysisTimeMs = time.Since(start).Milliseconds()
		return r
	}
	return a.Analyze(ctx, m, opts)
}

// Analyze reports on m without modifying it. The report is unsuccessful
// only for invalid input, bad options or cancellation; geometric problems
// become warnings and the IsMoldable verdict.
func (a *Analyzer) Analyze(ctx context.Context, m *mesh.Mesh, opts Options) *Report {
	start := time.Now()
	r := &Report{
		ID:              uuid.NewString(),
		Success:         true,
		Warnings:        []string{},
		Errors:          []string{},
		GeometryBackend: a.backend.Name(),
		RepairInfo:      mesh.RepairInfo{RepairType: mesh.RepairNone},
	}
	defer func() { r.AnalysisTimeMs = time.Since(start).Milliseconds() }()
	log := logging.Logger().WithField("run", r.ID)

	if err := opts.Validate(); err != nil {
		return r.fail(err)
	}
	if err := m.Validate(); err != nil {
		return r.fail(err)
	}
	if len(m.Faces) > opts.MaxTriangles {
		return r.fail(fmt.Errorf("%w: file too large (%d triangles, limit %d)", mesh.ErrTooLarge, len(m.Faces), opts.MaxTriangles))
	}

	r.VertexCount = len(m.Vertices)
	r.TriangleCount = len(m.Faces)
	size := m.Bounds().Size()
	r.BoundingBox = [3]float64{size.X, size.Y, size.Z}
	r.SurfaceArea = m.Area()
	r.IsManifold = m.IsWatertight()
	r.NonManifoldEdgeCount = m.NonManifoldEdges()
	log.WithFields(logrus.Fields{
		"vertices":  r.VertexCount,
		"triangles": r.TriangleCount,
		"manifold":  r.IsManifold,
	}).Info("analysis: mesh loaded")

	work := m
	if !r.IsManifold && opts.Repair {
		repaired, info := mesh.Repair(m)
		r.RepairInfo = info
		if info.WasRepaired {
			work = repaired
		}
		r.IsManifold = work.IsWatertight()
		log.WithField("repairType", info.RepairType).Info("analysis: repair attempted")
	}
	r.Mesh = work

	if r.IsManifold {
		v := work.Volume()
		r.Volume = &v
	} else {
		r.warn("Mesh is not watertight - volume cannot be computed")
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	u, err := NewUndercutAnalyzer(work)
	if err != nil {
		return r.fail(err)
	}
	r.OrientationScores = ScoreOrientations(work, u, a.backend)
	r.RecommendedOrientation = r.OrientationScores[0].Axis
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	r.UndercutAnalysis = make(map[mesh.Axis]UndercutReport, 3)
	for _, axis := range mesh.Axes {
		uc, err := u.Analyze(axis, opts.IncludeVertexIndices)
		if err != nil {
			r.warn("Undercut analysis failed on %s-axis: %v", axis, err)
		}
		r.UndercutAnalysis[axis] = uc
	}

	r.DraftAnalysis, err = AnalyzeDraft(work, opts.DemoldAxis, opts.MinDraftThreshold)
	if err != nil {
		r.warn("Draft analysis failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	r.AlphaShape, err = a.alpha.Build(work, opts.ProjectionAxis, opts.AlphaValue)
	if err != nil {
		r.warn("Alpha shape failed: %v", err)
	} else if shape := r.AlphaShape; shape != nil && errors.Is(shape.Fallback, polygon.ErrUnsupported) {
		r.warn("Using convex hull instead of alpha shape (%s backend has no triangulation)", a.backend.Name())
	} else if shape != nil && shape.Fallback != nil {
		log.Debugf("analysis: convex hull used for silhouette: %v", shape.Fallback)
	}

	r.IsMoldable = a.verdict(r)
	log.WithFields(logrus.Fields{
		"moldable":    r.IsMoldable,
		"recommended": r.RecommendedOrientation.String(),
	}).Info("analysis: complete")
	return r
}

// verdict fails only non-manifold meshes. Undercuts and draft problems are
// recorded as warnings.
func (a *Analyzer) verdict(r *Report) bool {
	if !r.IsManifold {
		r.Errors = append(r.Errors, "Mesh must be manifold (watertight) for mold generation")
		return false
	}
	rec := r.RecommendedOrientation
	if uc := r.UndercutAnalysis[rec]; uc.Severity == SeveritySevere {
		r.warn("Severe undercuts (%.1f%%) on %s-axis. Consider reorienting or modifying the part.", uc.Percentage, rec)
	}
	if d := r.DraftAnalysis; d.ProblemFaceCount > 0 {
		r.warn("%d faces have insufficient draft angle. Recommended draft correction: %v°", d.ProblemFaceCount, d.RecommendedDraft)
	}
	return true
}
