package analysis

import (
	"fmt"

	"github.com/chazu/moldsmith/pkg/mesh"
)

// DefaultMaxTriangles bounds the meshes Analyze accepts.
const DefaultMaxTriangles = 2_000_000

// Options configures Analyze. Use DefaultOptions and override fields.
type Options struct {
	Repair               bool      `json:"repair"`
	DemoldAxis           mesh.Axis `json:"demoldAxis"`
	// ProjectionAxis is normally the demold axis. Set both when changing
	// the demold direction, or use Along.
	ProjectionAxis       mesh.Axis `json:"projectionAxis"`
	AlphaValue           float64   `json:"alphaValue"`
	MinDraftThreshold    float64   `json:"minDraftThreshold"`
	IncludeVertexIndices bool      `json:"includeVertexIndices"`
	MaxTriangles         int       `json:"maxTriangles"`
}

// DefaultOptions returns the documented defaults: repair on, demold and
// projection along Z, alpha 0.1, 1 degree draft threshold.
func DefaultOptions() Options {
	return Options{
		Repair:            true,
		DemoldAxis:        mesh.AxisZ,
		ProjectionAxis:    mesh.AxisZ,
		AlphaValue:        DefaultAlpha,
		MinDraftThreshold: DefaultDraftThreshold,
		MaxTriangles:      DefaultMaxTriangles,
	}
}

// Along returns o demolding and projecting along axis.
func (o Options) Along(axis mesh.Axis) Options {
	o.DemoldAxis = axis
	o.ProjectionAxis = axis
	return o
}

// Validate checks option ranges.
func (o Options) Validate() error {
	for name, a := range map[string]mesh.Axis{"demoldAxis": o.DemoldAxis, "projectionAxis": o.ProjectionAxis} {
		if a < mesh.AxisX || a > mesh.AxisZ {
			return fmt.Errorf("analysis: %s: invalid axis %d", name, int(a))
		}
	}
	if o.AlphaValue <= 0 {
		return fmt.Errorf("analysis: alphaValue must be positive, got %v", o.AlphaValue)
	}
	if o.MinDraftThreshold < 0 || o.MinDraftThreshold > 90 {
		return fmt.Errorf("analysis: minDraftThreshold must be within [0, 90], got %v", o.MinDraftThreshold)
	}
	if o.MaxTriangles <= 0 {
		return fmt.Errorf("analysis: maxTriangles must be positive, got %d", o.MaxTriangles)
	}
	return nil
}
