// Package mold plans and builds three-piece compression molds: two cavity
// halves split at Y=0 that hold the lower half of the part, and a piston
// whose body carries the upper half. Geometry is requested from a
// kernel.Kernel; the planner itself only does 2D work.
package mold

import (
	"fmt"
	"math"

	"github.com/chazu/moldsmith/pkg/analysis"
	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
)

// cutterSize is the edge of the boxes used to cut solids in half.
const cutterSize = 10000.0

// minHalfVolume is the volume below which a split half is discarded.
const minHalfVolume = 0.001

// boltSegments is the facet count for bolt hole cylinders.
const boltSegments = 32

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mold: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithAlphaPoints supplies a Z silhouette computed on the mesh before it was
// centered. The points are moved into the centered frame. They are ignored
// when Config.Orientation rotates the part.
func WithAlphaPoints(pts [][2]float64) PlannerOption {
	return func(p *Planner) {
		p.rawAlpha = polygon.FromPoints(pts)
	}
}

// WithOps sets the polygon operations. The default uses the clipper
// backend.
func WithOps(ops *polygon.Ops) PlannerOption {
	return func(p *Planner) {
		if ops != nil {
			p.ops = ops
		}
	}
}

// WithRunID sets the run ID used in log fields and results.
func WithRunID(id string) PlannerOption {
	return func(p *Planner) {
		if id != "" {
			p.runID = id
		}
	}
}

// Planner owns one mold generation: the centered mesh, its tracker, the
// configuration and the intermediate solids. It is not safe for
// concurrent use.
type Planner struct {
	mesh    *mesh.Mesh
	tracker *mesh.CoordinateTracker
	cfg     Config
	kernel  kernel.Kernel
	ops     *polygon.Ops
	runID   string
	log     *logrus.Entry

	rawAlpha polygon.Polygon
	alpha    polygon.Polygon

	plan *Plan

	lower, upper          kernel.Solid
	lowerLeft, lowerRight kernel.Solid
	upperMinZ             float64
}

// NewPlanner validates cfg, centers a copy of m (rotating cfg.Orientation
// onto Z) and prepares the silhouette. m is not modified.
func NewPlanner(m *mesh.Mesh, cfg Config, k kernel.Kernel, opts ...PlannerOption) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if k == nil {
		return nil, fmt.Errorf("mold: %w: no kernel", kernel.ErrUnavailable)
	}
	if m == nil {
		return nil, fmt.Errorf("mold: %w: nil mesh", mesh.ErrInvalidMesh)
	}
	p := &Planner{
		mesh:   m.Clone(),
		cfg:    cfg,
		kernel: k,
		ops:    polygon.NewOps(nil),
		runID:  uuid.NewString(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = logging.Logger().WithFields(logrus.Fields{"run": p.runID, "kernel": k.Name()})

	tracker, err := mesh.Prepare(p.mesh, cfg.Orientation)
	if err != nil {
		return nil, fmt.Errorf("mold: prepare: %w", err)
	}
	p.tracker = tracker

	if cfg.UseAlphaProfile {
		p.alpha = p.silhouette()
	}
	return p, nil
}

// silhouette re-centers the supplied alpha points, or builds the shape from
// the prepared mesh when there are none or they cannot be re-centered.
func (p *Planner) silhouette() polygon.Polygon {
	if len(p.rawAlpha) >= 3 {
		pts, err := p.tracker.Apply2D(p.rawAlpha)
		if err == nil {
			p.log.Debugf("mold: re-centered alpha shape by (%.3f, %.3f)", p.tracker.Offset.X, p.tracker.Offset.Y)
			return polygon.Polygon(pts)
		}
		p.log.Warnf("mold: ignoring supplied alpha points: %v", err)
	}
	shape, err := analysis.NewAlphaShapeBuilder(p.ops.Backend()).Build(p.mesh, mesh.AxisZ, p.cfg.AlphaValue)
	if err != nil {
		p.log.Warnf("mold: alpha shape failed: %v", err)
		return nil
	}
	if shape == nil {
		return nil
	}
	return shape.Polygon()
}

// RunID returns the ID used in this planner's log fields.
func (p *Planner) RunID() string { return p.runID }

// Config returns the planner's configuration.
func (p *Planner) Config() Config { return p.cfg }

// Tracker returns how the mesh was centered.
func (p *Planner) Tracker() *mesh.CoordinateTracker { return p.tracker }

// Kernel returns the solid modeling backend.
func (p *Planner) Kernel() kernel.Kernel { return p.kernel }

func (p *Planner) partSize() r2.Vec {
	s := p.tracker.FinalBounds.Size()
	return r2.Vec{X: s.X, Y: s.Y}
}

// Profile chooses the silhouette for the opening and the piston. The
// alpha shape is only used for a Z split, since it is an XY projection;
// otherwise, or without a usable alpha shape, the bounding rectangle is
// used.
func (p *Planner) Profile() (polygon.Polygon, ProfileType) {
	size := p.partSize()
	rect := polygon.Rectangle(0, 0, size.X, size.Y)
	switch {
	case p.cfg.SplitAxis != mesh.AxisZ:
		p.log.WithField("axis", p.cfg.SplitAxis.String()).
			Infof("mold: contour following disabled for %s split, using rectangular profile", p.cfg.SplitAxis)
		return rect, ProfileRectangular
	case len(p.alpha) >= 3:
		p.log.Debugf("mold: using alpha shape profile with %d points", len(p.alpha))
		return p.alpha.Clone(), ProfileContour
	default:
		p.log.Debug("mold: using rectangular bounding box profile")
		return rect, ProfileRectangular
	}
}

// DeriveOpeningContours clips profile to Y < 0 and mirrors the result for
// the right side, so both halves are symmetric even when profile is not.
// If the left clip is unusable the right side is clipped on its own and
// the left falls back to a rectangle.
func (p *Planner) DeriveOpeningContours(profile polygon.Polygon) Contours {
	log := p.log.WithField("stage", "contours")
	left := p.ops.ClipToHalfPlane(profile, 0, true)
	reason, err := polygon.Validate(left)
	log.Debugf("mold: left contour %d points: %s", len(left), reason)
	if err == nil {
		return Contours{Left: left, Right: polygon.Mirror(left), LeftValid: true, RightValid: true}
	}

	right := p.ops.ClipToHalfPlane(profile, 0, false)
	_, rerr := polygon.Validate(right)
	log.Warnf("mold: left contour invalid (%s), clipping right independently", reason)
	if rerr != nil {
		log.Warn("mold: invalid clipped contour, falling back to rectangular opening")
	}
	return Contours{Left: left, Right: right, RightValid: rerr == nil}
}

// UnifyWithFootprint grows the opening to cover the footprint of lower
// (offset by the fit tolerance) and re-derives symmetric contours. On any
// failure the given contours are returned unchanged with ok false.
func (p *Planner) UnifyWithFootprint(lower kernel.Solid, profile polygon.Polygon, c Contours) (Contours, bool) {
	log := p.log.WithField("stage", "unify")
	fp, err := p.kernel.Footprint(lower)
	if err != nil {
		log.Debugf("mold: footprint failed: %v, using alpha shape", err)
		return c, false
	}
	fp = p.ops.Offset(fp, p.cfg.FitTolerance)
	union, err := p.ops.Union(fp, profile)
	if err != nil {
		log.Debugf("mold: union failed: %v, using alpha shape", err)
		return c, false
	}
	left := p.ops.ClipToHalfPlane(union, 0, true)
	if reason, err := polygon.Validate(left); err != nil {
		log.Debugf("mold: unified left invalid (%s), using alpha shape", reason)
		return c, false
	}
	log.Debugf("mold: unified opening: footprint=%.1f alpha=%.1f union=%.1f", fp.Area(), profile.Area(), union.Area())
	return Contours{Left: left, Right: polygon.Mirror(left), LeftValid: true, RightValid: true}, true
}

// cutter returns a huge box covering one side of the plane axis=level.
func (p *Planner) cutter(axis mesh.Axis, level float64, below bool) (kernel.Solid, error) {
	box, err := p.kernel.Box(cutterSize, cutterSize, cutterSize)
	if err != nil {
		return nil, err
	}
	off := [3]float64{-cutterSize / 2, -cutterSize / 2, -cutterSize / 2}
	off[axis] = level
	if below {
		off[axis] = level - cutterSize
	}
	return p.kernel.Translate(box, off[0], off[1], off[2])
}

func (p *Planner) keep(s kernel.Solid) (kernel.Solid, error) {
	v, err := p.kernel.Volume(s)
	if err != nil {
		return nil, err
	}
	if v <= minHalfVolume {
		return nil, nil
	}
	return s, nil
}

// SplitPart cuts s at the plane perpendicular to axis through level. A
// half with no material is nil, so a plane outside the solid returns the
// solid on one side only.
func (p *Planner) SplitPart(s kernel.Solid, axis mesh.Axis, level float64) (lower, upper kernel.Solid, err error) {
	halves := [2]kernel.Solid{}
	for i, below := range []bool{true, false} {
		c, err := p.cutter(axis, level, below)
		if err != nil {
			return nil, nil, fmt.Errorf("cutter: %w", err)
		}
		h, err := p.kernel.Intersection(s, c)
		if err != nil {
			return nil, nil, fmt.Errorf("intersect: %w", err)
		}
		if halves[i], err = p.keep(h); err != nil {
			return nil, nil, fmt.Errorf("volume: %w", err)
		}
	}
	return halves[0], halves[1], nil
}

func toKernelTriangles(m *mesh.Mesh) []kernel.Triangle {
	tris := make([]kernel.Triangle, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		for j, v := range t {
			tris[i][j] = [3]float64{v.X, v.Y, v.Z}
		}
	}
	return tris
}

// Plan runs the planning stages once and returns a copy of the result.
// Later calls return the same plan.
func (p *Planner) Plan() (*Plan, error) {
	if p.plan != nil {
		return p.plan.clone(), nil
	}
	cfg := p.cfg
	wall, floor := cfg.Scaled()
	b := p.tracker.FinalBounds
	size := b.Size()
	log := p.log.WithField("axis", cfg.SplitAxis.String())
	log.Debugf("mold: part %.2f x %.2f x %.2f mm, wall=%.1f floor=%.1f stroke=%.1f",
		size.X, size.Y, size.Z, wall, floor, cfg.Stroke)

	profile, ptype := p.Profile()
	contours := p.DeriveOpeningContours(profile)

	part, err := p.kernel.Sew(toKernelTriangles(p.mesh))
	if err != nil {
		return nil, stageErr("sew", err)
	}
	part, err = p.kernel.Translate(part, 0, 0, floor-b.Min.Z)
	if err != nil {
		return nil, stageErr("position", err)
	}

	var level float64
	if cfg.SplitAxis == mesh.AxisZ {
		level = floor + size.Z/2
	}
	lower, upper, err := p.SplitPart(part, cfg.SplitAxis, level)
	if err != nil {
		return nil, stageErr("split", err)
	}
	if lower == nil || upper == nil {
		log.Warn("mold: part split did not produce two halves, using full part for cavity")
		lower, upper = part, nil
	}

	lmin, lmax := lower.BoundingBox()
	lowerHeight := lmax[2] - lmin[2]
	upperSize := [3]float64{size.X, size.Y, 0}
	if upper != nil {
		umin, umax := upper.BoundingBox()
		upperSize = [3]float64{umax[0] - umin[0], umax[1] - umin[1], umax[2] - umin[2]}
		p.upperMinZ = umin[2]
	}

	plan := &Plan{
		SplitAxis:      cfg.SplitAxis,
		SplitLevel:     level,
		ProfileType:    ptype,
		Profile:        profile,
		Contours:       contours,
		PartSize:       [3]float64{size.X, size.Y, size.Z},
		Wall:           wall,
		Floor:          floor,
		Stroke:         cfg.Stroke,
		PlateThickness: cfg.PlateThickness,
		FitTolerance:   cfg.FitTolerance,
		LowerHeight:    lowerHeight,
		UpperHeight:    upperSize[2],
		HasUpper:       upper != nil,
		OuterBox:       [3]float64{size.X + 2*wall, size.Y + 2*wall, floor + lowerHeight + cfg.Stroke},
		InnerOpening:   [2]float64{math.Max(upperSize[0], size.X), math.Max(upperSize[1], size.Y)},
	}

	if ptype == ProfileContour && contours.LeftValid {
		plan.Contours, plan.Unified = p.UnifyWithFootprint(lower, profile, contours)
	}

	p.lowerLeft, p.lowerRight, err = p.SplitPart(lower, mesh.AxisY, 0)
	if err != nil {
		return nil, stageErr("split", err)
	}
	p.lower, p.upper = lower, upper

	plan.PistonBody = [2]float64{
		plan.InnerOpening[0] - 2*cfg.FitTolerance,
		plan.InnerOpening[1] - 2*cfg.FitTolerance,
	}
	plan.PistonBodyHeight = cfg.Stroke + plan.UpperHeight
	if ptype == ProfileContour {
		body := p.ops.Offset(profile, -cfg.FitTolerance)
		if reason, err := polygon.Validate(body); err != nil {
			log.Warnf("mold: piston body profile invalid (%s), falling back to rectangular", reason)
		} else {
			plan.PistonProfile = body
		}
	}
	plan.BoltHoles = boltHoles(plan.OuterBox, cfg.BoltHoleDiameter)

	log.WithFields(logrus.Fields{
		"outer":   plan.OuterBox,
		"opening": plan.InnerOpening,
		"profile": ptype,
	}).Info("mold: plan ready")
	p.plan = plan
	return plan.clone(), nil
}

// boltHoles places two holes per half near the outer corners, one hole
// radius plus 1 mm in from each edge.
func boltHoles(outer [3]float64, dia float64) []BoltHole {
	margin := dia/2 + 1
	x := outer[0]/2 - margin
	y := outer[1]/2 - margin
	return []BoltHole{
		{Side: SideLeft, X: -x, Y: -y, Diameter: dia},
		{Side: SideLeft, X: x, Y: -y, Diameter: dia},
		{Side: SideRight, X: -x, Y: y, Diameter: dia},
		{Side: SideRight, X: x, Y: y, Diameter: dia},
	}
}

func (p *Planner) ensurePlan() (*Plan, error) {
	if p.plan == nil {
		if _, err := p.Plan(); err != nil {
			return nil, err
		}
	}
	return p.plan, nil
}

// opening returns the solid removed from a half above the floor.
func (p *Planner) opening(plan *Plan, side Side) (kernel.Solid, error) {
	log := p.log.WithField("stage", string(side)+" half")
	if contour, ok := plan.Contours.forSide(side); plan.UsesContour() && ok {
		cut, err := p.kernel.Extrude(contour, plan.ContourCutHeight())
		if err == nil {
			log.Debugf("mold: using contour opening (%d pts)", len(contour))
			return p.kernel.Translate(cut, 0, 0, plan.Floor)
		}
		log.Warnf("mold: %s opening polygon failed: %v", side, err)
	}
	log.Debugf("mold: using rectangular opening for %s", side)
	w, d := plan.InnerOpening[0], plan.InnerOpening[1]
	rect := polygon.Rectangle(0, side.dir()*d/4, w, d/2)
	cut, err := p.kernel.Extrude(rect, plan.ContourCutHeight())
	if err != nil {
		return nil, err
	}
	return p.kernel.Translate(cut, 0, 0, plan.Floor)
}

// BuildHalf builds one cavity half: the outer block, the opening cut
// through from the floor, the lower part cavity and the bolt holes.
func (p *Planner) BuildHalf(side Side) (kernel.Solid, error) {
	plan, err := p.ensurePlan()
	if err != nil {
		return nil, err
	}
	stage := string(side) + " half"
	mw, md, mh := plan.OuterBox[0], plan.OuterBox[1], plan.OuterBox[2]

	half, err := p.kernel.Box(mw, md/2, mh)
	if err != nil {
		return nil, stageErr(stage, err)
	}
	y0 := 0.0
	if side == SideLeft {
		y0 = -md / 2
	}
	if half, err = p.kernel.Translate(half, -mw/2, y0, 0); err != nil {
		return nil, stageErr(stage, err)
	}

	cut, err := p.opening(plan, side)
	if err != nil {
		return nil, stageErr(stage, err)
	}
	if half, err = p.kernel.Difference(half, cut); err != nil {
		return nil, stageErr(stage, err)
	}

	cavity := p.lowerRight
	if side == SideLeft {
		cavity = p.lowerLeft
	}
	if cavity != nil {
		if half, err = p.kernel.Difference(half, cavity); err != nil {
			return nil, stageErr(stage, err)
		}
	}

	for _, h := range plan.BoltHoles {
		if h.Side != side {
			continue
		}
		hole, err := p.kernel.Cylinder(mh, h.Diameter/2, boltSegments)
		if err == nil {
			hole, err = p.kernel.Translate(hole, h.X, h.Y, 0)
		}
		if err == nil {
			half, err = p.kernel.Difference(half, hole)
		}
		if err != nil {
			return nil, stageErr("bolt holes", err)
		}
	}
	return half, nil
}

// BuildPiston builds the flange plate on z=0 with the body extruded
// downward. The upper part half is subtracted with its bottom at the
// body's working face.
func (p *Planner) BuildPiston() (kernel.Solid, error) {
	const stage = "piston"
	plan, err := p.ensurePlan()
	if err != nil {
		return nil, err
	}
	log := p.log.WithField("stage", stage)
	mw, md := plan.OuterBox[0], plan.OuterBox[1]

	flange, err := p.kernel.Box(mw, md, plan.PlateThickness)
	if err == nil {
		flange, err = p.kernel.Translate(flange, -mw/2, -md/2, 0)
	}
	if err != nil {
		return nil, stageErr(stage, err)
	}

	var body kernel.Solid
	if plan.PistonProfile != nil {
		if body, err = p.kernel.Extrude(plan.PistonProfile, -plan.PistonBodyHeight); err != nil {
			log.Warnf("mold: piston body polygon failed: %v", err)
			body = nil
		}
	}
	if body == nil {
		rect := polygon.Rectangle(0, 0, plan.PistonBody[0], plan.PistonBody[1])
		if body, err = p.kernel.Extrude(rect, -plan.PistonBodyHeight); err != nil {
			return nil, stageErr(stage, err)
		}
	}
	piston, err := p.kernel.Union(flange, body)
	if err != nil {
		return nil, stageErr(stage, err)
	}

	if p.upper == nil {
		log.Debug("mold: no upper half, piston has a flat bottom")
		return piston, nil
	}
	dz := -plan.PistonBodyHeight - p.upperMinZ
	upper, err := p.kernel.Translate(p.upper, 0, 0, dz)
	if err != nil {
		return nil, stageErr(stage, err)
	}
	log.Debugf("mold: subtracting upper half (z offset %.2f)", dz)
	if piston, err = p.kernel.Difference(piston, upper); err != nil {
		return nil, stageErr(stage, err)
	}
	return piston, nil
}
