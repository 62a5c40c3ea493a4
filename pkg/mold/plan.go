package mold

import (
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
)

// ProfileType names the silhouette used for the opening and piston.
type ProfileType string

const (
	ProfileContour     ProfileType = "contour_following"
	ProfileRectangular ProfileType = "rectangular"
)

// Side is one of the two cavity halves.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// dir is -1 for the left (Y < 0) half and +1 for the right.
func (s Side) dir() float64 {
	if s == SideLeft {
		return -1
	}
	return 1
}

// BoltHole is a vertical through hole in one cavity half.
type BoltHole struct {
	Side     Side    `json:"side"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Diameter float64 `json:"diameter"`
}

// Contours are the left and right opening outlines. When LeftValid is set
// Right is exactly polygon.Mirror(Left).
type Contours struct {
	Left       polygon.Polygon `json:"left"`
	Right      polygon.Polygon `json:"right"`
	LeftValid  bool            `json:"leftValid"`
	RightValid bool            `json:"rightValid"`
}

// Mirrored reports whether the right contour was derived from the left.
func (c Contours) Mirrored() bool {
	return c.LeftValid && c.RightValid
}

func (c Contours) forSide(s Side) (polygon.Polygon, bool) {
	if s == SideLeft {
		return c.Left, c.LeftValid
	}
	return c.Right, c.RightValid
}

// Plan is the geometry of a modular box mold in the centered, floor
// positioned frame: the mold halves stand on z=0 and the piston flange
// sits on z=0 with its body below. A Plan is not modified after the
// Planner returns it.
type Plan struct {
	SplitAxis  mesh.Axis `json:"splitAxis"`
	SplitLevel float64   `json:"splitLevel"`

	ProfileType ProfileType     `json:"profileType"`
	Profile     polygon.Polygon `json:"profile"`
	Contours    Contours        `json:"contours"`
	// Unified is set when the contours include the part footprint.
	Unified bool `json:"unified"`

	PartSize       [3]float64 `json:"partSize"`
	Wall           float64    `json:"wallThickness"`
	Floor          float64    `json:"floorThickness"`
	Stroke         float64    `json:"stroke"`
	PlateThickness float64    `json:"plateThickness"`
	FitTolerance   float64    `json:"fitTolerance"`

	LowerHeight float64 `json:"lowerHeight"`
	UpperHeight float64 `json:"upperHeight"`
	HasUpper    bool    `json:"hasUpper"`

	// OuterBox is the assembled cavity block: width, depth, height.
	OuterBox [3]float64 `json:"outerBox"`
	// InnerOpening is the rectangular opening width and depth.
	InnerOpening [2]float64 `json:"innerOpening"`

	// PistonProfile is the body outline, nil for a rectangular body.
	PistonProfile    polygon.Polygon `json:"pistonProfile"`
	PistonBody       [2]float64      `json:"pistonBody"`
	PistonBodyHeight float64         `json:"pistonBodyHeight"`

	BoltHoles []BoltHole `json:"boltHoles"`
}

// ContourCutHeight is how far the opening is cut above the floor.
func (p *Plan) ContourCutHeight() float64 {
	return p.OuterBox[2] - p.Floor
}

// PistonHeight is the flange plus body height.
func (p *Plan) PistonHeight() float64 {
	return p.PlateThickness + p.PistonBodyHeight
}

// UsesContour reports whether the opening follows the part silhouette.
func (p *Plan) UsesContour() bool {
	return p.ProfileType == ProfileContour
}

// ProfilePoints returns the profile points for display: the contour
// points, or the four rectangle corners.
func (p *Plan) ProfilePoints() [][2]float64 {
	return p.Profile.Points()
}

func (p *Plan) clone() *Plan {
	c := *p
	c.Profile = p.Profile.Clone()
	c.Contours.Left = p.Contours.Left.Clone()
	c.Contours.Right = p.Contours.Right.Clone()
	c.PistonProfile = p.PistonProfile.Clone()
	c.BoltHoles = append([]BoltHole(nil), p.BoltHoles...)
	return &c
}
