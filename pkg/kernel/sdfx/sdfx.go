// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Meshes are produced by
// marching cubes, so volumes and outlines are approximations whose
// accuracy follows the mesh resolution.
package sdfx

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/unixpickle/model3d/model3d"
)

// Name is the registry name of this backend.
const Name = "sdfx"

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 200

func init() {
	kernel.Register(Name, func() (kernel.Kernel, error) { return New(), nil })
}

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid. A nil s is the
// empty solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	if s.s == nil {
		return min, max
	}
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// bounded overrides the bounding box of an SDF.
type bounded struct {
	sdf.SDF3
	bb sdf.Box3
}

func (b *bounded) BoundingBox() sdf.Box3 { return b.bb }

// sewn evaluates a closed mesh as an SDF. model3d is positive inside, sdfx
// negative, hence the sign flip.
type sewn struct {
	sdf model3d.SDF
	bb  sdf.Box3
}

func (s *sewn) Evaluate(p v3.Vec) float64 {
	return -s.sdf.SDF(model3d.XYZ(p.X, p.Y, p.Z))
}

func (s *sewn) BoundingBox() sdf.Box3 { return s.bb }

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest side
// of each rendered solid.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: defaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Name implements kernel.Kernel.
func (k *SdfxKernel) Name() string { return Name }

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) (sdf.SDF3, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, fmt.Errorf("sdfx: foreign solid %T", s)
	}
	return ss.s, nil
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

func unwrap2(a, b kernel.Solid) (sdf.SDF3, sdf.SDF3, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// Sew builds a solid from a closed triangle soup.
func (k *SdfxKernel) Sew(tris []kernel.Triangle) (kernel.Solid, error) {
	if len(tris) == 0 {
		return nil, fmt.Errorf("sdfx: sew: %w", kernel.ErrEmptySolid)
	}
	mt := make([]*model3d.Triangle, len(tris))
	for i, t := range tris {
		mt[i] = &model3d.Triangle{
			model3d.XYZ(t[0][0], t[0][1], t[0][2]),
			model3d.XYZ(t[1][0], t[1][1], t[1][2]),
			model3d.XYZ(t[2][0], t[2][1], t[2][2]),
		}
	}
	m := model3d.NewMeshTriangles(mt)
	if m.NeedsRepair() {
		return nil, fmt.Errorf("sdfx: sew: %w", kernel.ErrNotWatertight)
	}
	min, max := m.Min(), m.Max()
	return wrap(&sewn{
		sdf: model3d.MeshToSDF(m),
		bb:  sdf.Box3{Min: v3.Vec{X: min.X, Y: min.Y, Z: min.Z}, Max: v3.Vec{X: max.X, Y: max.Y, Z: max.Z}},
	}), nil
}

// Box creates a box with the given dimensions. The resulting solid has its
// minimum corner at the origin (0,0,0). sdf.Box3D centers the box at the
// origin, so we translate by half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder standing on z=0. The segments parameter is
// ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: height / 2}))), nil
}

// Extrude sweeps profile between z=0 and z=height.
func (k *SdfxKernel) Extrude(profile polygon.Polygon, height float64) (kernel.Solid, error) {
	if height == 0 {
		return nil, fmt.Errorf("sdfx: extrude: %w: zero height", kernel.ErrEmptySolid)
	}
	if _, err := polygon.Validate(profile); err != nil {
		return nil, fmt.Errorf("sdfx: extrude: %w", err)
	}
	ring := profile.CCW()
	pts := make([]v2.Vec, len(ring))
	for i, p := range ring {
		pts[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	s2, err := sdf.Polygon2D(pts)
	if err != nil {
		return nil, fmt.Errorf("sdfx: extrude: %w", err)
	}
	s3 := sdf.Extrude3D(s2, math.Abs(height))
	return wrap(sdf.Transform3D(s3, sdf.Translate3d(v3.Vec{Z: height / 2}))), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	switch {
	case sa == nil:
		return b, nil
	case sb == nil:
		return a, nil
	}
	return wrap(sdf.Union3D(sa, sb)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	if sa == nil || sb == nil {
		return a, nil
	}
	return wrap(sdf.Difference3D(sa, sb)), nil
}

// Intersection returns the intersection of two solids. The result is
// bounded by the overlap of both bounding boxes; disjoint boxes give the
// empty solid.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	if sa == nil || sb == nil {
		return wrap(nil), nil
	}
	ba, bb := sa.BoundingBox(), sb.BoundingBox()
	overlap := sdf.Box3{
		Min: v3.Vec{X: math.Max(ba.Min.X, bb.Min.X), Y: math.Max(ba.Min.Y, bb.Min.Y), Z: math.Max(ba.Min.Z, bb.Min.Z)},
		Max: v3.Vec{X: math.Min(ba.Max.X, bb.Max.X), Y: math.Min(ba.Max.Y, bb.Max.Y), Z: math.Min(ba.Max.Z, bb.Max.Z)},
	}
	if overlap.Min.X >= overlap.Max.X || overlap.Min.Y >= overlap.Max.Y || overlap.Min.Z >= overlap.Max.Z {
		return wrap(nil), nil
	}
	return wrap(&bounded{SDF3: sdf.Intersect3D(sa, sb), bb: overlap}), nil
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		return s, nil
	}
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(ss, m)), nil
}

// triangles renders s with marching cubes. Renderer panics surface as
// errors.
func (k *SdfxKernel) triangles(s kernel.Solid) (tris []kernel.Triangle, err error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		return nil, kernel.ErrEmptySolid
	}
	defer func() {
		if r := recover(); r != nil {
			tris, err = nil, fmt.Errorf("sdfx: render: %v", r)
		}
	}()

	renderer := render.NewMarchingCubesUniform(k.cells)
	for _, tri := range render.ToTriangles(ss, renderer) {
		tris = append(tris, kernel.Triangle{
			{tri[0].X, tri[0].Y, tri[0].Z},
			{tri[1].X, tri[1].Y, tri[1].Z},
			{tri[2].X, tri[2].Y, tri[2].Z},
		})
	}
	if len(tris) == 0 {
		return nil, kernel.ErrEmptySolid
	}
	return tris, nil
}

// Volume returns the volume of the rendered surface. The empty solid has
// volume 0.
func (k *SdfxKernel) Volume(s kernel.Solid) (float64, error) {
	tris, err := k.triangles(s)
	if errors.Is(err, kernel.ErrEmptySolid) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return kernel.TrianglesVolume(tris), nil
}

// Footprint returns the XY shadow outline of the rendered surface.
func (k *SdfxKernel) Footprint(s kernel.Solid) (polygon.Polygon, error) {
	tris, err := k.triangles(s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: footprint: %w", err)
	}
	return kernel.TrianglesFootprint(tris)
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	tris, err := k.triangles(s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: mesh: %w", err)
	}
	return kernel.NewMesh(tris), nil
}

// Export writes s in the given format. SDF solids have no boundary
// representation, so only STL is supported.
func (k *SdfxKernel) Export(s kernel.Solid, format kernel.Format, w io.Writer) error {
	if format != kernel.FormatSTL {
		return fmt.Errorf("sdfx: export %s: %w", format, kernel.ErrUnsupported)
	}
	tris, err := k.triangles(s)
	if err != nil {
		return fmt.Errorf("sdfx: export: %w", err)
	}
	return kernel.WriteTrianglesSTL(w, tris)
}
