//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Booleans are exact
// on triangle meshes, so mold pieces come out watertight without a
// tessellation step.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"unsafe"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/polygon"
)

// Name is the registry name of this backend.
const Name = "manifold"

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

func init() {
	kernel.Register(Name, New)
}

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	if s.empty() {
		return min, max
	}
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

func (s *manifoldSolid) empty() bool {
	return C.manifold_is_empty(s.ptr) != 0
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// checked wraps ptr and turns a Manifold status into an error.
func checked(op string, ptr *C.ManifoldManifold) (kernel.Solid, error) {
	s := newSolid(ptr)
	if status := C.manifold_status(ptr); status != 0 {
		return nil, fmt.Errorf("manifold: %s: status %d", op, int(status))
	}
	return s, nil
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Name implements kernel.Kernel.
func (k *ManifoldKernel) Name() string { return Name }

func unwrap(s kernel.Solid) (*manifoldSolid, error) {
	ms, ok := s.(*manifoldSolid)
	if !ok || ms == nil {
		return nil, fmt.Errorf("manifold: foreign solid %T", s)
	}
	return ms, nil
}

func unwrap2(a, b kernel.Solid) (*manifoldSolid, *manifoldSolid, error) {
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

// Sew welds coincident corners and hands the indexed mesh to Manifold,
// which rejects anything that is not a closed 2-manifold.
func (k *ManifoldKernel) Sew(tris []kernel.Triangle) (kernel.Solid, error) {
	if len(tris) == 0 {
		return nil, fmt.Errorf("manifold: sew: %w", kernel.ErrEmptySolid)
	}
	index := map[[3]float64]uint32{}
	var verts []C.float
	triVerts := make([]C.uint32_t, 0, len(tris)*3)
	for _, t := range tris {
		for _, p := range t {
			i, ok := index[p]
			if !ok {
				i = uint32(len(index))
				index[p] = i
				verts = append(verts, C.float(p[0]), C.float(p[1]), C.float(p[2]))
			}
			triVerts = append(triVerts, C.uint32_t(i))
		}
	}

	meshGL := C.manifold_meshgl(C.manifold_alloc_meshgl(),
		&verts[0], C.size_t(len(index)), 3,
		&triVerts[0], C.size_t(len(tris)),
	)
	defer C.manifold_delete_meshgl(meshGL)

	s, err := checked("sew", C.manifold_of_meshgl(C.manifold_alloc_manifold(), meshGL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrNotWatertight, err)
	}
	return s, nil
}

// Box creates an axis-aligned box with its minimum corner at the origin.
func (k *ManifoldKernel) Box(x, y, z float64) (kernel.Solid, error) {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cube(alloc,
		C.double(x), C.double(y), C.double(z),
		C.int(0), // center=false
	)
	return checked("box", ptr)
}

// Cylinder creates a cylinder from z=0 to z=height, centered on the Z axis.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cylinder(alloc,
		C.double(height),
		C.double(radius), // radius_low
		C.double(radius), // radius_high (same = not tapered)
		C.int(segments),
		C.int(0), // center=false
	)
	return checked("cylinder", ptr)
}

// Extrude sweeps profile between z=0 and z=height.
func (k *ManifoldKernel) Extrude(profile polygon.Polygon, height float64) (kernel.Solid, error) {
	if height == 0 {
		return nil, fmt.Errorf("manifold: extrude: %w: zero height", kernel.ErrEmptySolid)
	}
	if _, err := polygon.Validate(profile); err != nil {
		return nil, fmt.Errorf("manifold: extrude: %w", err)
	}
	ring := profile.CCW()

	pts := (*C.ManifoldVec2)(C.malloc(C.size_t(len(ring)) * C.size_t(unsafe.Sizeof(C.ManifoldVec2{}))))
	defer C.free(unsafe.Pointer(pts))
	cpts := unsafe.Slice(pts, len(ring))
	for i, p := range ring {
		cpts[i].x, cpts[i].y = C.double(p.X), C.double(p.Y)
	}

	simple := C.manifold_simple_polygon(C.manifold_alloc_simple_polygon(), pts, C.size_t(len(ring)))
	defer C.manifold_delete_simple_polygon(simple)
	list := (**C.ManifoldSimplePolygon)(C.malloc(C.size_t(unsafe.Sizeof(simple))))
	defer C.free(unsafe.Pointer(list))
	*list = simple
	polys := C.manifold_polygons(C.manifold_alloc_polygons(), list, 1)
	defer C.manifold_delete_polygons(polys)

	ptr := C.manifold_extrude(C.manifold_alloc_manifold(), polys,
		C.double(math.Abs(height)), 0, 0, 1, 1)
	s, err := checked("extrude", ptr)
	if err != nil || height > 0 {
		return s, err
	}
	return k.Translate(s, 0, 0, height)
}

// Union returns the boolean union of two solids.
func (k *ManifoldKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return checked("union", C.manifold_union(C.manifold_alloc_manifold(), sa.ptr, sb.ptr))
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return checked("difference", C.manifold_difference(C.manifold_alloc_manifold(), sa.ptr, sb.ptr))
}

// Intersection returns the boolean intersection of two solids.
func (k *ManifoldKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return checked("intersection", C.manifold_intersection(C.manifold_alloc_manifold(), sa.ptr, sb.ptr))
}

// Translate moves the solid by (x, y, z).
func (k *ManifoldKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	ms, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	ptr := C.manifold_translate(C.manifold_alloc_manifold(), ms.ptr,
		C.double(x), C.double(y), C.double(z),
	)
	return checked("translate", ptr)
}

// triangles extracts the solid's MeshGL as a triangle soup. Only the first
// three vertex properties (the position) are read.
func (k *ManifoldKernel) triangles(s kernel.Solid) ([]kernel.Triangle, error) {
	ms, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ms.empty() {
		return nil, kernel.ErrEmptySolid
	}

	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), ms.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return nil, kernel.ErrEmptySolid
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), meshGL)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	pos := func(i uint32) [3]float64 {
		base := int(i) * numProp
		return [3]float64{float64(props[base]), float64(props[base+1]), float64(props[base+2])}
	}
	tris := make([]kernel.Triangle, numTri)
	for t := range tris {
		tris[t] = kernel.Triangle{pos(indices[t*3]), pos(indices[t*3+1]), pos(indices[t*3+2])}
	}
	return tris, nil
}

// Volume returns the enclosed volume. The empty solid has volume 0.
func (k *ManifoldKernel) Volume(s kernel.Solid) (float64, error) {
	tris, err := k.triangles(s)
	if errors.Is(err, kernel.ErrEmptySolid) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return kernel.TrianglesVolume(tris), nil
}

// Footprint returns the XY shadow outline of the solid.
func (k *ManifoldKernel) Footprint(s kernel.Solid) (polygon.Polygon, error) {
	tris, err := k.triangles(s)
	if err != nil {
		return nil, fmt.Errorf("manifold: footprint: %w", err)
	}
	return kernel.TrianglesFootprint(tris)
}

// ToMesh extracts a flat-shaded triangle mesh from the solid.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	tris, err := k.triangles(s)
	if err != nil {
		return nil, fmt.Errorf("manifold: mesh: %w", err)
	}
	return kernel.NewMesh(tris), nil
}

// Export writes s as binary STL. Manifold keeps no boundary
// representation, so STEP is not available.
func (k *ManifoldKernel) Export(s kernel.Solid, format kernel.Format, w io.Writer) error {
	if format != kernel.FormatSTL {
		return fmt.Errorf("manifold: export %s: %w", format, kernel.ErrUnsupported)
	}
	tris, err := k.triangles(s)
	if err != nil {
		return fmt.Errorf("manifold: export: %w", err)
	}
	return kernel.WriteTrianglesSTL(w, tris)
}
