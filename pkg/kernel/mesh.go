package kernel

import (
	"fmt"
	"io"
	"math"

	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangle mesh suitable for rendering and export.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // left, right or piston
}

// NewMesh flattens a triangle soup with one face normal per corner.
func NewMesh(tris []Triangle) *Mesh {
	m := &Mesh{
		Vertices: make([]float32, 0, len(tris)*9),
		Normals:  make([]float32, 0, len(tris)*9),
		Indices:  make([]uint32, 0, len(tris)*3),
	}
	for i, t := range tris {
		n := t.Normal()
		for j := 0; j < 3; j++ {
			m.Vertices = append(m.Vertices, float32(t[j][0]), float32(t[j][1]), float32(t[j][2]))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			m.Indices = append(m.Indices, uint32(i*3+j))
		}
	}
	return m
}

// Normal returns the unit face normal, or zero for a degenerate face.
func (t Triangle) Normal() r3.Vec {
	a := r3.Vec{X: t[0][0], Y: t[0][1], Z: t[0][2]}
	b := r3.Vec{X: t[1][0], Y: t[1][1], Z: t[1][2]}
	c := r3.Vec{X: t[2][0], Y: t[2][1], Z: t[2][2]}
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if l := r3.Norm(n); l > 0 {
		return r3.Scale(1/l, n)
	}
	return r3.Vec{}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *Mesh) vertex(i uint32) [3]float64 {
	return [3]float64{float64(m.Vertices[i*3]), float64(m.Vertices[i*3+1]), float64(m.Vertices[i*3+2])}
}

// Triangles expands the indexed mesh into a triangle soup.
func (m *Mesh) Triangles() []Triangle {
	out := make([]Triangle, m.TriangleCount())
	for i := range out {
		out[i] = Triangle{m.vertex(m.Indices[i*3]), m.vertex(m.Indices[i*3+1]), m.vertex(m.Indices[i*3+2])}
	}
	return out
}

// Bounds returns the bounding box of the vertices.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if m.IsEmpty() {
		return min, max
	}
	for k := 0; k < 3; k++ {
		min[k], max[k] = math.Inf(1), math.Inf(-1)
	}
	for i := 0; i < m.VertexCount(); i++ {
		v := m.vertex(uint32(i))
		for k := 0; k < 3; k++ {
			min[k] = math.Min(min[k], v[k])
			max[k] = math.Max(max[k], v[k])
		}
	}
	return min, max
}

// Volume returns the enclosed volume of a closed mesh.
func (m *Mesh) Volume() float64 {
	return TrianglesVolume(m.Triangles())
}

// TrianglesVolume sums signed tetrahedra of a closed soup against the
// origin and returns the magnitude.
func TrianglesVolume(tris []Triangle) float64 {
	var v float64
	for _, t := range tris {
		a := r3.Vec{X: t[0][0], Y: t[0][1], Z: t[0][2]}
		b := r3.Vec{X: t[1][0], Y: t[1][1], Z: t[1][2]}
		c := r3.Vec{X: t[2][0], Y: t[2][1], Z: t[2][2]}
		v += r3.Dot(a, r3.Cross(b, c))
	}
	return math.Abs(v / 6)
}

// TrianglesFootprint unions the XY projections of tris and returns the
// largest outline.
func TrianglesFootprint(tris []Triangle) (polygon.Polygon, error) {
	rings := make([]polygon.Polygon, 0, len(tris))
	for _, t := range tris {
		p := polygon.Polygon{
			r2.Vec{X: t[0][0], Y: t[0][1]},
			r2.Vec{X: t[1][0], Y: t[1][1]},
			r2.Vec{X: t[2][0], Y: t[2][1]},
		}
		if p.Area() > 1e-9 {
			rings = append(rings, p)
		}
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("kernel: footprint: %w", ErrEmptySolid)
	}
	pieces, err := polygon.UnionAll(rings)
	if err != nil {
		return nil, fmt.Errorf("kernel: footprint: %w", err)
	}
	out := polygon.Largest(pieces)
	if out == nil {
		return nil, fmt.Errorf("kernel: footprint: %w", ErrEmptySolid)
	}
	return out.CCW(), nil
}

// WriteTrianglesSTL encodes tris as binary STL.
func WriteTrianglesSTL(w io.Writer, tris []Triangle) error {
	mt := make([]*model3d.Triangle, len(tris))
	for i, t := range tris {
		mt[i] = &model3d.Triangle{
			model3d.XYZ(t[0][0], t[0][1], t[0][2]),
			model3d.XYZ(t[1][0], t[1][1], t[1][2]),
			model3d.XYZ(t[2][0], t[2][1], t[2][2]),
		}
	}
	if err := model3d.WriteSTL(w, mt); err != nil {
		return fmt.Errorf("kernel: write stl: %w", err)
	}
	return nil
}

// WriteSTL encodes m as binary STL.
func (m *Mesh) WriteSTL(w io.Writer) error {
	return WriteTrianglesSTL(w, m.Triangles())
}
