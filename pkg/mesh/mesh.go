// Package mesh holds the indexed triangle mesh analysed and molded by
// moldsmith, together with STL exchange, topology queries, repair and
// the bounding-box centering used before mold planning.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidMesh reports an empty or malformed mesh.
	ErrInvalidMesh = errors.New("mesh: invalid mesh")
	// ErrTooLarge reports a mesh above the configured triangle limit.
	ErrTooLarge = errors.New("mesh: mesh too large")
	// ErrReoriented reports 2D points taken in a frame the mesh has left.
	ErrReoriented = errors.New("mesh: points predate reorientation")
)

// Face is a triangle given as three vertex indices.
type Face [3]int

// Mesh is an indexed triangle mesh. Vertices are unique by position.
type Mesh struct {
	Vertices []r3.Vec
	Faces    []Face
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max r3.Vec
}

// Size returns the extent along each axis.
func (b Bounds) Size() r3.Vec { return r3.Sub(b.Max, b.Min) }

// Center returns the midpoint of Min and Max.
func (b Bounds) Center() r3.Vec { return r3.Scale(0.5, r3.Add(b.Min, b.Max)) }

// New returns a mesh over the given vertices and faces after checking
// that every face index is in range.
func New(vertices []r3.Vec, faces []Face) (*Mesh, error) {
	m := &Mesh{Vertices: vertices, Faces: faces}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromTriangles builds an indexed mesh from a triangle soup, merging
// vertices with identical positions.
func FromTriangles(tris [][3]r3.Vec) *Mesh {
	m := &Mesh{Faces: make([]Face, 0, len(tris))}
	index := make(map[r3.Vec]int, len(tris))
	for _, t := range tris {
		var f Face
		for i, v := range t {
			idx, ok := index[v]
			if !ok {
				idx = len(m.Vertices)
				index[v] = idx
				m.Vertices = append(m.Vertices, v)
			}
			f[i] = idx
		}
		m.Faces = append(m.Faces, f)
	}
	return m
}

// Validate checks that m is non-empty and its faces reference valid
// vertices.
func (m *Mesh) Validate() error {
	if m == nil || len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return fmt.Errorf("%w: no geometry", ErrInvalidMesh)
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidMesh, i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([]Face, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	return out
}

// Triangle returns the corner positions of face i.
func (m *Mesh) Triangle(i int) [3]r3.Vec {
	f := m.Faces[i]
	return [3]r3.Vec{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles returns all faces as a triangle soup.
func (m *Mesh) Triangles() [][3]r3.Vec {
	out := make([][3]r3.Vec, len(m.Faces))
	for i := range m.Faces {
		out[i] = m.Triangle(i)
	}
	return out
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y), Z: math.Min(b.Min.Z, v.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y), Z: math.Max(b.Max.Z, v.Z)}
	}
	return b
}

// faceCross is the unnormalised normal of face i; its length is twice the
// face area.
func (m *Mesh) faceCross(i int) r3.Vec {
	t := m.Triangle(i)
	return r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
}

// FaceNormal returns the unit normal of face i, or the zero vector for a
// degenerate face.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	c := m.faceCross(i)
	n := r3.Norm(c)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, c)
}

// FaceNormals returns the unit normal of every face.
func (m *Mesh) FaceNormals() []r3.Vec {
	out := make([]r3.Vec, len(m.Faces))
	for i := range m.Faces {
		out[i] = m.FaceNormal(i)
	}
	return out
}

// FaceArea returns the area of face i.
func (m *Mesh) FaceArea(i int) float64 {
	return r3.Norm(m.faceCross(i)) / 2
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	var a float64
	for i := range m.Faces {
		a += m.FaceArea(i)
	}
	return a
}

// SignedVolume sums signed tetrahedra against the origin. It is positive
// for a closed mesh with outward normals.
func (m *Mesh) SignedVolume() float64 {
	var v float64
	for i := range m.Faces {
		t := m.Triangle(i)
		v += r3.Dot(t[0], r3.Cross(t[1], t[2]))
	}
	return v / 6
}

// Volume returns the enclosed volume. It is only meaningful for a
// watertight mesh.
func (m *Mesh) Volume() float64 {
	return math.Abs(m.SignedVolume())
}

// CenterOfMass returns the volume centroid of a closed mesh. Meshes that
// enclose no volume use the area-weighted centroid of their faces.
func (m *Mesh) CenterOfMass() r3.Vec {
	var vol float64
	var acc r3.Vec
	for i := range m.Faces {
		t := m.Triangle(i)
		v := r3.Dot(t[0], r3.Cross(t[1], t[2])) / 6
		vol += v
		acc = r3.Add(acc, r3.Scale(v/4, r3.Add(t[0], r3.Add(t[1], t[2]))))
	}
	if math.Abs(vol) > 1e-12 {
		return r3.Scale(1/vol, acc)
	}

	var area float64
	acc = r3.Vec{}
	for i := range m.Faces {
		t := m.Triangle(i)
		a := m.FaceArea(i)
		area += a
		acc = r3.Add(acc, r3.Scale(a/3, r3.Add(t[0], r3.Add(t[1], t[2]))))
	}
	if area == 0 {
		return m.Bounds().Center()
	}
	return r3.Scale(1/area, acc)
}

// Translate shifts every vertex by d.
func (m *Mesh) Translate(d r3.Vec) {
	for i, v := range m.Vertices {
		m.Vertices[i] = r3.Add(v, d)
	}
}

// Rotate applies the rotation matrix r to every vertex about the origin.
func (m *Mesh) Rotate(r mgl64.Mat3) {
	for i, v := range m.Vertices {
		out := r.Mul3x1(mgl64.Vec3{v.X, v.Y, v.Z})
		m.Vertices[i] = r3.Vec{X: out[0], Y: out[1], Z: out[2]}
	}
}

// ProjectVertices drops the axis coordinate of every vertex.
func (m *Mesh) ProjectVertices(axis Axis) []r2.Vec {
	out := make([]r2.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = axis.Project(v)
	}
	return out
}
