package mesh

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadSTL parses an ASCII or binary STL stream into an indexed mesh.
func ReadSTL(r io.Reader) (*Mesh, error) {
	tris, err := model3d.ReadSTL(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read stl: %v", ErrInvalidMesh, err)
	}
	m := fromTriangles(tris)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadSTL reads the STL file at path.
func LoadSTL(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSTL(f)
}

// WriteSTL encodes m as binary STL.
func (m *Mesh) WriteSTL(w io.Writer) error {
	if err := model3d.WriteSTL(w, m.modelTriangles()); err != nil {
		return fmt.Errorf("mesh: write stl: %w", err)
	}
	return nil
}

// STL returns m encoded as binary STL.
func (m *Mesh) STL() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteSTL(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToModel3D converts m into a model3d mesh, keeping face winding.
func (m *Mesh) ToModel3D() *model3d.Mesh {
	return model3d.NewMeshTriangles(m.modelTriangles())
}

func (m *Mesh) modelTriangles() []*model3d.Triangle {
	tris := make([]*model3d.Triangle, 0, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		tris = append(tris, &model3d.Triangle{toCoord(t[0]), toCoord(t[1]), toCoord(t[2])})
	}
	return tris
}

// FromModel3D converts a model3d mesh into an indexed mesh.
func FromModel3D(mm *model3d.Mesh) *Mesh {
	return fromTriangles(mm.TriangleSlice())
}

func fromTriangles(src []*model3d.Triangle) *Mesh {
	tris := make([][3]r3.Vec, len(src))
	for i, t := range src {
		tris[i] = [3]r3.Vec{fromCoord(t[0]), fromCoord(t[1]), fromCoord(t[2])}
	}
	return FromTriangles(tris)
}

func toCoord(v r3.Vec) model3d.Coord3D {
	return model3d.XYZ(v.X, v.Y, v.Z)
}

func fromCoord(c model3d.Coord3D) r3.Vec {
	return r3.Vec{X: c.X, Y: c.Y, Z: c.Z}
}
