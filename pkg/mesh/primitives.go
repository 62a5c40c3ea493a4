package mesh

import "gonum.org/v1/gonum/spatial/r3"

// boxFaces indexes the corners of a box where corner i sits at
// (bit0, bit1, bit2) of i. Winding is outward.
var boxFaces = []Face{
	{0, 2, 3}, {0, 3, 1}, // -z
	{4, 5, 7}, {4, 7, 6}, // +z
	{0, 1, 5}, {0, 5, 4}, // -y
	{2, 6, 7}, {2, 7, 3}, // +y
	{0, 4, 6}, {0, 6, 2}, // -x
	{1, 3, 7}, {1, 7, 5}, // +x
}

// Box returns a closed 12-triangle box spanning min..max.
func Box(min, max r3.Vec) *Mesh {
	m := &Mesh{Vertices: make([]r3.Vec, 8)}
	for i := range m.Vertices {
		v := min
		if i&1 != 0 {
			v.X = max.X
		}
		if i&2 != 0 {
			v.Y = max.Y
		}
		if i&4 != 0 {
			v.Z = max.Z
		}
		m.Vertices[i] = v
	}
	m.Faces = append([]Face(nil), boxFaces...)
	return m
}

// Merge returns a mesh holding the faces of all inputs. Vertices are not
// welded between inputs.
func Merge(meshes ...*Mesh) *Mesh {
	out := &Mesh{}
	for _, m := range meshes {
		base := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, f := range m.Faces {
			out.Faces = append(out.Faces, Face{f[0] + base, f[1] + base, f[2] + base})
		}
	}
	return out
}
