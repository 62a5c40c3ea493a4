package mesh

import (
	"math"

	"github.com/chazu/moldsmith/pkg/logging"
	"gonum.org/v1/gonum/spatial/r3"
)

// RepairType classifies the outcome of Repair.
type RepairType string

const (
	RepairNone  RepairType = "none"
	RepairMinor RepairType = "minor"
	RepairMajor RepairType = "major"
)

// mergeEpsilon is the vertex-merge distance used by the major repair pass.
const mergeEpsilon = 1e-5

// degenerateArea is the face area below which a face is dropped.
const degenerateArea = 1e-12

// RepairInfo reports what Repair changed.
type RepairInfo struct {
	WasRepaired            bool       `json:"wasRepaired"`
	RepairType             RepairType `json:"repairType"`
	HolesFilled            int        `json:"holesFilled"`
	NormalsFixed           int        `json:"normalsFixed"`
	DegenerateFacesRemoved int        `json:"degenerateFacesRemoved"`
	RepairedSTL            []byte     `json:"repairedStl,omitempty"`
}

// Repair runs degenerate face removal, normal fixing and hole filling on a
// copy of m. If the mesh is still open afterwards, a vertex-merge pass is
// tried. Watertight inputs come back cleaned with RepairNone.
func Repair(m *Mesh) (*Mesh, RepairInfo) {
	info := RepairInfo{RepairType: RepairNone}
	wasWatertight := m.IsWatertight()

	out := m.Clone()
	info.DegenerateFacesRemoved = out.RemoveDegenerateFaces()
	info.NormalsFixed = out.FixNormals()
	if !out.IsWatertight() {
		info.HolesFilled = out.FillHoles()
	}

	switch {
	case wasWatertight:
	case out.IsWatertight():
		info.WasRepaired = true
		info.RepairType = RepairMinor
	default:
		merged := FromModel3D(out.ToModel3D().Repair(mergeEpsilon))
		merged.RemoveDegenerateFaces()
		merged.FixNormals()
		if !merged.IsWatertight() {
			merged.FillHoles()
		}
		if merged.IsWatertight() {
			out = merged
			info.WasRepaired = true
			info.RepairType = RepairMajor
		}
	}

	if info.WasRepaired {
		stl, err := out.STL()
		if err != nil {
			logging.Logger().Warnf("mesh: encode repaired mesh: %v", err)
		} else {
			info.RepairedSTL = stl
		}
	}
	return out, info
}

// RemoveDegenerateFaces drops faces with repeated indices or near-zero
// area and returns how many were removed. Vertices are kept.
func (m *Mesh) RemoveDegenerateFaces() int {
	kept := m.Faces[:0]
	removed := 0
	for i, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] || m.FaceArea(i) < degenerateArea {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
	return removed
}

// FixNormals makes winding consistent within each connected component and
// turns every closed component outward. It returns the number of faces
// flipped.
func (m *Mesh) FixNormals() int {
	if len(m.Faces) == 0 {
		return 0
	}
	edgeFaces := make(map[Edge][]int, len(m.Faces)*3/2)
	for i, f := range m.Faces {
		for k := 0; k < 3; k++ {
			e := makeEdge(f[k], f[(k+1)%3])
			edgeFaces[e] = append(edgeFaces[e], i)
		}
	}

	flipped := make([]bool, len(m.Faces))
	visited := make([]bool, len(m.Faces))
	for seed := range m.Faces {
		if visited[seed] {
			continue
		}
		component := []int{seed}
		visited[seed] = true
		for q := 0; q < len(component); q++ {
			fi := component[q]
			f := m.Faces[fi]
			for k := 0; k < 3; k++ {
				a, b := f[k], f[(k+1)%3]
				for _, gi := range edgeFaces[makeEdge(a, b)] {
					if visited[gi] {
						continue
					}
					visited[gi] = true
					if hasDirectedEdge(m.Faces[gi], a, b) {
						m.Faces[gi] = flipFace(m.Faces[gi])
						flipped[gi] = !flipped[gi]
					}
					component = append(component, gi)
				}
			}
		}

		var vol float64
		for _, fi := range component {
			t := m.Triangle(fi)
			vol += r3.Dot(t[0], r3.Cross(t[1], t[2]))
		}
		if vol < 0 {
			for _, fi := range component {
				m.Faces[fi] = flipFace(m.Faces[fi])
				flipped[fi] = !flipped[fi]
			}
		}
	}

	n := 0
	for _, f := range flipped {
		if f {
			n++
		}
	}
	return n
}

// FillHoles caps every open boundary loop with a triangle fan and returns
// the number of faces added.
func (m *Mesh) FillHoles() int {
	added := 0
	for _, loop := range m.boundaryLoops() {
		for i := 1; i+1 < len(loop); i++ {
			m.Faces = append(m.Faces, Face{loop[0], loop[i], loop[i+1]})
			added++
		}
	}
	return added
}

func hasDirectedEdge(f Face, a, b int) bool {
	for k := 0; k < 3; k++ {
		if f[k] == a && f[(k+1)%3] == b {
			return true
		}
	}
	return false
}

func flipFace(f Face) Face {
	return Face{f[0], f[2], f[1]}
}

// Degenerate reports whether the mesh has no usable extent.
func (m *Mesh) Degenerate() bool {
	s := m.Bounds().Size()
	return math.Max(s.X, math.Max(s.Y, s.Z)) == 0
}
