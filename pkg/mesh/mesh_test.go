package mesh

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func box(x0, y0, z0, x1, y1, z1 float64) *Mesh {
	return Box(r3.Vec{X: x0, Y: y0, Z: z0}, r3.Vec{X: x1, Y: y1, Z: z1})
}

func TestBoxMetrics(t *testing.T) {
	m := box(0, 0, 0, 10, 20, 30)
	require.NoError(t, m.Validate())

	assert.True(t, m.IsWatertight())
	assert.True(t, m.IsManifold())
	assert.Equal(t, 0, m.NonManifoldEdges())
	assert.InDelta(t, 6000, m.Volume(), 1e-9)
	assert.Greater(t, m.SignedVolume(), 0.0, "outward winding")
	assert.InDelta(t, 2*(200+300+600), m.Area(), 1e-9)

	com := m.CenterOfMass()
	assert.InDelta(t, 5, com.X, 1e-9)
	assert.InDelta(t, 10, com.Y, 1e-9)
	assert.InDelta(t, 15, com.Z, 1e-9)

	for i, n := range m.FaceNormals() {
		c := m.Bounds().Center()
		tri := m.Triangle(i)
		out := r3.Sub(tri[0], c)
		assert.Greater(t, r3.Dot(n, out), 0.0, "face %d points inward", i)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		m    *Mesh
	}{
		{"nil", nil},
		{"empty", &Mesh{}},
		{"no faces", &Mesh{Vertices: []r3.Vec{{}}}},
		{"bad index", &Mesh{Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}}, Faces: []Face{{0, 1, 3}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.m.Validate(), ErrInvalidMesh)
		})
	}
}

func TestSTLRoundTrip(t *testing.T) {
	m := box(-1, -2, -3, 4, 5, 6)
	var buf bytes.Buffer
	require.NoError(t, m.WriteSTL(&buf))

	got, err := ReadSTL(&buf)
	require.NoError(t, err)
	assert.Len(t, got.Vertices, 8, "vertices welded by position")
	assert.Len(t, got.Faces, 12)
	assert.True(t, got.IsWatertight())
	assert.InDelta(t, m.Volume(), got.Volume(), 1e-3)
}

func TestReadSTLInvalid(t *testing.T) {
	_, err := ReadSTL(bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestFromTrianglesWelds(t *testing.T) {
	a, b, c, d := r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{X: 1, Y: 1}
	m := FromTriangles([][3]r3.Vec{{a, b, c}, {b, d, c}})
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []Face{{0, 1, 2}, {1, 3, 2}}, m.Faces)
	assert.False(t, m.IsWatertight())
	assert.Equal(t, 4, m.NonManifoldEdges())
}

func TestRepairFillsHole(t *testing.T) {
	m := box(0, 0, 0, 10, 10, 10)
	m.Faces = m.Faces[1:]
	require.False(t, m.IsWatertight())
	assert.Equal(t, 3, m.NonManifoldEdges())

	fixed, info := Repair(m)
	assert.True(t, info.WasRepaired)
	assert.Equal(t, RepairMinor, info.RepairType)
	assert.Equal(t, 1, info.HolesFilled)
	assert.NotEmpty(t, info.RepairedSTL)
	assert.True(t, fixed.IsWatertight())
	assert.InDelta(t, 1000, fixed.Volume(), 1e-9)
	assert.Greater(t, fixed.SignedVolume(), 0.0)

	assert.Len(t, m.Faces, 11, "input left untouched")
}

func TestRepairWatertightIsNone(t *testing.T) {
	fixed, info := Repair(box(0, 0, 0, 1, 1, 1))
	assert.False(t, info.WasRepaired)
	assert.Equal(t, RepairNone, info.RepairType)
	assert.Zero(t, info.DegenerateFacesRemoved)
	assert.Nil(t, info.RepairedSTL)
	assert.Len(t, fixed.Faces, 12)
}

func TestRepairDropsDegenerateFaces(t *testing.T) {
	m := box(0, 0, 0, 1, 1, 1)
	m.Faces = append(m.Faces, Face{0, 0, 1}, Face{0, 1, 1})
	require.False(t, m.IsWatertight())

	fixed, info := Repair(m)
	assert.Equal(t, 2, info.DegenerateFacesRemoved)
	assert.Equal(t, RepairMinor, info.RepairType)
	assert.Zero(t, info.HolesFilled)
	assert.True(t, fixed.IsWatertight())
}

func TestFixNormals(t *testing.T) {
	t.Run("single flipped face", func(t *testing.T) {
		m := box(0, 0, 0, 2, 2, 2)
		m.Faces[5] = flipFace(m.Faces[5])
		assert.Equal(t, 1, m.FixNormals())
		assert.InDelta(t, 8, m.SignedVolume(), 1e-9)
	})
	t.Run("inside out", func(t *testing.T) {
		m := box(0, 0, 0, 2, 2, 2)
		for i, f := range m.Faces {
			m.Faces[i] = flipFace(f)
		}
		require.Less(t, m.SignedVolume(), 0.0)
		assert.Equal(t, 12, m.FixNormals())
		assert.InDelta(t, 8, m.SignedVolume(), 1e-9)
	})
	t.Run("consistent", func(t *testing.T) {
		m := Merge(box(0, 0, 0, 1, 1, 1), box(5, 5, 5, 6, 6, 6))
		assert.Equal(t, 0, m.FixNormals())
	})
}

func TestPrepareCenters(t *testing.T) {
	m := box(10, -5, 2, 30, 15, 8)
	tr, err := Prepare(m, AxisZ)
	require.NoError(t, err)

	assert.True(t, tr.IsSymmetric(SymmetryTolerance))
	assert.Equal(t, r3.Vec{X: -20, Y: -5, Z: -5}, tr.Offset)
	assert.Equal(t, r3.Vec{X: 20, Y: 5, Z: 5}, tr.BBoxCenter)
	assert.InDelta(t, 20, tr.OriginalCenterOfMass.X, 1e-9)
	assert.Equal(t, AxisZ, tr.Reoriented)

	b := m.Bounds()
	assert.InDelta(t, -10, b.Min.X, 1e-9)
	assert.InDelta(t, 10, b.Max.X, 1e-9)
	assert.InDelta(t, -3, b.Min.Z, 1e-9)
	assert.Equal(t, b, tr.FinalBounds)

	pts, err := tr.Apply2D([]r2.Vec{{X: 20, Y: 5}, {X: 30, Y: 15}})
	require.NoError(t, err)
	assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 10, Y: 10}}, pts)
}

func TestApply2DAfterReorient(t *testing.T) {
	for _, axis := range []Axis{AxisX, AxisY} {
		t.Run(axis.String(), func(t *testing.T) {
			tr, err := Prepare(box(0, 0, 0, 20, 10, 8), axis)
			require.NoError(t, err)
			pts, err := tr.Apply2D([]r2.Vec{{X: 0, Y: 0}, {X: 20, Y: 10}})
			assert.ErrorIs(t, err, ErrReoriented)
			assert.Nil(t, pts)
		})
	}
}

func TestPrepareUsesBoundingBoxNotCentroid(t *testing.T) {
	// An L of two boxes: the volume centroid is off the bbox center.
	m := Merge(box(0, 0, 0, 10, 2, 2), box(0, 2, 0, 2, 10, 2))
	tr, err := Prepare(m, AxisZ)
	require.NoError(t, err)
	assert.NotEqual(t, tr.BBoxCenter, tr.OriginalCenterOfMass)
	assert.True(t, tr.IsSymmetric(SymmetryTolerance))
}

func TestPrepareReorient(t *testing.T) {
	tests := []struct {
		axis Axis
		size r3.Vec
	}{
		{AxisX, r3.Vec{X: 10, Y: 20, Z: 40}},
		{AxisY, r3.Vec{X: 40, Y: 10, Z: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.axis.String(), func(t *testing.T) {
			m := box(3, 3, 3, 43, 23, 13)
			tr, err := Prepare(m, tt.axis)
			require.NoError(t, err)
			assert.Equal(t, tt.axis, tr.Reoriented)
			assert.True(t, tr.IsSymmetric(SymmetryTolerance))
			s := tr.FinalBounds.Size()
			assert.InDelta(t, tt.size.X, s.X, 1e-9)
			assert.InDelta(t, tt.size.Y, s.Y, 1e-9)
			assert.InDelta(t, tt.size.Z, s.Z, 1e-9)
			assert.InDelta(t, 40*20*10, m.Volume(), 1e-6)
		})
	}
}

func TestPrepareRejectsEmpty(t *testing.T) {
	_, err := Prepare(&Mesh{}, AxisZ)
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in   string
		want Axis
		ok   bool
	}{
		{"x", AxisX, true},
		{"Y", AxisY, true},
		{" z ", AxisZ, true},
		{"w", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAxis(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, r2.Vec{X: 2, Y: 3}, AxisX.Project(r3.Vec{X: 1, Y: 2, Z: 3}))
	assert.Equal(t, r2.Vec{X: 1, Y: 3}, AxisY.Project(r3.Vec{X: 1, Y: 2, Z: 3}))
}
