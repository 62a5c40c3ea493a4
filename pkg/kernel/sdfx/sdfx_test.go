package sdfx

import (
	"bytes"
	"math"
	"testing"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCells keeps marching cubes cheap; volumes are checked to a few
// percent.
const testCells = 64

func newTestKernel() *SdfxKernel {
	return New(WithMeshCells(testCells))
}

func mustVolume(t *testing.T, k *SdfxKernel, s kernel.Solid) float64 {
	t.Helper()
	v, err := k.Volume(s)
	require.NoError(t, err)
	return v
}

func assertBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := newTestKernel()
	box, err := k.Box(100, 50, 25)
	require.NoError(t, err)
	assertBounds(t, box, [3]float64{0, 0, 0}, [3]float64{100, 50, 25}, 0.01)

	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != mesh.TriangleCount()*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), mesh.TriangleCount()*3)
	}
	assert.InEpsilon(t, 125000, mustVolume(t, k, box), 0.03)
}

func TestCylinder(t *testing.T) {
	k := newTestKernel()
	cyl, err := k.Cylinder(50, 10, 32)
	require.NoError(t, err)
	assertBounds(t, cyl, [3]float64{-10, -10, 0}, [3]float64{10, 10, 50}, 0.01)
	assert.InEpsilon(t, math.Pi*100*50, mustVolume(t, k, cyl), 0.03)
}

func TestDifference(t *testing.T) {
	k := newTestKernel()
	box, err := k.Box(100, 100, 100)
	require.NoError(t, err)
	cyl, err := k.Cylinder(120, 20, 32)
	require.NoError(t, err)
	cyl, err = k.Translate(cyl, 50, 50, -10)
	require.NoError(t, err)

	diff, err := k.Difference(box, cyl)
	require.NoError(t, err)
	want := 1e6 - math.Pi*400*100
	assert.InEpsilon(t, want, mustVolume(t, k, diff), 0.03)
}

func TestUnion(t *testing.T) {
	k := newTestKernel()
	box1, err := k.Box(50, 50, 50)
	require.NoError(t, err)
	box2, err := k.Box(50, 50, 50)
	require.NoError(t, err)
	box2, err = k.Translate(box2, 30, 0, 0)
	require.NoError(t, err)

	u, err := k.Union(box1, box2)
	require.NoError(t, err)
	assertBounds(t, u, [3]float64{0, 0, 0}, [3]float64{80, 50, 50}, 0.01)
	assert.InEpsilon(t, 80*50*50, mustVolume(t, k, u), 0.03)
}

func TestTranslate(t *testing.T) {
	k := newTestKernel()
	box, err := k.Box(10, 10, 10)
	require.NoError(t, err)
	translated, err := k.Translate(box, 100, 200, 300)
	require.NoError(t, err)
	assertBounds(t, translated, [3]float64{100, 200, 300}, [3]float64{110, 210, 310}, 0.01)
}

func TestIntersection(t *testing.T) {
	k := newTestKernel()
	box1, err := k.Box(100, 100, 100)
	require.NoError(t, err)
	box2, err := k.Box(100, 100, 100)
	require.NoError(t, err)
	box2, err = k.Translate(box2, 50, 0, 0)
	require.NoError(t, err)

	inter, err := k.Intersection(box1, box2)
	require.NoError(t, err)
	assertBounds(t, inter, [3]float64{50, 0, 0}, [3]float64{100, 100, 100}, 0.01)
	assert.InEpsilon(t, 50*100*100, mustVolume(t, k, inter), 0.03)

	t.Run("disjoint", func(t *testing.T) {
		far, err := k.Translate(box2, 1000, 0, 0)
		require.NoError(t, err)
		empty, err := k.Intersection(box1, far)
		require.NoError(t, err)
		assert.Zero(t, mustVolume(t, k, empty))
		_, err = k.ToMesh(empty)
		assert.ErrorIs(t, err, kernel.ErrEmptySolid)

		// The empty solid is neutral for union and difference.
		u, err := k.Union(empty, box1)
		require.NoError(t, err)
		assert.Same(t, box1, u)
		d, err := k.Difference(box1, empty)
		require.NoError(t, err)
		assert.Same(t, box1, d)
	})
}

func TestExtrude(t *testing.T) {
	k := newTestKernel()
	square := polygon.Rectangle(0, 0, 20, 10)

	up, err := k.Extrude(square, 5)
	require.NoError(t, err)
	assertBounds(t, up, [3]float64{-10, -5, 0}, [3]float64{10, 5, 5}, 0.01)
	assert.InEpsilon(t, 1000, mustVolume(t, k, up), 0.03)

	down, err := k.Extrude(square.Reversed(), -5)
	require.NoError(t, err)
	assertBounds(t, down, [3]float64{-10, -5, -5}, [3]float64{10, 5, 0}, 0.01)

	_, err = k.Extrude(square, 0)
	assert.ErrorIs(t, err, kernel.ErrEmptySolid)
	_, err = k.Extrude(polygon.FromPoints([][2]float64{{0, 0}, {1, 1}}), 5)
	assert.ErrorIs(t, err, polygon.ErrDegenerate)
}

// cube returns an outward-wound soup for [0,s]^3.
func cube(s float64) []kernel.Triangle {
	c := func(i int) [3]float64 {
		return [3]float64{float64(i&1) * s, float64(i>>1&1) * s, float64(i>>2&1) * s}
	}
	faces := [][3]int{
		{0, 2, 3}, {0, 3, 1}, {4, 5, 7}, {4, 7, 6},
		{0, 1, 5}, {0, 5, 4}, {2, 6, 7}, {2, 7, 3},
		{0, 4, 6}, {0, 6, 2}, {1, 3, 7}, {1, 7, 5},
	}
	out := make([]kernel.Triangle, len(faces))
	for i, f := range faces {
		out[i] = kernel.Triangle{c(f[0]), c(f[1]), c(f[2])}
	}
	return out
}

func TestSew(t *testing.T) {
	k := New(WithMeshCells(32))
	s, err := k.Sew(cube(20))
	require.NoError(t, err)
	assertBounds(t, s, [3]float64{0, 0, 0}, [3]float64{20, 20, 20}, 1e-9)
	assert.InEpsilon(t, 8000, mustVolume(t, k, s), 0.05)

	_, err = k.Sew(cube(20)[1:])
	assert.ErrorIs(t, err, kernel.ErrNotWatertight)
	_, err = k.Sew(nil)
	assert.ErrorIs(t, err, kernel.ErrEmptySolid)
}

func TestFootprint(t *testing.T) {
	k := newTestKernel()
	box, err := k.Box(100, 50, 25)
	require.NoError(t, err)
	fp, err := k.Footprint(box)
	require.NoError(t, err)
	assert.InEpsilon(t, 5000, fp.Area(), 0.02)
	min, max := fp.Bounds()
	assert.InDelta(t, 0, min.X, 0.5)
	assert.InDelta(t, 100, max.X, 0.5)
	assert.InDelta(t, 50, max.Y, 0.5)
}

func TestExport(t *testing.T) {
	k := newTestKernel()
	box, err := k.Box(10, 10, 10)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, k.Export(box, kernel.FormatSTL, &buf))
	assert.Greater(t, buf.Len(), 84)

	err = k.Export(box, kernel.FormatSTEP, &buf)
	assert.ErrorIs(t, err, kernel.ErrUnsupported)
}

func TestRegistered(t *testing.T) {
	k, err := kernel.Open(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, k.Name())
}
