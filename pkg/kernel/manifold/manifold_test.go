//go:build manifold

package manifold

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/polygon"
)

func mustNew(t *testing.T) kernel.Kernel {
	t.Helper()
	k, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func must(t *testing.T, s kernel.Solid, err error) kernel.Solid {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func checkBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > 1e-6 {
			t.Errorf("min[%d] = %f, want %f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > 1e-6 {
			t.Errorf("max[%d] = %f, want %f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := mustNew(t)
	s := must(t, k.Box(10, 20, 30))
	checkBounds(t, s, [3]float64{0, 0, 0}, [3]float64{10, 20, 30})

	v, err := k.Volume(s)
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if math.Abs(v-6000) > 1e-3 {
		t.Errorf("Volume() = %f, want 6000", v)
	}
}

func TestCylinder(t *testing.T) {
	k := mustNew(t)
	s := must(t, k.Cylinder(20, 5, 32))
	min, max := s.BoundingBox()
	if math.Abs(min[2]) > 1e-6 || math.Abs(max[2]-20) > 1e-6 {
		t.Errorf("Cylinder Z = [%f, %f], want [0, 20]", min[2], max[2])
	}
	// X/Y bounds should be within the radius (polygon inscribed in circle).
	for i := 0; i < 2; i++ {
		if min[i] > -4.5 || max[i] < 4.5 {
			t.Errorf("Cylinder axis %d = [%f, %f], want about [-5, 5]", i, min[i], max[i])
		}
	}
}

func TestDifference(t *testing.T) {
	k := mustNew(t)
	box := must(t, k.Box(10, 10, 10))
	hole := must(t, k.Cylinder(20, 3, 32))
	hole = must(t, k.Translate(hole, 5, 5, -5))
	result := must(t, k.Difference(box, hole))
	checkBounds(t, result, [3]float64{0, 0, 0}, [3]float64{10, 10, 10})

	v, err := k.Volume(result)
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if v >= 1000 || v < 1000-math.Pi*9*10 {
		t.Errorf("Volume() = %f, want between %f and 1000", v, 1000-math.Pi*9*10)
	}
}

func TestTranslate(t *testing.T) {
	k := mustNew(t)
	box := must(t, k.Box(10, 10, 10))
	moved := must(t, k.Translate(box, 100, 200, 300))
	checkBounds(t, moved, [3]float64{100, 200, 300}, [3]float64{110, 210, 310})
}

func TestExtrude(t *testing.T) {
	k := mustNew(t)
	s := must(t, k.Extrude(polygon.Rectangle(0, 0, 20, 10), -5))
	checkBounds(t, s, [3]float64{-10, -5, -5}, [3]float64{10, 5, 0})
}

func TestSew(t *testing.T) {
	k := mustNew(t)
	box := must(t, k.Box(4, 6, 8))
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	sewn := must(t, k.Sew(mesh.Triangles()))
	checkBounds(t, sewn, [3]float64{0, 0, 0}, [3]float64{4, 6, 8})

	_, err = k.Sew(mesh.Triangles()[1:])
	if !errors.Is(err, kernel.ErrNotWatertight) {
		t.Errorf("Sew(open) error = %v, want ErrNotWatertight", err)
	}
}

func TestToMesh(t *testing.T) {
	k := mustNew(t)
	box := must(t, k.Box(10, 10, 10))
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("ToMesh() returned empty mesh for a box")
	}
	if mesh.TriangleCount() < 12 {
		t.Errorf("ToMesh() triangle count = %d, want >= 12", mesh.TriangleCount())
	}
	if len(mesh.Normals) != len(mesh.Vertices) {
		t.Errorf("ToMesh() normals length = %d, vertices length = %d, want equal",
			len(mesh.Normals), len(mesh.Vertices))
	}

	var buf bytes.Buffer
	if err := k.Export(box, kernel.FormatSTL, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if err := k.Export(box, kernel.FormatSTEP, &buf); !errors.Is(err, kernel.ErrUnsupported) {
		t.Errorf("Export(step) error = %v, want ErrUnsupported", err)
	}
}
