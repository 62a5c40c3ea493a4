package tessellate_test

import (
	"testing"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/kernel/sdfx"
	"github.com/chazu/moldsmith/pkg/mold"
	"github.com/chazu/moldsmith/pkg/tessellate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newKernel() kernel.Kernel {
	return sdfx.New(sdfx.WithMeshCells(32))
}

// box returns a piece spanning [x0,x0+w] x [y0,y0+d] x [z0,z0+h].
func box(t *testing.T, k kernel.Kernel, name mold.PieceName, x0, y0, z0, w, d, h float64) mold.Piece {
	t.Helper()
	s, err := k.Box(w, d, h)
	require.NoError(t, err)
	s, err = k.Translate(s, x0, y0, z0)
	require.NoError(t, err)
	return mold.Piece{Name: name, Solid: s}
}

// fakeMold is a 40x20x30 block split at y=0 with a 20x10 piston whose
// body hangs 15 below its 5 thick flange.
func fakeMold(t *testing.T, k kernel.Kernel) (*mold.Plan, []mold.Piece) {
	plan := &mold.Plan{
		OuterBox:         [3]float64{40, 20, 30},
		PlateThickness:   5,
		PistonBodyHeight: 15,
	}
	return plan, []mold.Piece{
		box(t, k, mold.PieceLeft, -20, -10, 0, 40, 10, 30),
		box(t, k, mold.PieceRight, -20, 0, 0, 40, 10, 30),
		box(t, k, mold.PiecePiston, -10, -5, -15, 20, 10, 20),
	}
}

func boundsOf(t *testing.T, meshes []*kernel.Mesh, name string) (min, max [3]float64) {
	t.Helper()
	for _, m := range meshes {
		if m.PartName == name {
			return m.Bounds()
		}
	}
	t.Fatalf("missing mesh for %s", name)
	return
}

func TestNativeLayout(t *testing.T) {
	k := newKernel()
	plan, pieces := fakeMold(t, k)

	meshes, err := tessellate.Tessellate(plan, pieces, k, tessellate.Options{})
	require.NoError(t, err)
	require.Len(t, meshes, 3)

	for i, m := range meshes {
		assert.False(t, m.IsEmpty())
		assert.Positive(t, m.TriangleCount())
		assert.Equal(t, string(pieces[i].Name), m.PartName)
	}
	lo, hi := boundsOf(t, meshes, "piston")
	assert.InDelta(t, -15, lo[2], 1)
	assert.InDelta(t, 5, hi[2], 1)
}

func TestLayouts(t *testing.T) {
	tests := []struct {
		name    string
		opt     tessellate.Options
		part    string
		wantMin [3]float64
		wantMax [3]float64
	}{
		{"assembled piston on rim", tessellate.Options{Layout: tessellate.LayoutAssembled},
			"piston", [3]float64{-10, -5, 15}, [3]float64{10, 5, 35}},
		{"assembled halves unmoved", tessellate.Options{Layout: tessellate.LayoutAssembled},
			"left", [3]float64{-20, -10, 0}, [3]float64{20, 0, 30}},
		{"exploded left", tessellate.Options{Layout: tessellate.LayoutExploded, Gap: 10},
			"left", [3]float64{-20, -15, 0}, [3]float64{20, -5, 30}},
		{"exploded right", tessellate.Options{Layout: tessellate.LayoutExploded, Gap: 10},
			"right", [3]float64{-20, 5, 0}, [3]float64{20, 15, 30}},
		{"exploded piston clear", tessellate.Options{Layout: tessellate.LayoutExploded, Gap: 10},
			"piston", [3]float64{-10, -5, 40}, [3]float64{10, 5, 60}},
		{"origin shifts everything", tessellate.Options{Origin: r3.Vec{X: 100}},
			"right", [3]float64{80, 0, 0}, [3]float64{120, 10, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKernel()
			plan, pieces := fakeMold(t, k)
			meshes, err := tessellate.Tessellate(plan, pieces, k, tt.opt)
			require.NoError(t, err)
			lo, hi := boundsOf(t, meshes, tt.part)
			for i := 0; i < 3; i++ {
				assert.InDelta(t, tt.wantMin[i], lo[i], 1, "min[%d]", i)
				assert.InDelta(t, tt.wantMax[i], hi[i], 1, "max[%d]", i)
			}
		})
	}
}

func TestPiecesNotModified(t *testing.T) {
	k := newKernel()
	plan, pieces := fakeMold(t, k)
	before := pieces[2].Solid

	_, err := tessellate.Tessellate(plan, pieces, k, tessellate.Options{Layout: tessellate.LayoutExploded})
	require.NoError(t, err)
	assert.Same(t, before, pieces[2].Solid)

	native, err := tessellate.Tessellate(plan, pieces, k, tessellate.Options{})
	require.NoError(t, err)
	_, hi := boundsOf(t, native, "piston")
	assert.InDelta(t, 5, hi[2], 1)
}

func TestTessellateErrors(t *testing.T) {
	k := newKernel()

	meshes, err := tessellate.Tessellate(nil, nil, k, tessellate.Options{})
	require.NoError(t, err)
	assert.Empty(t, meshes)

	_, pieces := fakeMold(t, k)
	_, err = tessellate.Tessellate(nil, pieces, k, tessellate.Options{Layout: tessellate.LayoutAssembled})
	assert.Error(t, err)

	_, err = tessellate.Tessellate(nil, []mold.Piece{{Name: mold.PieceLeft}}, k, tessellate.Options{})
	assert.ErrorContains(t, err, "no solid")
}
