// Package tessellate turns generated mold pieces into triangle meshes for
// preview, placing each piece in an assembled or exploded layout. One mesh
// is produced per piece.
package tessellate

import (
	"fmt"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/mold"
	"gonum.org/v1/gonum/spatial/r3"
)

// Layout selects where pieces are placed relative to each other.
type Layout int

const (
	// Pieces are left in the frame they were generated in: halves on z=0
	// and the piston flange on z=0 with its body below.
	LayoutNative Layout = iota
	// The piston rests on top of the closed cavity block.
	LayoutAssembled
	// Like LayoutAssembled, with the halves pulled apart along Y and the
	// piston lifted clear of the opening.
	LayoutExploded
)

// DefaultGap is the exploded spacing in mm.
const DefaultGap = 20.0

// Options control placement.
type Options struct {
	Layout Layout
	Gap    float64
	// Origin moves the whole layout.
	Origin r3.Vec
}

// transformStack accumulates offsets while placing pieces.
type transformStack struct {
	translations []r3.Vec
}

func (ts *transformStack) push(v r3.Vec) {
	ts.translations = append(ts.translations, v)
}

func (ts *transformStack) pop() {
	if len(ts.translations) > 0 {
		ts.translations = ts.translations[:len(ts.translations)-1]
	}
}

// accumulated returns the sum of all translations on the stack.
func (ts *transformStack) accumulated() r3.Vec {
	var sum r3.Vec
	for _, t := range ts.translations {
		sum = r3.Add(sum, t)
	}
	return sum
}

// pieceOffset is the per-piece offset for the layout.
func pieceOffset(plan *mold.Plan, name mold.PieceName, opt Options) r3.Vec {
	gap := opt.Gap
	if gap <= 0 {
		gap = DefaultGap
	}
	switch opt.Layout {
	case LayoutAssembled:
		if name == mold.PiecePiston {
			return r3.Vec{Z: plan.OuterBox[2]}
		}
	case LayoutExploded:
		switch name {
		case mold.PieceLeft:
			return r3.Vec{Y: -gap / 2}
		case mold.PieceRight:
			return r3.Vec{Y: gap / 2}
		case mold.PiecePiston:
			return r3.Vec{Z: plan.OuterBox[2] + plan.PistonBodyHeight + gap}
		}
	}
	return r3.Vec{}
}

// Tessellate produces one mesh per piece using the kernel that built the
// pieces. Pieces and their solids are not modified.
func Tessellate(plan *mold.Plan, pieces []mold.Piece, k kernel.Kernel, opt Options) ([]*kernel.Mesh, error) {
	if len(pieces) == 0 {
		return nil, nil
	}
	if plan == nil && opt.Layout != LayoutNative {
		return nil, fmt.Errorf("tessellate: layout needs a plan")
	}

	ts := &transformStack{}
	ts.push(opt.Origin)
	defer ts.pop()

	meshes := make([]*kernel.Mesh, 0, len(pieces))
	for _, pc := range pieces {
		if pc.Solid == nil {
			return nil, fmt.Errorf("tessellate: piece %s has no solid", pc.Name)
		}
		ts.push(pieceOffset(plan, pc.Name, opt))
		m, err := place(k, pc, ts.accumulated())
		ts.pop()
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

func place(k kernel.Kernel, pc mold.Piece, d r3.Vec) (*kernel.Mesh, error) {
	s := pc.Solid
	if d != (r3.Vec{}) {
		var err error
		if s, err = k.Translate(s, d.X, d.Y, d.Z); err != nil {
			return nil, fmt.Errorf("tessellate: translate %s: %w", pc.Name, err)
		}
	}
	m, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", pc.Name, err)
	}
	m.PartName = string(pc.Name)
	return m, nil
}
