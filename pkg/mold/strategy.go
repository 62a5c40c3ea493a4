package mold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/sirupsen/logrus"
)

// StrategyModularBox is the three-piece split cavity mold.
const StrategyModularBox = "modular-box"

// PieceName identifies a generated mold piece.
type PieceName string

const (
	PieceLeft   PieceName = "left"
	PieceRight  PieceName = "right"
	PiecePiston PieceName = "piston"
)

// Piece is one generated mold part.
type Piece struct {
	Name   PieceName    `json:"name"`
	Solid  kernel.Solid `json:"-"`
	Volume float64      `json:"volume"`
	// Exports holds the encoded files by format.
	Exports map[kernel.Format][]byte `json:"-"`
}

// Strategy generates mold pieces from a planner.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, p *Planner) ([]Piece, error)
}

var (
	strategiesMu sync.RWMutex
	strategies   = map[string]Strategy{}
)

// RegisterStrategy makes s available by name. It panics on duplicates.
func RegisterStrategy(s Strategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	if _, dup := strategies[s.Name()]; dup {
		panic("mold: RegisterStrategy called twice for " + s.Name())
	}
	strategies[s.Name()] = s
}

func lookupStrategy(name string) (Strategy, bool) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[name]
	return s, ok
}

// Strategies lists registered strategy names in sorted order.
func Strategies() []string {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterStrategy(modularBox{})
}

type modularBox struct{}

func (modularBox) Name() string { return StrategyModularBox }

func (modularBox) Generate(ctx context.Context, p *Planner) ([]Piece, error) {
	if _, err := p.Plan(); err != nil {
		return nil, err
	}
	var pieces []Piece
	for _, side := range []Side{SideLeft, SideRight} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := p.BuildHalf(side)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, Piece{Name: PieceName(side), Solid: s})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	piston, err := p.BuildPiston()
	if err != nil {
		return nil, err
	}
	return append(pieces, Piece{Name: PiecePiston, Solid: piston}), nil
}

// Stats summarises a generated mold.
type Stats struct {
	PartWidth       float64     `json:"partWidth"`
	PartDepth       float64     `json:"partDepth"`
	PartHeight      float64     `json:"partHeight"`
	MoldWidth       float64     `json:"moldWidth"`
	MoldDepth       float64     `json:"moldDepth"`
	MoldHeight      float64     `json:"moldHeight"`
	PistonWidth     float64     `json:"pistonWidth"`
	PistonDepth     float64     `json:"pistonDepth"`
	PistonHeight    float64     `json:"pistonHeight"`
	LowerHalfHeight float64     `json:"lowerHalfHeight"`
	UpperHalfHeight float64     `json:"upperHalfHeight"`
	Stroke          float64     `json:"stroke"`
	WallThickness   float64     `json:"wallThickness"`
	SplitAxis       mesh.Axis   `json:"splitAxis"`
	LeftVolume      float64     `json:"leftVolume"`
	RightVolume     float64     `json:"rightVolume"`
	TopVolume       float64     `json:"topVolume"`
	ProfileType     ProfileType `json:"profileType"`
	ProfilePoints   int         `json:"profilePoints"`
	Symmetric       bool        `json:"symmetric"`
}

// SymmetryTolerance is the allowed left/right volume difference as a
// fraction of the left volume.
const SymmetryTolerance = 0.01

func newStats(plan *Plan, pieces []Piece) *Stats {
	s := &Stats{
		PartWidth:       plan.PartSize[0],
		PartDepth:       plan.PartSize[1],
		PartHeight:      plan.PartSize[2],
		MoldWidth:       plan.OuterBox[0],
		MoldDepth:       plan.OuterBox[1],
		MoldHeight:      plan.OuterBox[2],
		PistonWidth:     plan.PistonBody[0],
		PistonDepth:     plan.PistonBody[1],
		PistonHeight:    plan.PistonHeight(),
		LowerHalfHeight: plan.LowerHeight,
		Stroke:          plan.Stroke,
		WallThickness:   plan.Wall,
		SplitAxis:       plan.SplitAxis,
		ProfileType:     plan.ProfileType,
		ProfilePoints:   4,
	}
	if plan.HasUpper {
		s.UpperHalfHeight = plan.UpperHeight
	}
	if plan.UsesContour() {
		s.ProfilePoints = len(plan.Profile)
	}
	for _, pc := range pieces {
		switch pc.Name {
		case PieceLeft:
			s.LeftVolume = pc.Volume
		case PieceRight:
			s.RightVolume = pc.Volume
		case PiecePiston:
			s.TopVolume = pc.Volume
		}
	}
	s.Symmetric = math.Abs(s.LeftVolume-s.RightVolume) <= s.LeftVolume*SymmetryTolerance
	return s
}

// Result is the outcome of Generate. On failure Stage names the step that
// failed and no pieces are returned.
type Result struct {
	ID               string   `json:"id"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
	Stage            string   `json:"stage,omitempty"`
	Plan             *Plan    `json:"plan,omitempty"`
	Pieces           []Piece  `json:"pieces,omitempty"`
	Stats            *Stats   `json:"stats,omitempty"`
	Warnings         []string `json:"warnings"`
	GenerationTimeMs int64    `json:"generationTimeMs"`
}

func (r *Result) fail(err error) *Result {
	r.Success = false
	r.Error = err.Error()
	r.Pieces = nil
	var se *StageError
	if errors.As(err, &se) {
		r.Stage = se.Stage
	}
	return r
}

// Generate runs the configured strategy, measures the pieces and encodes
// them in the configured output formats. Formats the kernel cannot write
// become warnings.
func (p *Planner) Generate(ctx context.Context) *Result {
	start := time.Now()
	r := &Result{ID: p.runID, Success: true, Warnings: []string{}}
	defer func() { r.GenerationTimeMs = time.Since(start).Milliseconds() }()

	strat, ok := lookupStrategy(p.cfg.Strategy)
	if !ok {
		return r.fail(fmt.Errorf("mold: unknown strategy %q", p.cfg.Strategy))
	}
	log := p.log.WithField("strategy", strat.Name())
	log.Info("mold: generation start")

	pieces, err := strat.Generate(ctx, p)
	if err != nil {
		log.WithError(err).Error("mold: generation failed")
		return r.fail(err)
	}
	plan, err := p.Plan()
	if err != nil {
		return r.fail(err)
	}
	r.Plan = plan

	formats := p.cfg.OutputFormat.Formats()
	for i := range pieces {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		pc := &pieces[i]
		if pc.Volume, err = p.kernel.Volume(pc.Solid); err != nil {
			return r.fail(stageErr("measure", err))
		}
		pc.Exports = map[kernel.Format][]byte{}
		for _, f := range formats {
			var buf bytes.Buffer
			err := p.kernel.Export(pc.Solid, f, &buf)
			if errors.Is(err, kernel.ErrUnsupported) {
				r.Warnings = append(r.Warnings, fmt.Sprintf("%s export of %s not supported by the %s kernel", f, pc.Name, p.kernel.Name()))
				continue
			}
			if err != nil {
				return r.fail(stageErr("export", err))
			}
			pc.Exports[f] = buf.Bytes()
		}
	}
	r.Pieces = pieces
	r.Stats = newStats(plan, pieces)

	fields := logrus.Fields{"left": r.Stats.LeftVolume, "right": r.Stats.RightVolume}
	if r.Stats.Symmetric {
		log.WithFields(fields).Debug("mold: half volumes symmetric")
	} else {
		log.WithFields(fields).Warn("mold: half volumes differ by more than 1%")
		r.Warnings = append(r.Warnings, fmt.Sprintf("mold halves are not symmetric: left %.2f mm^3, right %.2f mm^3",
			r.Stats.LeftVolume, r.Stats.RightVolume))
	}
	log.Info("mold: generation complete")
	return r
}
