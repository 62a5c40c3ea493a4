// Package kernel defines the solid modeling interface the mold planner
// drives. Implementations (sdfx, manifold) register themselves by name and
// are selected once at startup with Open.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/moldsmith/pkg/polygon"
)

var (
	// ErrUnavailable reports a backend that is missing or was not built in.
	ErrUnavailable = errors.New("kernel: backend unavailable")
	// ErrNotWatertight reports a triangle soup that cannot be sewn into a
	// closed solid.
	ErrNotWatertight = errors.New("kernel: surface is not watertight")
	// ErrEmptySolid reports an operation that produced no material.
	ErrEmptySolid = errors.New("kernel: empty solid")
	// ErrUnsupported reports an operation the backend cannot perform.
	ErrUnsupported = errors.New("kernel: unsupported operation")
)

// Triangle is one face of a triangle soup, corners in outward winding.
type Triangle [3][3]float64

// Format is an export file format.
type Format string

const (
	FormatSTL  Format = "stl"
	FormatSTEP Format = "step"
)

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the solid modeling interface. Every operation reports failure
// through its error; none panic on bad geometry.
type Kernel interface {
	Name() string

	// Sew turns a closed triangle soup into a solid.
	Sew(tris []Triangle) (Solid, error)

	// Primitives. Box has its minimum corner at the origin. Cylinder runs
	// along Z from z=0 to z=height, centered on the Z axis.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64, segments int) (Solid, error)
	// Extrude sweeps an XY profile from z=0 to z=height. A negative height
	// extrudes downward.
	Extrude(profile polygon.Polygon, height float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms
	Translate(s Solid, x, y, z float64) (Solid, error)

	// Measurement and output
	Volume(s Solid) (float64, error)
	// Footprint returns the outline of the solid's shadow on the XY plane.
	Footprint(s Solid) (polygon.Polygon, error)
	ToMesh(s Solid) (*Mesh, error)
	Export(s Solid, format Format, w io.Writer) error
}

// Factory builds a Kernel.
type Factory func() (Kernel, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to Open. It panics if name is
// registered twice.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("kernel: Register called twice for " + name)
	}
	registry[name] = f
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open returns the backend registered under name.
func Open(name string) (Kernel, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnavailable, name, strings.Join(Backends(), ", "))
	}
	k, err := f()
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return k, nil
}
