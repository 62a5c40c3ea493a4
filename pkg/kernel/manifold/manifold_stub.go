//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// is compiled instead: the backend stays registered so it can be listed,
// but opening it fails.
//
// Build with: go build -tags=manifold
package manifold

import (
	"fmt"

	"github.com/chazu/moldsmith/pkg/kernel"
)

// Name is the registry name of this backend.
const Name = "manifold"

func init() {
	kernel.Register(Name, New)
}

// New returns an error indicating Manifold is not available.
// Build with -tags=manifold to enable.
func New() (kernel.Kernel, error) {
	return nil, fmt.Errorf("%w: manifold kernel not available: build with -tags=manifold", kernel.ErrUnavailable)
}
