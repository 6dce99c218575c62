// Package source defines where the desired marker list comes from.
package source

import (
	"context"

	"github.com/salonbook/mapsync/pkg/core"
)

// Source yields the full desired marker list.
type Source interface {
	Descriptors(ctx context.Context) ([]core.MarkerDescriptor, error)
}

// Func adapts a plain function to a Source.
type Func func(ctx context.Context) ([]core.MarkerDescriptor, error)

// Descriptors calls f.
func (f Func) Descriptors(ctx context.Context) ([]core.MarkerDescriptor, error) {
	return f(ctx)
}

// Static is a fixed descriptor list.
type Static []core.MarkerDescriptor

// Descriptors returns a copy of the list.
func (s Static) Descriptors(context.Context) ([]core.MarkerDescriptor, error) {
	return append([]core.MarkerDescriptor(nil), s...), nil
}
