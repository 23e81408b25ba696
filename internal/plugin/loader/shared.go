package loader

import (
	"context"
	"fmt"
	goplugin "plugin"
)

// SharedObjectExt is the extension of native Go plugin modules.
const SharedObjectExt = ".so"

// FactoriesSymbol is the symbol a native module exports. It may be a
// variable of type []Factory or a func() []Factory.
const FactoriesSymbol = "Factories"

// SharedObjectOpener opens modules built with -buildmode=plugin.
type SharedObjectOpener struct{}

// NewSharedObjectOpener creates a SharedObjectOpener.
func NewSharedObjectOpener() *SharedObjectOpener {
	return &SharedObjectOpener{}
}

// Open loads the shared object and reads its factories.
func (SharedObjectOpener) Open(ctx context.Context, path string) (*Module, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}

	sym, err := p.Lookup(FactoriesSymbol)
	if err != nil {
		return nil, err
	}

	var factories []Factory
	switch v := sym.(type) {
	case *[]Factory:
		factories = *v
	case func() []Factory:
		factories = v()
	default:
		return nil, fmt.Errorf("symbol %s has unexpected type %T", FactoriesSymbol, sym)
	}
	return &Module{Path: path, Factories: factories}, nil
}
