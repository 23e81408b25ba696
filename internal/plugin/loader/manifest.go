package loader

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ManifestExt is the extension of module manifest files.
const ManifestExt = ".plugin"

// Manifest points at a compiled-in catalog module.
//
//	module: jsonformatter
//	factories: [JsonFormatter]   # optional subset, in this order
type Manifest struct {
	Module    string   `yaml:"module"`
	Factories []string `yaml:"factories,omitempty"`
}

// ParseManifest decodes and validates manifest data.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Module == "" {
		return nil, fmt.Errorf("manifest: module is required")
	}
	return &m, nil
}

// ManifestOpener opens ".plugin" manifests against a catalog.
type ManifestOpener struct {
	catalog *Catalog
}

// NewManifestOpener creates a manifest opener for catalog.
func NewManifestOpener(catalog *Catalog) *ManifestOpener {
	return &ManifestOpener{catalog: catalog}
}

// Open reads the manifest at path and resolves its factories.
func (o *ManifestOpener) Open(ctx context.Context, path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	all, ok := o.catalog.Lookup(m.Module)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, m.Module)
	}
	if len(m.Factories) == 0 {
		return &Module{Path: path, Factories: all}, nil
	}

	selected := make([]Factory, 0, len(m.Factories))
	for _, name := range m.Factories {
		i := slices.IndexFunc(all, func(f Factory) bool { return f.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("module %q has no factory %q", m.Module, name)
		}
		selected = append(selected, all[i])
	}
	return &Module{Path: path, Factories: selected}, nil
}
