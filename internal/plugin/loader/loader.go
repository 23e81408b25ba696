// Package loader turns plugin module files into uninitialized plugin
// instances.
//
// A module is any file whose extension has a registered Opener. Opening a
// module yields a list of factories; the loader calls each factory once.
// Failures are isolated: a module that fails to open, or a factory that
// fails or panics, is recorded and skipped.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/plugin"
)

// BuiltinPrefix marks module paths of compiled-in catalog modules.
const BuiltinPrefix = "builtin:"

// Module is an opened plugin module.
type Module struct {
	// Path is the module file, or BuiltinPrefix+name for catalog modules.
	Path string

	// Factories in type enumeration order.
	Factories []Factory

	// Close releases module resources. May be nil.
	Close func() error
}

// Opener opens one kind of module file.
type Opener interface {
	Open(ctx context.Context, path string) (*Module, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (*Module, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string) (*Module, error) {
	return f(ctx, path)
}

// Instance is a constructed, not yet initialized plugin.
type Instance struct {
	Plugin  plugin.Plugin
	Module  string
	Factory string
}

// Result is the outcome of a Load.
type Result struct {
	// Instances in discovery order.
	Instances []Instance

	// Modules that opened successfully, in discovery order.
	Modules []*Module

	// Failures in the order they occurred.
	Failures []*LoadError
}

// Err joins all failures, or returns nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// CloseModules closes every module that has a Close function.
func (r *Result) CloseModules() error {
	var errs []error
	for _, m := range r.Modules {
		if m.Close != nil {
			if err := m.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.Path, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Loader discovers and instantiates plugins.
type Loader struct {
	openers  map[string]Opener
	catalog  *Catalog
	builtins bool
	logger   *logging.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithOpener registers an opener for a file extension such as ".lua".
func WithOpener(ext string, o Opener) Option {
	return func(l *Loader) {
		l.openers[normalizeExt(ext)] = o
	}
}

// WithCatalog sets the catalog used for manifests and builtins.
func WithCatalog(c *Catalog) Option {
	return func(l *Loader) {
		l.catalog = c
	}
}

// WithBuiltins loads every catalog module before scanning the directory.
func WithBuiltins(enabled bool) Option {
	return func(l *Loader) {
		l.builtins = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader. The manifest opener for ManifestExt is always
// registered; other openers are added with WithOpener.
func New(opts ...Option) *Loader {
	l := &Loader{
		openers: make(map[string]Opener),
		catalog: DefaultCatalog(),
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if _, ok := l.openers[ManifestExt]; !ok {
		l.openers[ManifestExt] = NewManifestOpener(l.catalog)
	}
	l.logger = l.logger.WithComponent("loader")
	return l
}

// Extensions returns the module file extensions the loader accepts, sorted.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.openers))
	for ext := range l.openers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Load instantiates builtins (if enabled) and then every module under dir,
// walking recursively in lexical order. It never fails as a whole; inspect
// Result.Failures for per-unit errors.
func (l *Loader) Load(ctx context.Context, dir string) *Result {
	res := &Result{}

	if l.builtins {
		for _, name := range l.catalog.Modules() {
			factories, _ := l.catalog.Lookup(name)
			mod := &Module{Path: BuiltinPrefix + name, Factories: factories}
			res.Modules = append(res.Modules, mod)
			l.instantiate(mod, res)
		}
	}

	if dir == "" {
		return res
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			l.fail(res, &LoadError{Path: path, Stage: StageScan, Err: err})
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		opener, ok := l.openers[normalizeExt(filepath.Ext(path))]
		if !ok {
			return nil
		}

		mod, err := l.open(ctx, opener, path)
		if err != nil {
			l.fail(res, &LoadError{Path: path, Stage: StageOpen, Err: err})
			return nil
		}
		if len(mod.Factories) == 0 {
			l.fail(res, &LoadError{Path: path, Stage: StageOpen, Err: ErrNoFactories})
			if mod.Close != nil {
				_ = mod.Close()
			}
			return nil
		}

		res.Modules = append(res.Modules, mod)
		l.instantiate(mod, res)
		return nil
	})
	if err != nil {
		l.fail(res, &LoadError{Path: dir, Stage: StageScan, Err: err})
	}

	l.logger.Debug("loaded %d plugin instances from %d modules (%d failures)",
		len(res.Instances), len(res.Modules), len(res.Failures))
	return res
}

// open calls the opener with panic recovery.
func (l *Loader) open(ctx context.Context, o Opener, path string) (mod *Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, &plugin.PanicError{Value: r}
		}
	}()
	mod, err = o.Open(ctx, path)
	if err == nil && mod == nil {
		err = ErrNoFactories
	}
	if mod != nil && mod.Path == "" {
		mod.Path = path
	}
	return mod, err
}

// instantiate runs every factory of mod, isolating failures per factory.
func (l *Loader) instantiate(mod *Module, res *Result) {
	for _, f := range mod.Factories {
		p, err := construct(f)
		if err != nil {
			l.fail(res, &LoadError{Path: mod.Path, Factory: f.Name, Stage: StageInstantiate, Err: err})
			continue
		}
		res.Instances = append(res.Instances, Instance{Plugin: p, Module: mod.Path, Factory: f.Name})
	}
}

func construct(f Factory) (p plugin.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, &plugin.PanicError{Value: r}
		}
	}()
	if f.New == nil {
		return nil, ErrNilInstance
	}
	p, err = f.New()
	if err == nil && p == nil {
		err = ErrNilInstance
	}
	return p, err
}

func (l *Loader) fail(res *Result, e *LoadError) {
	res.Failures = append(res.Failures, e)
	l.logger.Warn("plugin load failed: %v", e)
}

// EnsureDir creates dir if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating plugin directory %s: %w", dir, err)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
