// Package modulefs provides the filesystem side of handler resources: one
// directory per namespace under a common root, with every path confined to
// that directory.
package modulefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// Filesystems hands out one FS per namespace.
type Filesystems struct {
	root   string
	logger *slog.Logger

	mu  sync.Mutex
	fss map[string]*FS
}

// New creates a filesystem provider rooted at dir. Namespace directories
// are created on first use.
func New(dir string) *Filesystems {
	return &Filesystems{
		root:   dir,
		logger: slog.Default(),
		fss:    make(map[string]*FS),
	}
}

// WithLogger sets the logger and returns the provider.
func (p *Filesystems) WithLogger(l *slog.Logger) *Filesystems {
	p.logger = l
	return p
}

// Root returns the directory holding the namespace directories.
func (p *Filesystems) Root() string {
	return p.root
}

// Filesystem returns the FS of namespace, creating its directory if needed.
func (p *Filesystems) Filesystem(ctx context.Context, namespace string) (core.Filesystem, error) {
	fsys, err := p.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

// Get is Filesystem with the concrete return type.
func (p *Filesystems) Get(_ context.Context, namespace string) (*FS, error) {
	if err := security.ValidateNamespace(namespace); err != nil {
		return nil, fmt.Errorf("%w: %q", err, namespace)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fss == nil {
		return nil, fmt.Errorf("analytics: filesystem provider is closed")
	}
	if fsys, ok := p.fss[namespace]; ok {
		return fsys, nil
	}

	dir := filepath.Join(p.root, namespace)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("analytics: create filesystem for namespace %q: %w", namespace, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("analytics: open filesystem for namespace %q: %w", namespace, err)
	}

	fsys := &FS{namespace: namespace, root: root}
	p.fss[namespace] = fsys
	p.logger.Debug("opened namespace filesystem", "namespace", namespace, "dir", dir)
	return fsys, nil
}

// Namespaces returns the namespaces with an open FS, sorted.
func (p *Filesystems) Namespaces() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.fss))
}

// Close closes every FS. The provider cannot be used afterwards.
func (p *Filesystems) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, fsys := range p.fss {
		if err := fsys.root.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.fss = nil
	return errors.Join(errs...)
}

// FS is the storage area of a single namespace. Paths are slash-separated,
// relative to the namespace directory, and may not leave it.
type FS struct {
	namespace string
	root      *os.Root
}

var _ core.Filesystem = (*FS)(nil)

// Namespace returns the namespace the FS belongs to.
func (f *FS) Namespace() string {
	return f.namespace
}

// ReadFile reads the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	return f.root.ReadFile(filepath.FromSlash(name))
}

// WriteFile writes data to the named file, creating parent directories.
func (f *FS) WriteFile(name string, data []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := f.root.MkdirAll(filepath.FromSlash(dir), 0o750); err != nil {
			return err
		}
	}
	return f.root.WriteFile(filepath.FromSlash(name), data, 0o640)
}

// Remove removes the named file or empty directory.
func (f *FS) Remove(name string) error {
	return f.root.Remove(filepath.FromSlash(name))
}

// ReadDir lists the named directory, sorted by file name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(f.root.FS(), name)
}

// Stat describes the named file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	return f.root.Stat(filepath.FromSlash(name))
}

// FS returns the namespace as a read-only fs.FS.
func (f *FS) FS() fs.FS {
	return f.root.FS()
}
