package core

import (
	"context"
	"io/fs"

	"gorm.io/gorm"
)

// Names of the privileged arguments supplied by the framework. A user value
// with one of these names never reaches a handler.
const (
	ArgDatabase   = "db"
	ArgFilesystem = "fs"
)

// Resources hands out the per-namespace resources a handler may ask for.
// Implementations own the lifecycle of what they return.
type Resources interface {
	// Database returns the database handle scoped to namespace.
	Database(ctx context.Context, namespace string) (*gorm.DB, error)

	// Filesystem returns the filesystem scoped to namespace.
	Filesystem(ctx context.Context, namespace string) (Filesystem, error)
}

// Filesystem is the storage area of a single namespace.
// Names are slash-separated and relative to the namespace root.
type Filesystem interface {
	Namespace() string
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
}
