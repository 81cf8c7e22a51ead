// Package storage provides the database provider for analytics handlers.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MemoryDSN selects one shared in-memory SQLite database per namespace.
const MemoryDSN = ":memory:"

// Databases hands out one database handle per namespace.
//
// With the sqlite driver the DSN names a directory and every namespace gets
// its own database file in it. With the postgres driver every namespace gets
// its own schema (see SchemaName) on the server the DSN points to, and its
// handle has that schema as search_path.
type Databases struct {
	driver     string
	dsn        string
	gormConfig *gorm.Config
	pool       []PoolOption
	logger     *slog.Logger

	mu    sync.Mutex
	dbs   map[string]*gorm.DB
	admin *gorm.DB
}

// Option configures Databases.
type Option interface {
	apply(*Databases)
}

type optionFunc func(*Databases)

func (f optionFunc) apply(d *Databases) { f(d) }

// WithPool applies pool options to every namespace handle.
func WithPool(opts ...PoolOption) Option {
	return optionFunc(func(d *Databases) {
		d.pool = append(d.pool, opts...)
	})
}

// WithGormConfig sets the gorm configuration used to open handles.
func WithGormConfig(cfg *gorm.Config) Option {
	return optionFunc(func(d *Databases) {
		d.gormConfig = cfg
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(d *Databases) {
		d.logger = l
	})
}

// NewDatabases creates a database provider for the given driver and DSN.
// Nothing is opened until a namespace is first requested.
func NewDatabases(driver, dsn string, opts ...Option) (*Databases, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedDriver, driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("analytics: %s database requires a DSN", driver)
	}

	d := &Databases{
		driver: driver,
		dsn:    dsn,
		gormConfig: &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
		logger: slog.Default(),
		dbs:    make(map[string]*gorm.DB),
	}
	for _, opt := range opts {
		opt.apply(d)
	}
	return d, nil
}

// Driver returns the configured driver name.
func (d *Databases) Driver() string {
	return d.driver
}

// Database returns the handle for namespace, opening it on first use.
func (d *Databases) Database(ctx context.Context, namespace string) (*gorm.DB, error) {
	if err := security.ValidateNamespace(namespace); err != nil {
		return nil, fmt.Errorf("%w: %q", err, namespace)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dbs == nil {
		return nil, fmt.Errorf("analytics: database provider is closed")
	}
	if db, ok := d.dbs[namespace]; ok {
		return db.WithContext(ctx), nil
	}

	db, err := d.open(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("analytics: open database for namespace %q: %w", namespace, err)
	}
	d.dbs[namespace] = db
	d.logger.Debug("opened namespace database", "namespace", namespace, "driver", d.driver)

	return db.WithContext(ctx), nil
}

// Namespaces returns the namespaces with an open handle, sorted.
func (d *Databases) Namespaces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.dbs))
}

// Close closes every handle. The provider cannot be used afterwards.
func (d *Databases) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for ns, db := range d.dbs {
		if err := closeDB(db); err != nil {
			errs = append(errs, fmt.Errorf("namespace %q: %w", ns, err))
		}
	}
	if d.admin != nil {
		if err := closeDB(d.admin); err != nil {
			errs = append(errs, err)
		}
		d.admin = nil
	}
	d.dbs = nil
	return errors.Join(errs...)
}

func (d *Databases) open(ctx context.Context, namespace string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch d.driver {
	case DriverSQLite:
		dsn, err := d.sqliteDSN(namespace)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		schema := SchemaName(namespace)
		if err := d.createSchema(ctx, schema); err != nil {
			return nil, err
		}
		dsn, err := withSearchPath(d.dsn, schema)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, d.gormConfig)
	if err != nil {
		return nil, err
	}
	pool := NewPoolConfig(d.driver, d.pool...)
	if d.driver == DriverSQLite && d.dsn == MemoryDSN {
		// The shared in-memory database lives as long as one connection does.
		pool.MaxIdleConns = max(pool.MaxIdleConns, 1)
		pool.ConnMaxLifetime = 0
		pool.ConnMaxIdleTime = 0
	}
	if err := ConfigurePool(db, pool); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *Databases) sqliteDSN(namespace string) (string, error) {
	if d.dsn == MemoryDSN {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", namespace), nil
	}
	if err := os.MkdirAll(d.dsn, 0o750); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	return filepath.Join(d.dsn, namespace+".db"), nil
}

// maxIdentifierLength is the Postgres limit; longer identifiers are truncated.
const maxIdentifierLength = 63

// SchemaName returns the Postgres schema of a namespace. Namespaces that are
// already lower case, use no hyphen and fit in 63 bytes map to themselves.
// Others are folded to that form and suffixed with a hash of the original
// namespace, so distinct namespaces never share a schema and the name needs
// no quoting in search_path.
func SchemaName(namespace string) string {
	folded := strings.ReplaceAll(strings.ToLower(namespace), "-", "_")
	if folded == namespace && len(folded) <= maxIdentifierLength {
		return folded
	}
	sum := sha256.Sum256([]byte(namespace))
	suffix := hex.EncodeToString(sum[:8])
	prefix := folded[:min(len(folded), maxIdentifierLength-len(suffix)-1)]
	return prefix + "_" + suffix
}

// createSchema creates a schema through a shared admin handle. Schema names
// come from SchemaName, so quoting them is enough.
func (d *Databases) createSchema(ctx context.Context, schema string) error {
	if d.admin == nil {
		admin, err := gorm.Open(postgres.Open(d.dsn), d.gormConfig)
		if err != nil {
			return err
		}
		if err := ConfigurePool(admin, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
			return err
		}
		d.admin = admin
	}
	return d.admin.WithContext(ctx).Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}

// withSearchPath adds search_path to a key=value or URL style DSN.
func withSearchPath(dsn, schema string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres DSN: %w", err)
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimSpace(dsn) + " search_path=" + schema, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
