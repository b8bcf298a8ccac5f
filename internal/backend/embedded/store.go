// Package embedded implements the backend contracts in-process on top of SQL
// storage. SQLite is the default; PostgreSQL is used when the data source is a
// postgres:// URL. `habio serve` exposes the same Backend over HTTP.
package embedded

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pq "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habio/internal/constants"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/migration"
	"github.com/julianstephens/habio/migrations"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options tune a Backend. Zero values select the defaults.
type Options struct {
	BcryptCost int
	SessionTTL time.Duration
	Now        func() time.Time
	// Broker fans realtime events out to subscribers. Defaults to a MemoryBroker.
	Broker Broker
}

// Backend is the server side of the identity service, the document store and
// the realtime channel. Every call names the acting account or session secret
// explicitly; Client binds a Backend to a single session.
type Backend struct {
	db      *sql.DB
	dialect Dialect
	cost    int
	ttl     time.Duration
	now     func() time.Time
	broker  Broker
}

// Open connects to dsn, applies pending migrations and returns the Backend.
func Open(ctx context.Context, dsn string, opts Options) (*Backend, error) {
	dialect := DialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = DialectPostgres
	}

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Backend{
		db:      db,
		dialect: dialect,
		cost:    opts.BcryptCost,
		ttl:     opts.SessionTTL,
		now:     opts.Now,
		broker:  opts.Broker,
	}
	if b.cost == 0 {
		b.cost = bcrypt.DefaultCost
	}
	if b.ttl == 0 {
		b.ttl = constants.SessionTTL
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.broker == nil {
		b.broker = NewMemoryBroker()
	}

	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return b, nil
}

func (b *Backend) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, string(b.dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to access %s migrations: %w", b.dialect, err)
	}
	return migration.NewRunner(b.db, subFS, b.rebind), nil
}

func (b *Backend) migrate(ctx context.Context) error {
	runner, err := b.runner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(ctx, func(msg string) {
		logger.Debug(msg, "dialect", b.dialect)
	})
	return err
}

// SchemaVersion returns the applied schema version and the newest one this
// binary ships
func (b *Backend) SchemaVersion(ctx context.Context) (current, latest int, err error) {
	runner, err := b.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	files, err := runner.ReadMigrationFiles()
	if err != nil {
		return 0, 0, err
	}
	if len(files) > 0 {
		latest = files[len(files)-1].Version
	}
	return current, latest, nil
}

// Ping checks the database is reachable
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Dialect reports which SQL engine backs b
func (b *Backend) Dialect() Dialect {
	return b.dialect
}

// Broker returns the realtime broker events are published on
func (b *Backend) Broker() Broker {
	return b.broker
}

// Close releases the broker and the database
func (b *Backend) Close() error {
	berr := b.broker.Close()
	derr := b.db.Close()
	if derr != nil {
		return derr
	}
	return berr
}

// rebind rewrites '?' placeholders to $n for PostgreSQL
func (b *Backend) rebind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
