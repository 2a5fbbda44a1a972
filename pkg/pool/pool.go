package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
)

var (
	// ErrExhausted is returned when no connection became available within
	// the checkout timeout.
	ErrExhausted = errors.New("connection pool exhausted")
	// ErrClosed is returned by Checkout after Close.
	ErrClosed = errors.New("connection pool closed")
)

// Pool checks out pooled resources.
type Pool interface {
	Checkout(ctx context.Context) (Resource, error)
}

// Resource is a checked out connection. Release returns it to the pool and
// may be called more than once.
type Resource interface {
	DB() *gorm.DB
	Release() error
}

// Options are the tunable limits of a GormPool
type Options struct {
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	CheckoutTimeout time.Duration
}

// OptionsFromConfig extracts pool options from the service configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxOpen:         cfg.PoolMaxOpen,
		MaxIdle:         cfg.PoolMaxIdle,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		CheckoutTimeout: cfg.CheckoutTimeout(),
	}
}

// GormPool is a Pool over the connection pool of a *gorm.DB
type GormPool struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	timeout atomic.Int64
	closed  atomic.Bool
}

var _ Pool = (*GormPool)(nil)

// New creates a GormPool and applies opts to the underlying sql.DB
func New(db *gorm.DB, opts Options) (*GormPool, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	p := &GormPool{db: db, sqlDB: sqlDB}
	p.Apply(opts)
	return p, nil
}

// Apply changes the pool limits. It is safe to call while checkouts are in
// flight.
func (p *GormPool) Apply(opts Options) {
	if opts.MaxOpen > 0 {
		p.sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle >= 0 {
		p.sqlDB.SetMaxIdleConns(opts.MaxIdle)
	}
	if opts.ConnMaxLifetime > 0 {
		p.sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	p.timeout.Store(int64(opts.CheckoutTimeout))
}

// Checkout pins one connection. Queries run through the resource use ctx.
func (p *GormPool) Checkout(ctx context.Context) (Resource, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	checkoutCtx := ctx
	if t := time.Duration(p.timeout.Load()); t > 0 {
		var cancel context.CancelFunc
		checkoutCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	conn, err := p.sqlDB.Conn(checkoutCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no connection within %s", ErrExhausted, time.Duration(p.timeout.Load()))
		}
		if p.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("connection checkout failed: %w", err)
	}

	tx := p.db.WithContext(ctx)
	tx.Statement.ConnPool = conn
	return &resource{db: tx, conn: conn}, nil
}

// Ping verifies that the database is reachable
func (p *GormPool) Ping(ctx context.Context) error {
	return p.sqlDB.PingContext(ctx)
}

// Stats returns the connection pool statistics
func (p *GormPool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

// Close closes the pool; outstanding resources should be released first.
func (p *GormPool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.sqlDB.Close()
}

type resource struct {
	db   *gorm.DB
	conn *sql.Conn
	once sync.Once
	err  error
}

func (r *resource) DB() *gorm.DB {
	return r.db
}

func (r *resource) Release() error {
	r.once.Do(func() {
		r.err = r.conn.Close()
	})
	return r.err
}
