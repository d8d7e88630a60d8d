package config

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/sqlexec"
	pgxdriver "github.com/stephenafamo/sqlexec/drivers/pgx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var ErrUnknownDriver = errors.New("config: unknown driver")

// Source is a data source that holds resources until closed
type Source interface {
	sqlexec.DataSource
	Close() error
}

type opener func(context.Context, Config) (Source, error)

var drivers = map[string]opener{
	"sqlite":   openSQL("sqlite"),
	"postgres": openSQL("postgres"),
	"pgx":      openSQL("pgx"),
	"mysql":    openSQL("mysql"),
	"libsql":   openSQL("libsql"),
	"pgxpool":  openPool,
}

// Drivers returns the names accepted in [Config.Driver]
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect validates cfg, opens the data source for its driver and pings it.
// The caller must close the returned source.
func Connect(ctx context.Context, cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return drivers[cfg.Driver](ctx, cfg)
}

func openSQL(driverName string) opener {
	return func(ctx context.Context, cfg Config) (Source, error) {
		db, err := sqlexec.Open(driverName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", driverName, err)
		}

		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}

		if err := db.PingContext(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("pinging %s: %w", driverName, err), db.Close())
		}

		return db, nil
	}
}

type poolSource struct {
	pgxdriver.Pool
}

func (p poolSource) Close() error {
	p.Pool.Close()
	return nil
}

func openPool(ctx context.Context, cfg Config) (Source, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxdriver.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("opening pgxpool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging pgxpool: %w", err)
	}

	return poolSource{pool}, nil
}
