package db

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goldsignal/internal/config"
)

// ErrNoDSN rejects an enabled archive with no connection string.
var ErrNoDSN = errors.New("db: dsn not configured")

// DB is the archive mirror connection. The mirror is optional: a nil *DB is
// valid everywhere and means archiving is off. Core state never lives here.
type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects with gorm's own logging silenced; query failures surface
// through callers, not a second log stream.
func Open(cfg config.DBConfig) (*DB, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{Gorm: gdb, SQL: sqldb}, nil
}

func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.PingContext(ctx)
}

func (d *DB) SetTimezone(tz string) error {
	if d == nil || d.SQL == nil || tz == "" {
		return nil
	}
	_, err := d.SQL.Exec("SET TIME ZONE '" + tz + "'")
	return err
}
