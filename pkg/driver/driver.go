// Package driver registers the named database drivers the database package
// opens its connections with. MySQL and PostgreSQL connectors are wrapped
// for bindvar registration and logging, SQLite connects as-is.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"go.uber.org/zap"
	"sync"
)

const MySQL = "sessiondb-mysql"
const PostgreSQL = "sessiondb-pgsql"

// SQLite is the driver name of github.com/mattn/go-sqlite3,
// which registers itself on import.
const SQLite = "sqlite3"

// Connector wraps driver.Connector with logging. A connection failure is
// surfaced to the caller right away, retry policy is the caller's business.
type Connector struct {
	driver.Connector
	driver Driver
}

// Connect implements part of the driver.Connector interface.
func (c Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		c.driver.Logger.Warnw("Can't connect to database", zap.Error(err))

		return nil, errors.Wrap(err, "can't connect to database")
	}

	return conn, nil
}

// Driver implements part of the driver.Connector interface.
func (c Connector) Driver() driver.Driver {
	return c.driver
}

// Driver wraps a driver.Driver that also must implement driver.DriverContext
// with logging capabilities and provides our Connector.
type Driver struct {
	ctxDriver
	Logger *logging.Logger
}

// OpenConnector implements the DriverContext interface.
func (d Driver) OpenConnector(name string) (driver.Connector, error) {
	c, err := d.ctxDriver.OpenConnector(name)
	if err != nil {
		return nil, err
	}

	return &Connector{
		driver:    d,
		Connector: c,
	}, nil
}

var registerOnce sync.Once

// Register makes our database drivers available under the names "sessiondb-mysql"
// and "sessiondb-pgsql" and configures the bindvar types of all supported drivers.
// Subsequent calls are no-ops, the first logger passed in wins.
func Register(logger *logging.Logger) {
	registerOnce.Do(func() {
		sql.Register(MySQL, &Driver{ctxDriver: &mysql.MySQLDriver{}, Logger: logger})
		sql.Register(PostgreSQL, &Driver{ctxDriver: PgSQLDriver{}, Logger: logger})
		_ = mysql.SetLogger(mysqlLogger(func(v ...interface{}) { logger.Debug(v...) }))
		sqlx.BindDriver(MySQL, sqlx.QUESTION)
		sqlx.BindDriver(PostgreSQL, sqlx.DOLLAR)
		// The pure Go "sqlite" driver of modernc.org is unknown to sqlx.
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
	})
}

// ctxDriver helps ensure that we only support drivers that implement driver.Driver and driver.DriverContext.
type ctxDriver interface {
	driver.Driver
	driver.DriverContext
}

// mysqlLogger is an adapter that allows ordinary functions to be used as a logger for mysql.SetLogger.
type mysqlLogger func(v ...interface{})

// Print implements the mysql.Logger interface.
func (log mysqlLogger) Print(v ...interface{}) {
	log(v)
}
