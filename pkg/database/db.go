package database

import (
	"context"
	"fmt"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/backoff"
	"github.com/sessiondb/sessiondb/pkg/com"
	"github.com/sessiondb/sessiondb/pkg/driver"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"github.com/sessiondb/sessiondb/pkg/periodic"
	"github.com/sessiondb/sessiondb/pkg/retry"
	"github.com/sessiondb/sessiondb/pkg/strcase"
	"github.com/sessiondb/sessiondb/pkg/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Dialect names.
const (
	MySQL      = "mysql"
	PostgreSQL = "pgsql"
	SQLite     = "sqlite"
)

// DB is a wrapper around sqlx.DB with bulk execution,
// statement building, streaming and logging capabilities.
type DB struct {
	*sqlx.DB

	Options *Options

	logger            *logging.Logger
	columnMap         ColumnMap
	tableSemaphores   map[string]*semaphore.Weighted
	tableSemaphoresMu sync.Mutex
}

// Options define user configurable database options.
type Options struct {
	// Maximum number of open connections to the database.
	MaxConnections int `yaml:"max_connections" default:"16"`

	// Maximum number of connections per table,
	// regardless of what the connection is actually doing,
	// e.g. INSERT, UPDATE, DELETE.
	MaxConnectionsPerTable int `yaml:"max_connections_per_table" default:"8"`

	// MaxPlaceholdersPerStatement defines the maximum number of placeholders in an
	// INSERT, UPDATE or DELETE statement. Theoretically, MySQL can handle up to 2^16-1 placeholders,
	// but this increases the execution time of queries and thus reduces the number of queries
	// that can be executed in parallel in a given time.
	// The default is 2^13, which in our tests showed the best performance in terms of execution time and parallelism.
	MaxPlaceholdersPerStatement int `yaml:"max_placeholders_per_statement" default:"8192"`
}

// Validate checks constraints in the supplied database options and returns an error if they are violated.
func (o *Options) Validate() error {
	if o.MaxConnections == 0 {
		return errors.New("max_connections cannot be 0. Configure a value greater than zero, or use -1 for no connection limit")
	}
	if o.MaxConnectionsPerTable < 1 {
		return errors.New("max_connections_per_table must be at least 1")
	}
	if o.MaxPlaceholdersPerStatement < 1 {
		return errors.New("max_placeholders_per_statement must be at least 1")
	}

	return nil
}

// NewDb returns a new DB wrapper for a pre-existing sqlx.DB.
func NewDb(db *sqlx.DB, logger *logging.Logger, options *Options) *DB {
	return &DB{
		DB:              db,
		logger:          logger,
		Options:         options,
		columnMap:       NewColumnMap(db.Mapper),
		tableSemaphores: make(map[string]*semaphore.Weighted),
	}
}

// mysqlConfig assembles the go-sql-driver configuration for the given Config.
func mysqlConfig(c *Config) (*mysql.Config, error) {
	config := mysql.NewConfig()

	config.User = c.User
	config.Passwd = c.Password

	if utils.IsUnixAddr(c.Host) {
		config.Net = "unix"
		config.Addr = c.Host
	} else {
		config.Net = "tcp"
		port := c.Port
		if port == 0 {
			port = 3306
		}
		config.Addr = utils.JoinHostPort(c.Host, port)
	}

	config.DBName = c.Database
	config.Timeout = time.Minute
	config.Params = map[string]string{"sql_mode": "ANSI_QUOTES"}

	// RowsAffected of an UPDATE must count matched rows, not changed ones,
	// or idempotent writes look like misses.
	config.ClientFoundRows = true

	tlsConfig, err := c.TlsOptions.MakeConfig(c.Host)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		config.TLSConfig = "sessiondb"
		if err := mysql.RegisterTLSConfig(config.TLSConfig, tlsConfig); err != nil {
			return nil, errors.Wrap(err, "can't register TLS config")
		}
	}

	return config, nil
}

// NewDbFromConfig returns a new DB from Config.
func NewDbFromConfig(c *Config, logger *logging.Logger) (*DB, error) {
	var driverName, dsn string
	singleConn := false

	switch c.Type {
	case MySQL:
		driverName = driver.MySQL

		config, err := mysqlConfig(c)
		if err != nil {
			return nil, err
		}

		dsn = config.FormatDSN()
	case PostgreSQL:
		driverName = driver.PostgreSQL

		uri := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Path:   "/" + url.PathEscape(c.Database),
		}

		query := url.Values{
			"connect_timeout":   {"60"},
			"binary_parameters": {"yes"},

			// Host and port can alternatively be specified in the query string. lib/pq can't parse the connection URI
			// if a Unix domain socket path is specified in the host part of the URI, therefore always use the query
			// string. See also https://github.com/lib/pq/issues/796
			"host": {c.Host},
		}
		if c.Port != 0 {
			query["port"] = []string{strconv.FormatInt(int64(c.Port), 10)}
		}

		if _, err := c.TlsOptions.MakeConfig(c.Host); err != nil {
			return nil, err
		}

		if c.TlsOptions.Enable {
			if c.TlsOptions.Insecure {
				query["sslmode"] = []string{"require"}
			} else {
				query["sslmode"] = []string{"verify-full"}
			}

			if c.TlsOptions.Cert != "" {
				query["sslcert"] = []string{c.TlsOptions.Cert}
			}

			if c.TlsOptions.Key != "" {
				query["sslkey"] = []string{c.TlsOptions.Key}
			}

			if c.TlsOptions.Ca != "" {
				query["sslrootcert"] = []string{c.TlsOptions.Ca}
			}
		} else {
			query["sslmode"] = []string{"disable"}
		}

		uri.RawQuery = query.Encode()
		dsn = uri.String()
	case SQLite:
		driverName = driver.SQLite

		path := c.Database
		if path == ":memory:" {
			// Every new connection to :memory: opens a fresh database,
			// share the one instance and serialize access instead.
			path = ":memory:?cache=shared"
			singleConn = true
		}

		dsn = "file:" + path
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=10000"
		}
	default:
		return nil, unknownDbType(c.Type)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "can't open database")
	}

	if singleConn {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(c.Options.MaxConnections / 3)
		db.SetMaxOpenConns(c.Options.MaxConnections)
	}

	db.Mapper = reflectx.NewMapperFunc("db", strcase.Snake)

	return NewDb(db, logger, &c.Options), nil
}

// Dialect returns the SQL dialect spoken by the connected database,
// one of MySQL, PostgreSQL or SQLite. Dialect differences are confined
// to the statement builders below, the stores never branch on it.
func (db *DB) Dialect() string {
	switch name := db.DriverName(); name {
	case driver.MySQL:
		return MySQL
	case driver.PostgreSQL:
		return PostgreSQL
	default:
		if strings.HasPrefix(name, "sqlite") {
			return SQLite
		}

		return name
	}
}

// BuildColumns returns all columns of the given struct.
func (db *DB) BuildColumns(subject interface{}) []string {
	return db.columnMap.Columns(subject)
}

// BuildInsertStmt returns an INSERT INTO statement for the given struct.
func (db *DB) BuildInsertStmt(into interface{}) (string, int) {
	columns := db.BuildColumns(into)

	return fmt.Sprintf(
		`INSERT INTO "%s" ("%s") VALUES (%s)`,
		TableName(into),
		strings.Join(columns, `", "`),
		fmt.Sprintf(":%s", strings.Join(columns, ", :")),
	), len(columns)
}

// BuildInsertIgnoreStmt returns an INSERT statement for the specified struct for
// which the database ignores rows that have already been inserted.
func (db *DB) BuildInsertIgnoreStmt(into interface{}) (string, int) {
	table := TableName(into)
	columns := db.BuildColumns(into)
	var clause string

	switch db.Dialect() {
	case MySQL:
		// MySQL treats UPDATE id = id as a no-op.
		clause = fmt.Sprintf(`ON DUPLICATE KEY UPDATE "%s" = "%s"`, columns[0], columns[0])
	default:
		// PostgreSQL and SQLite both speak ON CONFLICT.
		if conflicter, ok := into.(Conflicter); ok {
			clause = fmt.Sprintf(`ON CONFLICT ("%s") DO NOTHING`, strings.Join(conflicter.Conflict(), `", "`))
		} else {
			clause = "ON CONFLICT DO NOTHING"
		}
	}

	return fmt.Sprintf(
		`INSERT INTO "%s" ("%s") VALUES (%s) %s`,
		table,
		strings.Join(columns, `", "`),
		fmt.Sprintf(":%s", strings.Join(columns, ", :")),
		clause,
	), len(columns)
}

// BuildUpsertStmt returns an upsert statement for the given struct.
// The conflict target is taken from the Conflicter interface, the columns
// updated on conflict from the Upserter interface (all columns if not implemented).
func (db *DB) BuildUpsertStmt(subject interface{}) (stmt string, placeholders int) {
	insertColumns := db.BuildColumns(subject)
	table := TableName(subject)
	var updateColumns []string

	if upserter, ok := subject.(Upserter); ok {
		updateColumns = db.BuildColumns(upserter.Upsert())
	} else {
		updateColumns = insertColumns
	}

	var clause, setFormat string
	switch db.Dialect() {
	case MySQL:
		clause = "ON DUPLICATE KEY UPDATE"
		setFormat = `"%[1]s" = VALUES("%[1]s")`
	default:
		// PostgreSQL and SQLite both speak ON CONFLICT.
		if conflicter, ok := subject.(Conflicter); ok {
			clause = fmt.Sprintf(
				`ON CONFLICT ("%s") DO UPDATE SET`, strings.Join(conflicter.Conflict(), `", "`),
			)
		} else {
			clause = fmt.Sprintf("ON CONFLICT ON CONSTRAINT pk_%s DO UPDATE SET", table)
		}
		setFormat = `"%[1]s" = EXCLUDED."%[1]s"`
	}

	set := make([]string, 0, len(updateColumns))

	for _, col := range updateColumns {
		set = append(set, fmt.Sprintf(setFormat, col))
	}

	return fmt.Sprintf(
		`INSERT INTO "%s" ("%s") VALUES (%s) %s %s`,
		table,
		strings.Join(insertColumns, `", "`),
		fmt.Sprintf(":%s", strings.Join(insertColumns, ",:")),
		clause,
		strings.Join(set, ","),
	), len(insertColumns)
}

// BuildSelectStmt returns a SELECT query that creates the FROM part from the given table struct
// and the column list from the specified columns struct.
func (db *DB) BuildSelectStmt(table interface{}, columns interface{}) string {
	q := fmt.Sprintf(
		`SELECT "%s" FROM "%s"`,
		strings.Join(db.BuildColumns(columns), `", "`),
		TableName(table),
	)

	if scoper, ok := table.(Scoper); ok {
		where, _ := db.BuildWhere(scoper.Scope())
		q += ` WHERE ` + where
	}

	return q
}

// BuildWhere returns a WHERE clause with named placeholder conditions built from the specified struct
// combined with the AND operator.
func (db *DB) BuildWhere(subject interface{}) (string, int) {
	columns := db.BuildColumns(subject)
	where := make([]string, 0, len(columns))
	for _, col := range columns {
		where = append(where, fmt.Sprintf(`"%s" = :%s`, col, col))
	}

	return strings.Join(where, ` AND `), len(columns)
}

// OnSuccess is a callback for successful (bulk) DML operations.
type OnSuccess[T any] func(ctx context.Context, affectedRows []T) (err error)

func OnSuccessIncrement[T any](counter *com.Counter) OnSuccess[T] {
	return func(_ context.Context, rows []T) error {
		counter.Add(uint64(len(rows)))
		return nil
	}
}

// NamedBulkExec bulk executes queries with named placeholders in a VALUES clause most likely
// in the format INSERT ... VALUES. Takes in up to the number of entities specified in count
// from the arg stream, derives and executes a new query with the VALUES clause expanded to
// this set of arguments, until the arg stream has been processed.
// The queries are executed in a separate goroutine with a weighting of 1
// and can be executed concurrently to the extent allowed by the semaphore passed in sem.
// Entities for which the query ran successfully will be passed to onSuccess.
func (db *DB) NamedBulkExec(
	ctx context.Context, query string, count int, sem *semaphore.Weighted, arg <-chan Entity,
	splitPolicyFactory com.BulkChunkSplitPolicyFactory[Entity], onSuccess ...OnSuccess[Entity],
) error {
	var counter com.Counter
	defer db.log(ctx, query, &counter).Stop()

	g, ctx := errgroup.WithContext(ctx)
	bulk := com.Bulk(ctx, arg, count, splitPolicyFactory)

	g.Go(func() error {
		for {
			select {
			case b, ok := <-bulk:
				if !ok {
					return nil
				}

				if err := sem.Acquire(ctx, 1); err != nil {
					return errors.Wrap(err, "can't acquire semaphore")
				}

				g.Go(func(b []Entity) func() error {
					return func() error {
						defer sem.Release(1)

						return retry.WithBackoff(
							ctx,
							func(ctx context.Context) error {
								_, err := db.NamedExecContext(ctx, query, b)
								if err != nil {
									return CantPerformQuery(err, query)
								}

								counter.Add(uint64(len(b)))

								for _, onSuccess := range onSuccess {
									if err := onSuccess(ctx, b); err != nil {
										return err
									}
								}

								return nil
							},
							retry.Retryable,
							backoff.NewExponentialWithJitter(1*time.Millisecond, 1*time.Second),
							retry.Settings{},
						)
					}
				}(b))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// BatchSizeByPlaceholders returns how often the specified number of placeholders fits
// into Options.MaxPlaceholdersPerStatement, but at least 1.
func (db *DB) BatchSizeByPlaceholders(n int) int {
	s := db.Options.MaxPlaceholdersPerStatement / n
	if s > 0 {
		return s
	}

	return 1
}

// YieldAll executes the query with the supplied scope,
// scans each resulting row into an entity returned by the factory function,
// and streams them into a returned channel.
func (db *DB) YieldAll(ctx context.Context, factoryFunc EntityFactoryFunc, query string, scope interface{}) (<-chan Entity, <-chan error) {
	entities := make(chan Entity, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var counter com.Counter
		defer db.log(ctx, query, &counter).Stop()
		defer close(entities)

		rows, err := db.NamedQueryContext(ctx, query, scope)
		if err != nil {
			return CantPerformQuery(err, query)
		}
		defer rows.Close()

		for rows.Next() {
			e := factoryFunc()

			if err := rows.StructScan(e); err != nil {
				return errors.Wrapf(err, "can't store query result into a %T: %s", e, query)
			}

			select {
			case entities <- e:
				counter.Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	return entities, com.WaitAsync(g)
}

// UpsertStreamed bulk upserts the specified entities via NamedBulkExec.
// The upsert statement is created using BuildUpsertStmt with the first entity from the entities stream.
// Bulk size is controlled via Options.MaxPlaceholdersPerStatement and
// concurrency is controlled via Options.MaxConnectionsPerTable.
// Entities for which the query ran successfully will be passed to onSuccess.
func (db *DB) UpsertStreamed(
	ctx context.Context, entities <-chan Entity, onSuccess ...OnSuccess[Entity],
) error {
	first, forward, err := com.CopyFirst(ctx, entities)
	if err != nil {
		return errors.Wrap(err, "can't copy first entity")
	}

	if first == nil {
		// Empty input stream.
		return nil
	}

	sem := db.GetSemaphoreForTable(TableName(first))
	stmt, placeholders := db.BuildUpsertStmt(first)

	return db.NamedBulkExec(
		ctx, stmt, db.BatchSizeByPlaceholders(placeholders), sem,
		forward, SplitOnDupId[Entity], onSuccess...,
	)
}

func (db *DB) GetSemaphoreForTable(table string) *semaphore.Weighted {
	db.tableSemaphoresMu.Lock()
	defer db.tableSemaphoresMu.Unlock()

	if sem, ok := db.tableSemaphores[table]; ok {
		return sem
	} else {
		sem = semaphore.NewWeighted(int64(db.Options.MaxConnectionsPerTable))
		db.tableSemaphores[table] = sem
		return sem
	}
}

func (db *DB) log(ctx context.Context, query string, counter *com.Counter) periodic.Stopper {
	return periodic.Start(ctx, db.logger.Interval(), func(tick periodic.Tick) {
		if count := counter.Reset(); count > 0 {
			db.logger.Debugf("Executed %q with %d rows", utils.Ellipsize(query, 120), count)
		}
	}, periodic.OnStop(func(tick periodic.Tick) {
		db.logger.Debugf("Finished executing %q with %d rows in %s", utils.Ellipsize(query, 120), counter.Total(), tick.Elapsed)
	}))
}
