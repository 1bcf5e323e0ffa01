package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/database"
	"strings"
)

// SchemaVersion is the version of the schema this package creates and expects.
// Databases stamped with a higher version are rejected.
const SchemaVersion int32 = 1

// schemaVersion is the single row of the schema_version table.
type schemaVersion struct {
	Version int32
}

// Conflict implements the database.Conflicter interface.
func (v *schemaVersion) Conflict() []string {
	return []string{"version"}
}

// EnsureSchema creates all tables, indices and the version stamp if they don't
// exist yet and verifies the version stamp of pre-existing schemata.
// It is idempotent and safe to run on every start.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	for _, ddl := range schemaStatements(db.Dialect()) {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return database.CantPerformQuery(err, ddl)
		}
	}

	for _, ddl := range schemaIndexStatements() {
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		if _, err := db.ExecContext(ctx, ddl); err != nil && !indexExists(err) {
			return database.CantPerformQuery(err, ddl)
		}
	}

	var version int32
	err := db.QueryRowxContext(ctx, `SELECT "version" FROM "schema_version" ORDER BY "version" DESC LIMIT 1`).
		Scan(&version)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		stmt, _ := db.BuildInsertIgnoreStmt(&schemaVersion{})
		if _, err := db.NamedExecContext(ctx, stmt, &schemaVersion{Version: SchemaVersion}); err != nil {
			return database.CantPerformQuery(err, stmt)
		}
	case err != nil:
		return errors.Wrap(err, "can't query schema version")
	case version > SchemaVersion:
		return errors.Errorf("unsupported schema version %d (expected at most %d)", version, SchemaVersion)
	}

	return nil
}

// schemaStatements returns the CREATE TABLE statements for the given dialect.
// The dialects only differ in their binary column types.
func schemaStatements(dialect string) []string {
	keyType, digestType := "BLOB", "BLOB"
	switch dialect {
	case database.MySQL:
		keyType, digestType = "LONGBLOB", "VARBINARY(16)"
	case database.PostgreSQL:
		keyType, digestType = "bytea", "bytea"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "sessions" (
  "session_name" VARCHAR(255) NOT NULL,
  "dc_id" INT NOT NULL,
  "server_address" VARCHAR(255),
  "port" INT,
  "auth_key" %s,
  "takeout_id" BIGINT,
  "is_current" SMALLINT NOT NULL DEFAULT 0,
  CONSTRAINT pk_sessions PRIMARY KEY ("session_name", "dc_id")
)`, keyType),
		`CREATE TABLE IF NOT EXISTS "entities" (
  "session_name" VARCHAR(255) NOT NULL,
  "id" BIGINT NOT NULL,
  "hash" BIGINT NOT NULL,
  "username" VARCHAR(255),
  "phone" VARCHAR(255),
  "name" VARCHAR(255),
  "date" BIGINT,
  CONSTRAINT pk_entities PRIMARY KEY ("session_name", "id")
)`,
		`CREATE TABLE IF NOT EXISTS "update_state" (
  "session_name" VARCHAR(255) NOT NULL,
  "id" BIGINT NOT NULL,
  "pts" BIGINT,
  "qts" BIGINT,
  "date" BIGINT,
  "seq" BIGINT,
  CONSTRAINT pk_update_state PRIMARY KEY ("session_name", "id")
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "sent_files" (
  "session_name" VARCHAR(255) NOT NULL,
  "md5_digest" %s NOT NULL,
  "file_size" BIGINT NOT NULL,
  "type" INT NOT NULL,
  "id" BIGINT NOT NULL,
  "hash" BIGINT NOT NULL,
  CONSTRAINT pk_sent_files PRIMARY KEY ("session_name", "md5_digest", "file_size", "type")
)`, digestType),
		`CREATE TABLE IF NOT EXISTS "schema_version" (
  "version" INT NOT NULL,
  CONSTRAINT pk_schema_version PRIMARY KEY ("version")
)`,
	}
}

func schemaIndexStatements() []string {
	return []string{
		`CREATE INDEX idx_entities_username ON "entities" ("session_name", "username")`,
		`CREATE INDEX idx_entities_phone ON "entities" ("session_name", "phone")`,
	}
}

// indexExists reports whether err tells that an index of the same name is already there.
func indexExists(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1061
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07"
	}

	return strings.Contains(err.Error(), "already exists")
}

// hasTable reports whether the named table exists in the connected database.
func hasTable(ctx context.Context, db *database.DB, table string) (bool, error) {
	var query string
	switch db.Dialect() {
	case database.SQLite:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	case database.PostgreSQL:
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	default:
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	}

	var count int
	if err := db.QueryRowxContext(ctx, db.Rebind(query), table).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "can't check for table %q", table)
	}

	return count > 0, nil
}
