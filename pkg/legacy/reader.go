// Package legacy reads single-file SQLite session files of the classic
// one-file-per-session layout and imports them into a shared session
// database. The files are only ever opened read-only.
package legacy

import (
	"context"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/strcase"
	"github.com/sessiondb/sessiondb/pkg/types"
	"os"

	_ "modernc.org/sqlite"
)

// MaxFileVersion is the newest single-file schema version this reader
// understands. Files stamped with a higher version are rejected.
const MaxFileVersion = 7

// Session is the connection row of a legacy file.
type Session struct {
	DcId          int          `db:"dc_id"`
	ServerAddress types.String `db:"server_address"`
	Port          types.Int    `db:"port"`
	AuthKey       types.Binary `db:"auth_key"`
	TakeoutId     types.Int    `db:"takeout_id"`
}

// Entity is one cached peer row of a legacy file.
type Entity struct {
	Id       int64        `db:"id"`
	Hash     int64        `db:"hash"`
	Username types.String `db:"username"`
	Phone    types.String `db:"phone"`
	Name     types.String `db:"name"`
	Date     types.Int    `db:"date"`
}

// UpdateState is one update cursor row of a legacy file.
type UpdateState struct {
	Id   int64     `db:"id"`
	Pts  types.Int `db:"pts"`
	Qts  types.Int `db:"qts"`
	Date types.Int `db:"date"`
	Seq  types.Int `db:"seq"`
}

// SentFile is one sent-file cache row of a legacy file.
type SentFile struct {
	Md5Digest types.Binary `db:"md5_digest"`
	FileSize  int64        `db:"file_size"`
	Type      int32        `db:"type"`
	Id        int64        `db:"id"`
	Hash      int64        `db:"hash"`
}

// File is the complete readable content of one legacy session file.
// Fields of tables the file doesn't have remain empty, old files
// predate some of the tables.
type File struct {
	Version      int
	Session      *Session
	Entities     []Entity
	UpdateStates []UpdateState
	SentFiles    []SentFile
}

// ReadFile reads the legacy session file at path.
// The file is opened read-only and is never modified.
func ReadFile(ctx context.Context, path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "can't access legacy session file")
	}

	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(err, "can't open legacy session file")
	}
	defer func() { _ = db.Close() }()

	db.Mapper = reflectx.NewMapperFunc("db", strcase.Snake)

	file := &File{Version: MaxFileVersion}

	if ok, err := hasLegacyTable(ctx, db, "version"); err != nil {
		return nil, err
	} else if ok {
		err := db.QueryRowxContext(ctx, `SELECT version FROM version LIMIT 1`).Scan(&file.Version)
		if err != nil {
			return nil, errors.Wrap(err, "can't read legacy file version")
		}
		if file.Version > MaxFileVersion {
			return nil, errors.Errorf(
				"legacy session file version %d is newer than the supported %d", file.Version, MaxFileVersion,
			)
		}
	}

	if ok, err := hasLegacyTable(ctx, db, "sessions"); err != nil {
		return nil, err
	} else if ok {
		sessions := make([]Session, 0, 1)
		err := db.SelectContext(ctx, &sessions, `SELECT * FROM sessions ORDER BY dc_id LIMIT 1`)
		if err != nil {
			return nil, errors.Wrap(err, "can't read legacy session row")
		}
		if len(sessions) > 0 {
			file.Session = &sessions[0]
		}
	}

	if ok, err := hasLegacyTable(ctx, db, "entities"); err != nil {
		return nil, err
	} else if ok {
		err := db.SelectContext(ctx, &file.Entities, `SELECT * FROM entities`)
		if err != nil {
			return nil, errors.Wrap(err, "can't read legacy entities")
		}
	}

	if ok, err := hasLegacyTable(ctx, db, "update_state"); err != nil {
		return nil, err
	} else if ok {
		err := db.SelectContext(ctx, &file.UpdateStates, `SELECT * FROM update_state`)
		if err != nil {
			return nil, errors.Wrap(err, "can't read legacy update state")
		}
	}

	if ok, err := hasLegacyTable(ctx, db, "sent_files"); err != nil {
		return nil, err
	} else if ok {
		err := db.SelectContext(ctx, &file.SentFiles, `SELECT * FROM sent_files`)
		if err != nil {
			return nil, errors.Wrap(err, "can't read legacy sent files")
		}
	}

	return file, nil
}

// hasLegacyTable reports whether the legacy file contains the named table.
// Very old files lack some of them, that is not an error.
func hasLegacyTable(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	var count int
	err := db.QueryRowxContext(
		ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "can't read legacy session file")
	}

	return count > 0, nil
}
