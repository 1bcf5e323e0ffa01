package sessionstore

import (
	"context"
	"database/sql"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/types"
)

// authKeyUpdate upserts only the auth key of one data-center record,
// leaving address, port and flags of an existing row untouched.
type authKeyUpdate struct {
	SessionName string
	DcId        int
	AuthKey     types.Binary
}

func (u *authKeyUpdate) TableName() string {
	return "sessions"
}

func (u *authKeyUpdate) Conflict() []string {
	return []string{"session_name", "dc_id"}
}

func (u *authKeyUpdate) Upsert() any {
	return &struct {
		AuthKey types.Binary
	}{}
}

// CurrentDC returns the record of the session's current data-center,
// or nil if the session has none yet.
func (s *Store) CurrentDC(ctx context.Context) (*SessionRecord, error) {
	record := &SessionRecord{}
	query := s.db.BuildSelectStmt(record, record) + ` WHERE "session_name" = ? AND "is_current" = 1`

	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), s.name).StructScan(record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query current data-center")
	}

	return record, nil
}

// SetDC switches the session to the given data-center, atomically clearing
// the current flag of any other record. The auth key and takeout id already
// stored for dcId survive the switch. Concurrent switches of the same
// session may fail with ErrConflict.
func (s *Store) SetDC(ctx context.Context, dcId int, serverAddress string, port int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	demote := tx.Rebind(
		`UPDATE "sessions" SET "is_current" = 0 WHERE "session_name" = ? AND "is_current" = 1 AND "dc_id" <> ?`,
	)
	if _, err := tx.ExecContext(ctx, demote, s.name, dcId); err != nil {
		return conflictOr(err, "can't clear current data-center")
	}

	stmt, _ := s.db.BuildUpsertStmt(&SessionRecord{})
	_, err = tx.NamedExecContext(ctx, stmt, &SessionRecord{
		SessionName:   s.name,
		DcId:          dcId,
		ServerAddress: serverAddress,
		Port:          port,
		Current:       types.Yes,
	})
	if err != nil {
		return conflictOr(err, "can't switch data-center")
	}

	if err := tx.Commit(); err != nil {
		return conflictOr(err, "can't commit data-center switch")
	}

	return nil
}

// AuthKey returns the auth key stored for the given data-center,
// or nil if there is none.
func (s *Store) AuthKey(ctx context.Context, dcId int) (types.Binary, error) {
	var key types.Binary
	query := s.db.Rebind(`SELECT "auth_key" FROM "sessions" WHERE "session_name" = ? AND "dc_id" = ?`)

	err := s.db.QueryRowxContext(ctx, query, s.name, dcId).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query auth key")
	}

	return key, nil
}

// SetAuthKey stores the auth key for the given data-center, creating the
// record if the session has never connected to that data-center.
// A nil key erases the stored key.
func (s *Store) SetAuthKey(ctx context.Context, dcId int, key types.Binary) error {
	stmt, _ := s.db.BuildUpsertStmt(&authKeyUpdate{})
	_, err := s.db.NamedExecContext(ctx, stmt, &authKeyUpdate{
		SessionName: s.name,
		DcId:        dcId,
		AuthKey:     key,
	})
	if err != nil {
		return conflictOr(err, "can't store auth key")
	}

	return nil
}

// TakeoutID returns the takeout id attached to the current data-center
// record. Its Valid field is false if none is attached.
func (s *Store) TakeoutID(ctx context.Context) (types.Int, error) {
	var id types.Int
	query := s.db.Rebind(`SELECT "takeout_id" FROM "sessions" WHERE "session_name" = ? AND "is_current" = 1`)

	err := s.db.QueryRowxContext(ctx, query, s.name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Int{}, nil
	} else if err != nil {
		return types.Int{}, errors.Wrap(err, "can't query takeout id")
	}

	return id, nil
}

// SetTakeoutID attaches a takeout id to the current data-center record.
// An invalid id detaches it. Without a current record there is nothing to
// attach to and SetTakeoutID fails.
func (s *Store) SetTakeoutID(ctx context.Context, id types.Int) error {
	query := s.db.Rebind(`UPDATE "sessions" SET "takeout_id" = ? WHERE "session_name" = ? AND "is_current" = 1`)

	res, err := s.db.ExecContext(ctx, query, id, s.name)
	if err != nil {
		return conflictOr(err, "can't store takeout id")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("session has no current data-center")
	}

	return nil
}

// Delete removes all rows of the session, leaving the schema and all
// other sessions in place.
func (s *Store) Delete(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"sent_files", "update_state", "entities", "sessions"} {
		stmt := tx.Rebind(`DELETE FROM "` + table + `" WHERE "session_name" = ?`)
		if _, err := tx.ExecContext(ctx, stmt, s.name); err != nil {
			return conflictOr(err, "can't delete session rows")
		}
	}

	if err := tx.Commit(); err != nil {
		return conflictOr(err, "can't commit session deletion")
	}

	return nil
}
