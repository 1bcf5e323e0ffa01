package sessionstore

import (
	"fmt"
	"github.com/sessiondb/sessiondb/pkg/database"
	"github.com/sessiondb/sessiondb/pkg/types"
)

// FileType tags the kind of a cached sent file.
type FileType int32

// Sent-file type tags, fixed by the reference session format.
const (
	FileDocument FileType = 0
	FilePhoto    FileType = 1
)

// SessionScope is the named WHERE scope selecting all rows of one session.
type SessionScope struct {
	SessionName string `db:"session_name"`
}

// SessionRecord is one data-center row of a session, holding the address and
// authorization key material for that data-center. At most one record per
// session is flagged current, maintained by Store#SetDC.
type SessionRecord struct {
	SessionName   string
	DcId          int
	ServerAddress string
	Port          int
	AuthKey       types.Binary
	TakeoutId     types.Int
	Current       types.Bool `db:"is_current"`
}

// ID implements the database.IDer interface.
func (r *SessionRecord) ID() database.ID {
	return database.StringID(fmt.Sprintf("%s|%d", r.SessionName, r.DcId))
}

// TableName implements the database.TableNamer interface.
func (r *SessionRecord) TableName() string {
	return "sessions"
}

// Conflict implements the database.Conflicter interface.
func (r *SessionRecord) Conflict() []string {
	return []string{"session_name", "dc_id"}
}

// Upsert implements the database.Upserter interface.
// Auth key and takeout id of an existing record survive a data-center switch.
func (r *SessionRecord) Upsert() any {
	return &sessionRecordUpsert{}
}

type sessionRecordUpsert struct {
	ServerAddress string
	Port          int
	Current       types.Bool `db:"is_current"`
}

// Entity is one cached protocol peer (user, chat or channel) of a session,
// identified by its id and resolvable through its access hash.
// Username, phone and name are secondary lookup keys.
type Entity struct {
	SessionName string
	Id          int64
	Hash        int64
	Username    types.String
	Phone       types.String
	Name        types.String
	Date        types.Int
}

// ID implements the database.IDer interface.
func (e *Entity) ID() database.ID {
	return database.StringID(fmt.Sprintf("%s|%d", e.SessionName, e.Id))
}

// TableName implements the database.TableNamer interface.
func (e *Entity) TableName() string {
	return "entities"
}

// Conflict implements the database.Conflicter interface.
func (e *Entity) Conflict() []string {
	return []string{"session_name", "id"}
}

// Upsert implements the database.Upserter interface.
func (e *Entity) Upsert() any {
	return &entityUpsert{}
}

type entityUpsert struct {
	Hash     int64
	Username types.String
	Phone    types.String
	Name     types.String
	Date     types.Int
}

// UpdateState is the persisted update cursor of a session for one state id.
// Id 0 is the account-wide state, channel ids carry their own cursors.
type UpdateState struct {
	SessionName string
	Id          int64
	Pts         types.Int
	Qts         types.Int
	Date        types.Int
	Seq         types.Int
}

// ID implements the database.IDer interface.
func (u *UpdateState) ID() database.ID {
	return database.StringID(fmt.Sprintf("%s|%d", u.SessionName, u.Id))
}

// TableName implements the database.TableNamer interface.
func (u *UpdateState) TableName() string {
	return "update_state"
}

// Conflict implements the database.Conflicter interface.
func (u *UpdateState) Conflict() []string {
	return []string{"session_name", "id"}
}

// Upsert implements the database.Upserter interface.
func (u *UpdateState) Upsert() any {
	return &updateStateUpsert{}
}

type updateStateUpsert struct {
	Pts  types.Int
	Qts  types.Int
	Date types.Int
	Seq  types.Int
}

// SentFile maps the content fingerprint (md5 + size) and type of a previously
// uploaded file to the remote handle (id + access hash) it can be resent with.
type SentFile struct {
	SessionName string
	Md5Digest   types.Binary `db:"md5_digest"`
	FileSize    int64
	Type        FileType
	Id          int64
	Hash        int64
}

// ID implements the database.IDer interface.
func (f *SentFile) ID() database.ID {
	return database.StringID(fmt.Sprintf("%s|%s|%d|%d", f.SessionName, f.Md5Digest, f.FileSize, f.Type))
}

// TableName implements the database.TableNamer interface.
func (f *SentFile) TableName() string {
	return "sent_files"
}

// Conflict implements the database.Conflicter interface.
func (f *SentFile) Conflict() []string {
	return []string{"session_name", "md5_digest", "file_size", "type"}
}

// Upsert implements the database.Upserter interface.
func (f *SentFile) Upsert() any {
	return &sentFileUpsert{}
}

type sentFileUpsert struct {
	Id   int64
	Hash int64
}

// Assert interface compliance.
var (
	_ database.Entity     = (*SessionRecord)(nil)
	_ database.Upserter   = (*SessionRecord)(nil)
	_ database.Conflicter = (*SessionRecord)(nil)
	_ database.Entity     = (*Entity)(nil)
	_ database.Upserter   = (*Entity)(nil)
	_ database.Conflicter = (*Entity)(nil)
	_ database.Entity     = (*UpdateState)(nil)
	_ database.Upserter   = (*UpdateState)(nil)
	_ database.Conflicter = (*UpdateState)(nil)
	_ database.Entity     = (*SentFile)(nil)
	_ database.Upserter   = (*SentFile)(nil)
	_ database.Conflicter = (*SentFile)(nil)
)
