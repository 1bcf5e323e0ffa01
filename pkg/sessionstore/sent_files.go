package sessionstore

import (
	"context"
	"database/sql"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/types"
)

// File returns the cached remote handle of a previously uploaded file,
// matched by its md5 digest, size and type, or nil on a cache miss.
func (s *Store) File(ctx context.Context, md5Digest []byte, fileSize int64, fileType FileType) (*SentFile, error) {
	file := &SentFile{}
	query := s.db.Rebind(
		s.db.BuildSelectStmt(file, file) +
			` WHERE "session_name" = ? AND "md5_digest" = ? AND "file_size" = ? AND "type" = ?`,
	)

	err := s.db.QueryRowxContext(ctx, query, s.name, types.Binary(md5Digest), fileSize, fileType).StructScan(file)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query sent file")
	}

	return file, nil
}

// CacheFile remembers the remote handle (id and access hash) an uploaded
// file got, so a later upload of the same content can skip the transfer.
// Re-caching the same content overwrites the stored handle.
func (s *Store) CacheFile(ctx context.Context, md5Digest []byte, fileSize int64, fileType FileType, id, hash int64) error {
	if len(md5Digest) == 0 {
		return errors.New("md5 digest must not be empty")
	}

	stmt, _ := s.db.BuildUpsertStmt(&SentFile{})
	_, err := s.db.NamedExecContext(ctx, stmt, &SentFile{
		SessionName: s.name,
		Md5Digest:   md5Digest,
		FileSize:    fileSize,
		Type:        fileType,
		Id:          id,
		Hash:        hash,
	})
	if err != nil {
		return conflictOr(err, "can't cache sent file")
	}

	return nil
}
