package legacy

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/database"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"github.com/sessiondb/sessiondb/pkg/sessionstore"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"strings"
)

// Result is the per-file outcome of an import.
// A failed file leaves the target database untouched by counts,
// rows written before the failure may remain.
type Result struct {
	File         string
	SessionName  string
	Entities     int
	UpdateStates int
	SentFiles    int
	Err          error
}

// Failed reports whether the file could not be imported.
func (r Result) Failed() bool {
	return r.Err != nil
}

// SessionName derives the session name from a legacy file path,
// the base name with its .session suffix stripped.
func SessionName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".session")
	if name == "" {
		name = "default"
	}

	return name
}

// ListSessionFiles returns the .session files directly inside dir,
// sorted by name. Subdirectories are not descended into.
func ListSessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "can't read directory")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".session") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	return files, nil
}

// Importer copies legacy session files into a shared session database.
type Importer struct {
	db     *database.DB
	logger *logging.Logger
}

// NewImporter returns an Importer writing to db.
func NewImporter(db *database.DB, logger *logging.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// ImportFile imports a single legacy session file under the given session
// name, or under the name derived from the file name if name is empty.
// Importing the same file again overwrites what the first run wrote.
func (i *Importer) ImportFile(ctx context.Context, path, name string) Result {
	if name == "" {
		name = SessionName(path)
	}
	res := Result{File: path, SessionName: name}

	file, err := ReadFile(ctx, path)
	if err != nil {
		res.Err = err
		return res
	}

	store, err := sessionstore.Open(ctx, i.db, name, i.logger)
	if err != nil {
		res.Err = err
		return res
	}

	if file.Session != nil {
		res.Err = i.importSession(ctx, store, file.Session)
		if res.Err != nil {
			return res
		}
	}

	if len(file.Entities) > 0 {
		entities := make([]*sessionstore.Entity, 0, len(file.Entities))
		for _, e := range file.Entities {
			entity := &sessionstore.Entity{
				Id:    e.Id,
				Hash:  e.Hash,
				Phone: e.Phone,
				Name:  e.Name,
				Date:  e.Date,
			}
			if e.Username.Valid {
				// Legacy files may predate username normalization.
				entity.Username = e.Username
				entity.Username.String = strings.ToLower(entity.Username.String)
			}
			entities = append(entities, entity)
		}

		if res.Err = store.UpsertEntitySlice(ctx, entities); res.Err != nil {
			return res
		}
		res.Entities = len(entities)
	}

	for _, state := range file.UpdateStates {
		err := store.SetUpdateState(ctx, &sessionstore.UpdateState{
			Id:   state.Id,
			Pts:  state.Pts,
			Qts:  state.Qts,
			Date: state.Date,
			Seq:  state.Seq,
		})
		if err != nil {
			res.Err = err
			return res
		}
		res.UpdateStates++
	}

	for _, sent := range file.SentFiles {
		fileType := sessionstore.FileType(sent.Type)
		if fileType != sessionstore.FileDocument && fileType != sessionstore.FilePhoto {
			i.logger.Debugw("Skipping sent file of unknown type",
				zap.String("session", name), zap.Int32("type", sent.Type))
			continue
		}

		err := store.CacheFile(ctx, sent.Md5Digest, sent.FileSize, fileType, sent.Id, sent.Hash)
		if err != nil {
			res.Err = err
			return res
		}
		res.SentFiles++
	}

	return res
}

func (i *Importer) importSession(ctx context.Context, store *sessionstore.Store, session *Session) error {
	err := store.SetDC(ctx, session.DcId, session.ServerAddress.String, int(session.Port.Int64))
	if err != nil {
		return err
	}

	if session.AuthKey.Valid() {
		if err := store.SetAuthKey(ctx, session.DcId, session.AuthKey); err != nil {
			return err
		}
	}

	if session.TakeoutId.Valid {
		if err := store.SetTakeoutID(ctx, session.TakeoutId); err != nil {
			return err
		}
	}

	return nil
}

// ImportFiles imports the given legacy files one after another. A failing
// file doesn't stop the batch. onFile, if non-nil, observes every Result
// as it is produced.
func (i *Importer) ImportFiles(ctx context.Context, files []string, onFile func(Result)) []Result {
	results := make([]Result, 0, len(files))

	for _, path := range files {
		res := i.ImportFile(ctx, path, "")
		if res.Failed() {
			i.logger.Warnw("Can't import legacy session file",
				zap.String("file", res.File), zap.Error(res.Err))
		} else {
			i.logger.Infow("Imported legacy session file",
				zap.String("file", res.File),
				zap.String("session", res.SessionName),
				zap.Int("entities", res.Entities),
				zap.Int("update_states", res.UpdateStates),
				zap.Int("sent_files", res.SentFiles))
		}

		results = append(results, res)
		if onFile != nil {
			onFile(res)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return results
}

// ImportDirectory imports every .session file directly inside dir,
// see ImportFiles.
func (i *Importer) ImportDirectory(ctx context.Context, dir string, onFile func(Result)) ([]Result, error) {
	files, err := ListSessionFiles(dir)
	if err != nil {
		return nil, err
	}

	return i.ImportFiles(ctx, files, onFile), nil
}
