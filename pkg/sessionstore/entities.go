package sessionstore

import (
	"context"
	"database/sql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/com"
	"github.com/sessiondb/sessiondb/pkg/database"
	"github.com/sessiondb/sessiondb/pkg/types"
	"github.com/sessiondb/sessiondb/pkg/utils"
	"go.uber.org/zap"
	"strconv"
	"strings"
	"time"
)

// Peer id offsets as used on the wire. A chat id is negated, a channel id
// is shifted below the chat range, users keep their plain id.
const channelIdOffset = int64(1000000000000)

// UpsertEntities consumes the stream of entities and writes them to the
// session's cache in bulk, newer rows replacing older ones with the same id.
// Entities are always stored under this store's session regardless of the
// SessionName the caller set. If a username just written was previously
// held by another entity of the session, the older holder loses it.
func (s *Store) UpsertEntities(ctx context.Context, entities <-chan *Entity) error {
	// Canceled on return, so a failed bulk write
	// releases the forwarding goroutines below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now().Unix()
	usernames := map[string]int64{}
	forward := make(chan database.Entity)

	go func() {
		defer close(forward)

		// Merge duplicate ids up front, the bulk writer executes its
		// chunks concurrently and must not see the same id twice.
		var order []int64
		latest := map[int64]*Entity{}

	read:
		for {
			select {
			case entity, ok := <-entities:
				if !ok {
					break read
				}

				entity.SessionName = s.name
				if !entity.Date.Valid {
					entity.Date = types.MakeInt(now)
				}
				if entity.Username.Valid {
					usernames[entity.Username.String] = entity.Id
				}

				if _, ok := latest[entity.Id]; !ok {
					order = append(order, entity.Id)
				}
				latest[entity.Id] = entity
			case <-ctx.Done():
				return
			}
		}

		for _, id := range order {
			select {
			case forward <- latest[id]:
			case <-ctx.Done():
				return
			}
		}
	}()

	var counter com.Counter
	if err := s.db.UpsertStreamed(ctx, forward, database.OnSuccessIncrement[database.Entity](&counter)); err != nil {
		return conflictOr(err, "can't upsert entities")
	}

	for username, keeper := range usernames {
		if err := s.releaseUsername(ctx, username, keeper); err != nil {
			return err
		}
	}

	s.logger.Debugw("Cached entities",
		zap.String("session", s.name), zap.Uint64("count", counter.Total()))

	return nil
}

// UpsertEntitySlice is UpsertEntities for a pre-built slice.
func (s *Store) UpsertEntitySlice(ctx context.Context, entities []*Entity) error {
	return s.UpsertEntities(ctx, utils.ChanFromSlice(entities))
}

// releaseUsername takes the username away from every entity of the session
// except the one identified by keeper.
func (s *Store) releaseUsername(ctx context.Context, username string, keeper int64) error {
	query := s.db.Rebind(
		`UPDATE "entities" SET "username" = NULL WHERE "session_name" = ? AND "username" = ? AND "id" <> ?`,
	)
	if _, err := s.db.ExecContext(ctx, query, s.name, username, keeper); err != nil {
		return conflictOr(err, "can't release username")
	}

	return nil
}

// EntityByID returns the cached entity with exactly the given id,
// or nil if the session never cached it.
func (s *Store) EntityByID(ctx context.Context, id int64) (*Entity, error) {
	return s.selectEntity(ctx, `"id" = ?`, id)
}

// EntityByUsername returns the cached entity currently holding the given
// username, or nil. Should several rows still hold it, the most recently
// dated one wins and the others are stripped of the username.
func (s *Store) EntityByUsername(ctx context.Context, username string) (*Entity, error) {
	entity := &Entity{}
	query := s.db.Rebind(
		s.db.BuildSelectStmt(entity, entity) +
			` WHERE "session_name" = ? AND "username" = ? ORDER BY "date" DESC LIMIT 1`,
	)

	err := s.db.QueryRowxContext(ctx, query, s.name, username).StructScan(entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query entity")
	}

	if err := s.releaseUsername(ctx, username, entity.Id); err != nil {
		return nil, err
	}

	return entity, nil
}

// EntityByPhone returns the cached entity with the given phone number, or nil.
func (s *Store) EntityByPhone(ctx context.Context, phone string) (*Entity, error) {
	return s.selectEntity(ctx, `"phone" = ?`, phone)
}

// EntityByName returns the cached entity with the given display name, or nil.
func (s *Store) EntityByName(ctx context.Context, name string) (*Entity, error) {
	return s.selectEntity(ctx, `"name" = ?`, name)
}

// LookupEntity resolves a free-form key the way a client resolves user
// input: a numeric key matches ids in all their marked forms, an @-prefixed
// or plain word matches usernames, a phone-shaped key matches phone numbers
// first. The display name is the last resort. Returns nil on no match.
func (s *Store) LookupEntity(ctx context.Context, key string) (*Entity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return s.entityByMarkedID(ctx, id)
	}

	if username, ok := strings.CutPrefix(key, "@"); ok {
		return s.EntityByUsername(ctx, strings.ToLower(username))
	}

	if phone := strings.TrimPrefix(key, "+"); phone != key || isDigits(phone) {
		if entity, err := s.EntityByPhone(ctx, phone); entity != nil || err != nil {
			return entity, err
		}
	}

	if entity, err := s.EntityByUsername(ctx, strings.ToLower(key)); entity != nil || err != nil {
		return entity, err
	}

	return s.EntityByName(ctx, key)
}

// entityByMarkedID matches id against the plain, chat-marked and
// channel-marked forms a peer id circulates in.
func (s *Store) entityByMarkedID(ctx context.Context, id int64) (*Entity, error) {
	candidates := []int64{id, -id, -channelIdOffset - id}

	query, args, err := sqlx.In(
		s.db.BuildSelectStmt(&Entity{}, &Entity{})+` WHERE "session_name" = ? AND "id" IN (?)`,
		s.name, candidates,
	)
	if err != nil {
		return nil, errors.Wrap(err, "can't expand id candidates")
	}

	entities := make([]*Entity, 0, 1)
	if err := s.db.SelectContext(ctx, &entities, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "can't query entity")
	}

	// Prefer the exact id over marked forms.
	for _, entity := range entities {
		if entity.Id == id {
			return entity, nil
		}
	}
	if len(entities) > 0 {
		return entities[0], nil
	}

	return nil, nil
}

func (s *Store) selectEntity(ctx context.Context, cond string, arg any) (*Entity, error) {
	entity := &Entity{}
	query := s.db.Rebind(s.db.BuildSelectStmt(entity, entity) + ` WHERE "session_name" = ? AND ` + cond)

	err := s.db.QueryRowxContext(ctx, query, s.name, arg).StructScan(entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query entity")
	}

	return entity, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
