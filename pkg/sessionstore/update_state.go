package sessionstore

import (
	"context"
	"database/sql"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/database"
	"sort"
)

// UpdateState returns the stored update cursor for the given state id,
// or nil if the session holds none.
func (s *Store) UpdateState(ctx context.Context, id int64) (*UpdateState, error) {
	state := &UpdateState{}
	query := s.db.Rebind(s.db.BuildSelectStmt(state, state) + ` WHERE "session_name" = ? AND "id" = ?`)

	err := s.db.QueryRowxContext(ctx, query, s.name, id).StructScan(state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "can't query update state")
	}

	return state, nil
}

// SetUpdateState overwrites the update cursor for state.Id with all of
// state's fields, creating the row if needed.
func (s *Store) SetUpdateState(ctx context.Context, state *UpdateState) error {
	state.SessionName = s.name

	stmt, _ := s.db.BuildUpsertStmt(state)
	if _, err := s.db.NamedExecContext(ctx, stmt, state); err != nil {
		return conflictOr(err, "can't store update state")
	}

	return nil
}

// UpdateStates returns all update cursors of the session ordered by state id.
func (s *Store) UpdateStates(ctx context.Context) ([]*UpdateState, error) {
	query := s.db.BuildSelectStmt(&UpdateState{}, &UpdateState{}) + ` WHERE "session_name" = :session_name`

	entities, errs := s.db.YieldAll(ctx, func() database.Entity { return &UpdateState{} }, query, s.scope())

	states := make([]*UpdateState, 0)
	for entity := range entities {
		states = append(states, entity.(*UpdateState))
	}
	if err := <-errs; err != nil {
		return nil, errors.Wrap(err, "can't enumerate update states")
	}

	sort.Slice(states, func(i, j int) bool { return states[i].Id < states[j].Id })

	return states, nil
}
