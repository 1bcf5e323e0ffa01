package sessionstore

import (
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/utils"
)

// ErrConflict is reported when a write lost a race against a concurrent
// transaction on the same session, e.g. two clients switching the current
// data-center at once. The store state is still consistent and the caller
// may simply retry.
var ErrConflict = errors.New("conflicting concurrent session write")

// IsConflict reports whether err stems from a concurrent write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// conflictOr maps database serialization failures onto ErrConflict,
// any other error is passed through wrapped with msg.
func conflictOr(err error, msg string) error {
	if utils.IsDeadlock(err) {
		return errors.WithMessage(ErrConflict, msg)
	}

	return errors.Wrap(err, msg)
}
