package retry

import (
	"context"
	"database/sql/driver"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/backoff"
	"io"
	"net"
	"syscall"
	"time"
)

// RetryableFunc is a retryable function.
type RetryableFunc func(context.Context) error

// IsRetryable checks whether a new attempt can be started based on the error passed.
type IsRetryable func(error) bool

// Settings aggregates optional settings for WithBackoff.
type Settings struct {
	// Timeout, if positive, caps the total time WithBackoff keeps trying.
	// The deadline only takes effect between attempts,
	// a running attempt is never interrupted by it.
	Timeout time.Duration
	// OnError is called after each failed attempt with the time elapsed since the first attempt,
	// the zero-based attempt number, the current and the previous error.
	OnError func(elapsed time.Duration, attempt uint64, err, lastErr error)
	// OnSuccess is called once a retried attempt succeeded with the time elapsed,
	// the zero-based attempt number and the previous error.
	OnSuccess func(elapsed time.Duration, attempt uint64, lastErr error)
}

// WithBackoff retries the passed function if it fails and the error allows it to retry.
// The specified backoff policy is used to determine how long to sleep between attempts.
func WithBackoff(
	ctx context.Context, retryableFunc RetryableFunc, retryable IsRetryable, b backoff.Backoff, settings Settings,
) (err error) {
	// Deadline channel for the configured timeout.
	// nil if no timeout is configured, which blocks forever.
	var timeout <-chan time.Time

	if settings.Timeout > 0 {
		t := time.NewTimer(settings.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	start := time.Now()
	for attempt := uint64(0); ; /* true */ attempt++ {
		prevErr := err

		if err = retryableFunc(ctx); err == nil {
			if attempt > 0 && settings.OnSuccess != nil {
				settings.OnSuccess(time.Since(start), attempt, prevErr)
			}

			return
		}

		// Prefer the more informative previous error over the current one
		// if the context has been canceled meanwhile.
		if prevErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			err = prevErr
		}

		if !retryable(err) {
			err = errors.Wrap(err, "can't retry")

			return
		}

		if settings.OnError != nil {
			settings.OnError(time.Since(start), attempt, err, prevErr)
		}

		select {
		case <-timeout:
			err = errors.Wrap(err, "retry deadline exceeded")

			return
		case <-ctx.Done():
			err = errors.Wrap(err, ctx.Err().Error())

			return
		case <-time.After(b(attempt)):
			// Wait between attempts.
		}
	}
}

// Retryable returns true for errors that are considered transient,
// i.e. temporary and timeout network errors, broken connections and
// database errors signaling shutdown, lock timeouts or rolled back transactions.
func Retryable(err error) bool {
	var temporary interface {
		Temporary() bool
	}
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	var timeout interface {
		Timeout() bool
	}
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var dnsError *net.DNSError
	if errors.As(err, &dnsError) {
		return true
	}

	var opError *net.OpError
	if errors.As(err, &opError) {
		// OpError#Temporary() and #Timeout() do not consult wrapped errors.
		return Retryable(opError.Err)
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, syscall.EHOSTDOWN) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.EAGAIN) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}

	var mye *mysql.MySQLError
	if errors.As(err, &mye) {
		switch mye.Number {
		case 1053, 1205, 1213, 2006:
			// Server shutdown in progress, lock wait timeout,
			// deadlock found, server has gone away.
			return true
		}

		return false
	}

	var pqe *pq.Error
	if errors.As(err, &pqe) {
		switch pqe.Code.Class() {
		case "08", // connection exception
			"40", // transaction rollback
			"57": // operator intervention
			return true
		}

		return false
	}

	return false
}
