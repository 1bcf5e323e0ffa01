package driver

import (
	"context"
	"database/sql/driver"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
	"time"
)

// refusingConnector fails every connection attempt and counts them.
type refusingConnector struct {
	attempts int
	err      error
}

func (c *refusingConnector) Connect(context.Context) (driver.Conn, error) {
	c.attempts++
	return nil, c.err
}

func (c *refusingConnector) Driver() driver.Driver {
	return nil
}

func TestConnectorSurfacesConnectError(t *testing.T) {
	refused := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	refusing := &refusingConnector{err: refused}

	c := Connector{
		Connector: refusing,
		driver: Driver{
			Logger: logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second),
		},
	}

	conn, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Nil(t, conn)

	// An unreachable engine fails the first attempt, no internal retrying.
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 1, refusing.attempts)
}
