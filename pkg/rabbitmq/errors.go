package rabbitmq

import (
	"errors"
	"fmt"
)

// Stage names the step of connection setup that failed.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageProbe     Stage = "probe"
	StageHandshake Stage = "handshake"
	StageChannel   Stage = "channel"
	StageTopology  Stage = "topology"
)

// ConnectionError is returned for any failure to reach the broker or to set
// up a channel on it. Callers retry on it instead of inspecting messages.
type ConnectionError struct {
	Stage Stage
	Addr  string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err carries a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError

	return errors.As(err, &ce)
}
