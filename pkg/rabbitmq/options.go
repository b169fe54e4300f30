package rabbitmq

import "time"

type Option func(*Connection)

func ConnAttempts(attempts int) Option {
	return func(c *Connection) {
		c.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *Connection) {
		c.connTimeout = timeout
	}
}

// GracePeriod delays the first attempt, giving a broker started alongside
// the service time to come up.
func GracePeriod(d time.Duration) Option {
	return func(c *Connection) {
		c.gracePeriod = d
	}
}

func ProbeTimeout(timeout time.Duration) Option {
	return func(c *Connection) {
		c.probeTimeout = timeout
	}
}
