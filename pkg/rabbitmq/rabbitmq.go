package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = 5 * time.Second
	_defaultGracePeriod  = 5 * time.Second
	_defaultProbeTimeout = 3 * time.Second
	_defaultPort         = "5672"
)

type Connection struct {
	connAttempts int
	connTimeout  time.Duration
	gracePeriod  time.Duration
	probeTimeout time.Duration

	url string

	Conn *amqp.Connection
}

// New waits the grace period and then dials until an attempt succeeds or
// the attempts run out. Every attempt resolves the host and probes the TCP
// port before the AMQP handshake so failures say which step broke.
func New(ctx context.Context, rawURL string, opts ...Option) (*Connection, error) {
	c := &Connection{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		gracePeriod:  _defaultGracePeriod,
		probeTimeout: _defaultProbeTimeout,
		url:          rawURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if !sleep(ctx, c.gracePeriod) {
		return nil, fmt.Errorf("RabbitMQ - New - grace period: %w", ctx.Err())
	}

	var err error

	for attempts := c.connAttempts; attempts > 0; attempts-- {
		c.Conn, err = Dial(ctx, c.url, c.probeTimeout)
		if err == nil {
			return c, nil
		}

		log.Printf("RabbitMQ is trying to connect, attempts left: %d, err: %v", attempts-1, err)

		if attempts > 1 && !sleep(ctx, c.connTimeout) {
			return nil, fmt.Errorf("RabbitMQ - New: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("RabbitMQ - New - connAttempts == 0: %w", err)
}

// Dial runs one resolve, probe and handshake sequence.
func Dial(ctx context.Context, rawURL string, probeTimeout time.Duration) (*amqp.Connection, error) {
	addr, err := hostPort(rawURL)
	if err != nil {
		return nil, &ConnectionError{Stage: StageResolve, Addr: "?", Err: err}
	}

	host, _, _ := net.SplitHostPort(addr)

	resolveCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := net.DefaultResolver.LookupHost(resolveCtx, host); err != nil {
		return nil, &ConnectionError{Stage: StageResolve, Addr: addr, Err: err}
	}

	dialer := net.Dialer{Timeout: probeTimeout}

	probe, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Stage: StageProbe, Addr: addr, Err: err}
	}
	_ = probe.Close()

	conn, err := amqp.DialConfig(rawURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(probeTimeout),
	})
	if err != nil {
		return nil, &ConnectionError{Stage: StageHandshake, Addr: addr, Err: err}
	}

	return conn, nil
}

// Declarer is the part of *amqp.Channel that declares topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology declares the durable topic exchange and, when queue is not
// empty, a durable queue bound to it with routingKey.
func DeclareTopology(ch Declarer, exchange, queue, routingKey string) error {
	err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		return &ConnectionError{Stage: StageTopology, Addr: exchange, Err: err}
	}

	if queue == "" {
		return nil
	}

	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return &ConnectionError{Stage: StageTopology, Addr: queue, Err: err}
	}

	err = ch.QueueBind(queue, routingKey, exchange, false, nil)
	if err != nil {
		return &ConnectionError{Stage: StageTopology, Addr: queue, Err: err}
	}

	return nil
}

func (c *Connection) Close() error {
	if c.Conn != nil && !c.Conn.IsClosed() {
		return c.Conn.Close()
	}

	return nil
}

func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse broker url: %w", err)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("broker url has no host")
	}

	port := u.Port()
	if port == "" {
		port = _defaultPort
		if u.Scheme == "amqps" {
			port = "5671"
		}
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
