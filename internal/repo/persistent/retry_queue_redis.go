package persistent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const idsKeySuffix = ":ids"

// KEYS[1] list, KEYS[2] id set; ARGV[1] id, ARGV[2] payload.
var enqueueScript = goredis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// KEYS[1] list, KEYS[2] id set. The id leaves the set together with the pop
// so a failed delivery can be enqueued again.
var dequeueScript = goredis.NewScript(`
local payload = redis.call('LPOP', KEYS[1])
if not payload then
	return false
end
local ok, doc = pcall(cjson.decode, payload)
if ok and type(doc) == 'table' and doc['id'] then
	redis.call('SREM', KEYS[2], doc['id'])
end
return payload
`)

// RetryQueue keeps snapshots in a Redis list with a companion id set. When
// Redis is missing or failing the call is served by an in-memory queue with
// the same semantics.
type RetryQueue struct {
	client  goredis.UniversalClient
	listKey string
	idsKey  string

	fallback *memoryQueue
	degraded atomic.Bool

	logger logger.Interface
}

// NewRetryQueue -. client may be nil, in which case the queue is memory-only.
// queueKey is hash-tagged so the list and the id set share a cluster slot.
func NewRetryQueue(client goredis.UniversalClient, queueKey string, l logger.Interface) *RetryQueue {
	listKey := hashTag(queueKey)

	return &RetryQueue{
		client:   client,
		listKey:  listKey,
		idsKey:   listKey + idsKeySuffix,
		fallback: newMemoryQueue(),
		logger:   l,
	}
}

func (q *RetryQueue) Enqueue(ctx context.Context, snapshot entity.OrderSnapshot) {
	id := snapshot.ID.String()

	payload, err := snapshot.Marshal()
	if err != nil {
		q.logger.Error(err, "RetryQueue - Enqueue - snapshot.Marshal")

		return
	}

	// an id parked in memory during an outage still counts as queued
	if q.fallback.contains(id) {
		return
	}

	if q.client != nil {
		added, err := enqueueScript.Run(ctx, q.client, []string{q.listKey, q.idsKey}, id, payload).Int()
		if err == nil {
			q.markHealthy()
			if added == 0 {
				q.logger.Debug("RetryQueue - Enqueue - id=%s already queued", id)
			}

			return
		}

		q.markDegraded(err, "Enqueue")
	}

	if !q.fallback.push(id, payload) {
		q.logger.Debug("RetryQueue - Enqueue - id=%s already queued in memory", id)
	}
}

func (q *RetryQueue) Dequeue(ctx context.Context) (entity.OrderSnapshot, bool) {
	if q.client != nil {
		payload, err := dequeueScript.Run(ctx, q.client, []string{q.listKey, q.idsKey}).Text()
		switch {
		case err == nil:
			q.markHealthy()

			return q.decode([]byte(payload))
		case errors.Is(err, goredis.Nil):
			q.markHealthy()
		default:
			q.markDegraded(err, "Dequeue")
		}
	}

	payload, ok := q.fallback.pop()
	if !ok {
		return entity.OrderSnapshot{}, false
	}

	return q.decode(payload)
}

// Len reports queued entries across Redis and the fallback.
func (q *RetryQueue) Len(ctx context.Context) int64 {
	n := int64(q.fallback.len())

	if q.client != nil {
		l, err := q.client.LLen(ctx, q.listKey).Result()
		if err == nil {
			n += l
		}
	}

	return n
}

func (q *RetryQueue) decode(payload []byte) (entity.OrderSnapshot, bool) {
	snapshot, err := entity.UnmarshalSnapshot(payload)
	if err != nil {
		q.logger.Warn("RetryQueue - dropping undecodable entry: %v", err)

		return entity.OrderSnapshot{}, false
	}

	return snapshot, true
}

func (q *RetryQueue) markDegraded(err error, op string) {
	if q.degraded.CompareAndSwap(false, true) {
		q.logger.Warn("RetryQueue - %s - redis unavailable, using in-memory queue: %v", op, err)
		metrics.QueueDegraded.Set(1)

		return
	}

	q.logger.Debug("RetryQueue - %s - still degraded: %v", op, err)
}

func (q *RetryQueue) markHealthy() {
	if q.degraded.CompareAndSwap(true, false) {
		q.logger.Info("RetryQueue - redis reachable again")
		metrics.QueueDegraded.Set(0)
	}
}

// hashTag wraps key in {} unless it already carries a hash tag.
func hashTag(key string) string {
	open := strings.IndexByte(key, '{')
	if open >= 0 {
		if end := strings.IndexByte(key[open+1:], '}'); end > 0 {
			return key
		}
	}

	return "{" + key + "}"
}
