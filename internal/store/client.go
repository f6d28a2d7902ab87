// Package store publishes processor status to Redis and carries control
// requests back from clients.
//
// The processor writes a full snapshot of its status blocks on every publish
// interval, with a TTL so a dead processor's status ages out. Clients read the
// snapshot (the Client satisfies distributor.Source) and send clear and
// control requests over Pub/Sub.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/downlink/internal/distributor"
	"github.com/dyluth/downlink/pkg/status"
)

// Client provides instance-scoped Redis operations.
// All keys and channels are namespaced with the instance name.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a store client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// InstanceName returns the namespace this client writes to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishSnapshot replaces the stored snapshot and announces it on the
// snapshot events channel. A positive ttl makes the snapshot expire unless it
// is refreshed in time.
func (c *Client) PublishSnapshot(ctx context.Context, snap *Snapshot, ttl time.Duration) error {
	hash, err := SnapshotToHash(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key := SnapshotKey(c.instanceName)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w", err)
	}

	event, err := json.Marshal(SnapshotEvent{
		Session:     snap.Session,
		PublishedAt: snap.PublishedAt,
		Blocks:      len(snap.Blocks),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot event: %w", err)
	}

	if err := c.rdb.Publish(ctx, SnapshotEventsChannel(c.instanceName), event).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot event: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot.
// Returns (nil, redis.Nil) if none has been published or it expired.
func (c *Client) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	hash, err := c.rdb.HGetAll(ctx, SnapshotKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	snap, err := HashToSnapshot(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return snap, nil
}

// Snapshot implements distributor.Source. A missing snapshot or an unreachable
// server is reported as distributor.ErrUnavailable.
func (c *Client) Snapshot(ctx context.Context) ([]*status.Block, error) {
	snap, err := c.GetSnapshot(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: no snapshot for instance '%s'", distributor.ErrUnavailable, c.instanceName)
		}
		return nil, fmt.Errorf("%w: %v", distributor.ErrUnavailable, err)
	}
	return snap.Blocks, nil
}

// DeleteSnapshot removes the stored snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context) error {
	if err := c.rdb.Del(ctx, SnapshotKey(c.instanceName)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// SetControlState writes the processor's control facts.
func (c *Client) SetControlState(ctx context.Context, state *ControlState) error {
	key := ControlKey(c.instanceName)
	if err := c.rdb.HSet(ctx, key, ControlStateToHash(state)).Err(); err != nil {
		return fmt.Errorf("failed to write control state to Redis: %w", err)
	}
	return nil
}

// GetControlState reads the processor's control facts.
// Returns (nil, redis.Nil) if no processor has written them.
func (c *Client) GetControlState(ctx context.Context) (*ControlState, error) {
	hash, err := c.rdb.HGetAll(ctx, ControlKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read control state from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	state, err := HashToControlState(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize control state: %w", err)
	}
	return state, nil
}

// RequestClear publishes a clear request and returns how many subscribers
// received it. Zero means no processor is listening.
func (c *Client) RequestClear(ctx context.Context, req *ClearRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	return c.publishRequest(ctx, ClearRequestsChannel(c.instanceName), req, "clear request")
}

// RequestControl publishes an enable, disable or unload request and returns
// how many subscribers received it. Zero means no processor is listening.
func (c *Client) RequestControl(ctx context.Context, req *ControlRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	return c.publishRequest(ctx, ControlRequestsChannel(c.instanceName), req, "control request")
}

func (c *Client) publishRequest(ctx context.Context, channel string, req any, what string) (int64, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	n, err := c.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish %s: %w", what, err)
	}
	return n, nil
}

// Subscription is an active subscription to one kind of request.
// Caller must call Close() when done.
type Subscription[T any] struct {
	requests <-chan *T
	errors   <-chan error
	cancel   func()
	once     sync.Once
}

// ClearSubscription delivers clear requests.
type ClearSubscription = Subscription[ClearRequest]

// ControlSubscription delivers enable, disable and unload requests.
type ControlSubscription = Subscription[ControlRequest]

// Requests returns the channel of decoded requests. It is closed when the
// subscription ends.
func (s *Subscription[T]) Requests() <-chan *T {
	return s.requests
}

// Errors returns the channel of malformed-message errors. The subscription
// continues after errors.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeClearRequests subscribes to clear requests for this instance.
// The subscription is live when this returns.
func (c *Client) SubscribeClearRequests(ctx context.Context) (*ClearSubscription, error) {
	return subscribe[ClearRequest](ctx, c, ClearRequestsChannel(c.instanceName), "clear request")
}

// SubscribeControlRequests subscribes to control requests for this instance.
// The subscription is live when this returns.
func (c *Client) SubscribeControlRequests(ctx context.Context) (*ControlSubscription, error) {
	return subscribe[ControlRequest](ctx, c, ControlRequestsChannel(c.instanceName), "control request")
}

// subscribe decodes JSON requests from channel and validates each one.
func subscribe[T any, PT interface {
	*T
	Validate() error
}](ctx context.Context, c *Client, channel, what string) (*Subscription[T], error) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %ss: %w", what, err)
	}

	requestsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(requestsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				req := new(T)
				err := json.Unmarshal([]byte(msg.Payload), req)
				if err == nil {
					err = PT(req).Validate()
				}
				if err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to decode %s: %w", what, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case requestsChan <- req:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		requests: requestsChan,
		errors:   errorsChan,
		cancel:   cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
