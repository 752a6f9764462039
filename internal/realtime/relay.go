package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisRelay mirrors broadcasts across API instances over Redis Pub/Sub.
// Each instance skips envelopes it published itself.
type RedisRelay struct {
	rdb      *redis.Client
	channel  string
	instance string
	logger   *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

func (r *RedisRelay) Publish(ctx context.Context, room string, frame []byte) error {
	var head struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(frame, &head)

	body, err := json.Marshal(relayEnvelope{
		Origin: r.instance,
		Room:   room,
		Event:  head.Event,
		Frame:  frame,
	})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run delivers envelopes from other instances into hub until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("Broadcast relay subscribed",
		zap.String("channel", r.channel),
		zap.String("instance", r.instance),
	)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("Dropping malformed relay message", zap.Error(err))
				continue
			}
			if env.Origin == r.instance {
				continue
			}
			hub.Deliver(env.Room, env.Event, env.Frame)
		}
	}
}
