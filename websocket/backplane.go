package websocket

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const backplaneChannel = "bloodlink:chat"

// backplaneEnvelope wraps a room frame with its origin instance so the
// publisher does not deliver its own frames twice.
type backplaneEnvelope struct {
	Origin string          `json:"origin"`
	RoomID string          `json:"room_id"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBackplane fans room frames out across router instances over a
// redis pub/sub channel. Each instance delivers to its local members;
// room membership itself stays process-local.
type RedisBackplane struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
}

func NewRedisBackplane(client *redis.Client, logger *zap.Logger) *RedisBackplane {
	return &RedisBackplane{
		client:     client,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

func (b *RedisBackplane) Publish(ctx context.Context, roomID string, frame []byte) error {
	env := backplaneEnvelope{
		Origin: b.instanceID,
		RoomID: roomID,
		Frame:  frame,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, backplaneChannel, raw).Err()
}

// Run subscribes to the shared channel and re-delivers frames from other
// instances until ctx is cancelled.
func (b *RedisBackplane) Run(ctx context.Context, deliver func(roomID string, frame []byte)) {
	pubsub := b.client.Subscribe(ctx, backplaneChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env backplaneEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("malformed backplane frame", zap.Error(err))
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			deliver(env.RoomID, env.Frame)
		}
	}
}
