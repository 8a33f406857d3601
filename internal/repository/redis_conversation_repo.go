package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"edubot/internal/models"
)

const (
	redisUsersKey        = "edubot:users"
	redisConversationKey = "edubot:conversation:"
)

// storedMessage is the Redis encoding of a chat message.
type storedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisConversationRepo keeps each conversation in a list and tracks known
// users in a set, so a reset user stays known.
type RedisConversationRepo struct {
	client *redis.Client
}

var _ ConversationStore = (*RedisConversationRepo)(nil)

func NewRedisConversationRepo(client *redis.Client) *RedisConversationRepo {
	return &RedisConversationRepo{client: client}
}

func (r *RedisConversationRepo) Append(ctx context.Context, userID string, msgs ...models.ChatMessage) ([]models.ChatMessage, error) {
	now := time.Now()
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		data, err := json.Marshal(storedMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
		if err != nil {
			return nil, errors.Wrap(err, "encode message")
		}
		values = append(values, data)
	}

	key := redisConversationKey + userID
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, redisUsersKey, userID)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
	}
	rng := pipe.LRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "append conversation for %q", userID)
	}
	return decodeMessages(rng.Val())
}

func (r *RedisConversationRepo) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	known, err := r.client.SIsMember(ctx, redisUsersKey, userID).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "lookup user %q", userID)
	}
	if !known {
		return nil, ErrNotFound
	}

	raw, err := r.client.LRange(ctx, redisConversationKey+userID, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load conversation for %q", userID)
	}
	return decodeMessages(raw)
}

func (r *RedisConversationRepo) Reset(ctx context.Context, userID string) (bool, error) {
	known, err := r.client.SIsMember(ctx, redisUsersKey, userID).Result()
	if err != nil {
		return false, errors.Wrapf(err, "lookup user %q", userID)
	}
	if !known {
		return false, nil
	}
	if err := r.client.Del(ctx, redisConversationKey+userID).Err(); err != nil {
		return false, errors.Wrapf(err, "reset conversation for %q", userID)
	}
	return true, nil
}

func decodeMessages(raw []string) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0, len(raw))
	for _, s := range raw {
		var m storedMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, errors.Wrap(err, "decode stored message")
		}
		out = append(out, models.ChatMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out, nil
}
