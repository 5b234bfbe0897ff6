package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/anonqr/identity-service/internal/core/domain"
)

// Key layout:
//
//	user:<id>  JSON-encoded domain.User
//	users      sorted set of ids scored by creation time (unix nanos)
const (
	userKeyPrefix = "user:"
	indexKey      = "users"
)

// UserRepository keeps each record under its own key. Create writes the
// record and its index entry atomically through a Lua script.
type UserRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) *UserRepository {
	return &UserRepository{client: client}
}

// createScript stores the record and indexes it in one step, or does
// nothing when the key already exists.
//
//	KEYS[1] user key, KEYS[2] index; ARGV[1] JSON, ARGV[2] score, ARGV[3] id
var createScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX") then
  redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
  return 1
end
return 0
`)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	created, err := createScript.Run(ctx, r.client,
		[]string{r.key(user.ID), indexKey},
		raw, user.CreatedAt.UnixNano(), user.ID,
	).Int()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if created == 0 {
		return domain.ErrUserExists
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return decode(raw)
}

// Put overwrites an existing record only (SET XX).
func (r *UserRepository) Put(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	ok, err := r.client.SetXX(ctx, r.key(user.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) All(ctx context.Context) ([]*domain.User, error) {
	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	users := make([]*domain.User, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// indexed id whose record vanished
			continue
		}
		u, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *UserRepository) key(id string) string {
	return userKeyPrefix + id
}

func decode(raw []byte) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
