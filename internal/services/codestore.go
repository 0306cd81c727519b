package services

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/utils"

	"github.com/redis/go-redis/v9"
)

const (
	CodePurposeRegister = "register"
	CodePurposeReset    = "reset"

	CodeTTL = 10 * time.Minute
)

// CodeStore keeps one-time email codes keyed by purpose and address.
type CodeStore interface {
	Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error
	// Consume reports whether code matches and deletes it on success.
	Consume(ctx context.Context, purpose, email, code string) (bool, error)
}

func codeKey(purpose, email string) string {
	return "inkwell:code:" + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
}

type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, codeKey(purpose, email), code, ttl).Err()
}

// consumeScript 比较并删除，保证一个验证码只能被使用一次
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisCodeStore) Consume(ctx context.Context, purpose, email, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{codeKey(purpose, email)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MemoryCodeStore keeps codes in the process-wide LRU cache.
type MemoryCodeStore struct {
	cache *utils.Cache
}

func NewMemoryCodeStore(cache *utils.Cache) *MemoryCodeStore {
	return &MemoryCodeStore{cache: cache}
}

func (s *MemoryCodeStore) Save(_ context.Context, purpose, email, code string, ttl time.Duration) error {
	s.cache.Set(codeKey(purpose, email), code, ttl)
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, purpose, email, code string) (bool, error) {
	key := codeKey(purpose, email)
	stored, ok := s.cache.Get(key).(string)
	if !ok || stored != code {
		return false, nil
	}
	s.cache.Delete(key)
	return true, nil
}
