package refreshlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/R3E-Network/country_service/pkg/logger"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process using the same key.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	log    *logger.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a lock stored under "<namespace>:refresh:lock". The ttl
// bounds how long a crashed holder can block other refreshes.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration, log *logger.Logger) *Redis {
	if namespace == "" {
		namespace = "countries"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewDefault("refresh-lock")
	}
	return &Redis{
		client: client,
		key:    namespace + ":refresh:lock",
		ttl:    ttl,
		log:    log,
	}
}

// Key returns the redis key holding the lock.
func (r *Redis) Key() string { return r.key }

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		// The caller's context may already be cancelled by now.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{r.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			r.log.WithError(err).WithField("key", r.key).Warn("release refresh lock failed")
		}
	}, true, nil
}
