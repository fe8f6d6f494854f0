package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript registra un envio solo si la ventana aun tiene cupo.
// KEYS[1] = clave; ARGV = ahora (ms), ventana (ms), maximo, miembro unico.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`)

const (
	redisLimiterKeyPrefix = "authkeeper:email-limit:"
	redisLimiterTimeout   = 500 * time.Millisecond
)

// redisSlidingWindowLimiter replica la ventana deslizante del limiter en memoria,
// pero compartida entre instancias.
type redisSlidingWindowLimiter struct {
	client redis.Scripter
	logger *zap.Logger
	window time.Duration
	max    int
	now    func() time.Time
}

func NewRedisEmailRateLimiter(client redis.Scripter, logger *zap.Logger, window time.Duration, max int) EmailRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisSlidingWindowLimiter{
		client: client,
		logger: logger,
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// Allow deja pasar el envio si Redis falla; el correo ya es best-effort.
func (l *redisSlidingWindowLimiter) Allow(key string) bool {
	key = normalizeIdentity(key)
	if key == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisLimiterTimeout)
	defer cancel()

	allowed, err := slidingWindowScript.Run(ctx, l.client, []string{redisLimiterKeyPrefix + key},
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.max,
		uuid.NewString(),
	).Int()
	if err != nil {
		l.logger.Warn("email rate limiter unavailable, allowing send", zap.Error(err), zap.String("key", key))
		return true
	}
	return allowed == 1
}
