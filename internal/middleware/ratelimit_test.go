package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// newDownRedis returns a client whose server has already gone away. Retries
// are off so every command fails on the first refused dial.
func newDownRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	return rdb
}

func TestCheckRateLimit(t *testing.T) {
	t.Run("bypassed outside production-like envs", func(t *testing.T) {
		for _, env := range []string{"test", "development", "stress"} {
			t.Setenv("APP_ENV", env)
			allowed, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
			assert.NoError(t, err)
			assert.True(t, allowed, env)
		}
	})

	t.Run("nil redis errors in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, err := CheckRateLimit(context.Background(), nil, "r", "1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counts per key and expires", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "posts", "user:1", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "posts", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = CheckRateLimit(ctx, rdb, "posts", "user:2", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		assert.True(t, mr.TTL("rl:posts:user:1") > 0)
		mr.FastForward(2 * time.Minute)
		allowed, err = CheckRateLimit(ctx, rdb, "posts", "user:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(2, time.Hour)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestRateLimitMiddleware(t *testing.T) {
	newApp := func(h fiber.Handler) *fiber.App {
		app := fiber.New()
		app.Get("/test", h, func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		return app
	}
	do := func(t *testing.T, app *fiber.App) int {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := newApp(RateLimit(nil, 1, time.Minute))
		assert.Equal(t, http.StatusOK, do(t, app))
		assert.Equal(t, http.StatusOK, do(t, app))
	})

	t.Run("local limiter without redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := newApp(RateLimit(nil, 1, time.Hour))
		assert.Equal(t, http.StatusOK, do(t, app))
		assert.Equal(t, http.StatusTooManyRequests, do(t, app))
	})

	t.Run("redis backed limit", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)
		app := newApp(RateLimit(rdb, 1, time.Minute, "test"))
		assert.Equal(t, http.StatusOK, do(t, app))
		assert.Equal(t, http.StatusTooManyRequests, do(t, app))
	})

	t.Run("fail closed when redis is down", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := newApp(RateLimitWithPolicy(newDownRedis(t), 1, time.Minute, FailClosed))
		assert.Equal(t, http.StatusServiceUnavailable, do(t, app))
	})

	t.Run("fail open when redis is down", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := newApp(RateLimit(newDownRedis(t), 1, time.Minute))
		assert.Equal(t, http.StatusOK, do(t, app))
	})
}
