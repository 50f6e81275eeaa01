package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRouteResource(t *testing.T) {
	t.Parallel()
	tests := []struct {
		route string
		want  string
	}{
		{"/api/forums/:id/bans", "forum"},
		{"/api/posts/:id", "post"},
		{"/api/posts/:postId/replies/:replyId", "reply"},
		{"/api/posts/:id/replies", "reply"},
		{"/api/users/:id/follow", "user"},
		{"/api/auth/login", "auth"},
		{"/api/ws/forums/:id", "feed"},
		{"/api/admin/feature-flags", "admin"},
		{"/health/live", "system"},
		{"/", "system"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routeResource(tt.route), tt.route)
	}
}

func TestTracingMiddleware_TagsRouteAndUser(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Delete("/api/posts/:postId/replies/:replyId", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/forums/:id", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/posts/7/replies/abc-123", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/forums/3", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	reply := spans[0]
	assert.Equal(t, "DELETE /api/posts/:postId/replies/:replyId", reply.Name())
	attrs := reply.Attributes()
	assert.Contains(t, attrs, observability.ResourceKey.String("reply"))
	assert.Contains(t, attrs, observability.PostIDKey.String("7"))
	assert.Contains(t, attrs, observability.ReplyIDKey.String("abc-123"))
	assert.Contains(t, attrs, observability.UserIDKey.Int64(42))
	assert.Equal(t, codes.Unset, reply.Status().Code)

	forum := spans[1]
	assert.Equal(t, "GET /api/forums/:id", forum.Name())
	assert.Contains(t, forum.Attributes(), observability.ForumIDKey.String("3"))
	assert.Contains(t, forum.Attributes(), attribute.Int("http.response.status_code", fiber.StatusServiceUnavailable))
	assert.Equal(t, codes.Error, forum.Status().Code)
}
