package middleware

import (
	"errors"
	"strconv"
	"strings"

	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request. The span is renamed to
// the matched route template once routing is done, and tagged with the
// forum resource the route addresses and the authenticated user.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
				semconv.ClientAddress(c.IP()),
				semconv.UserAgentOriginal(c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(observability.RequestIDKey.String(rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route))
		span.SetAttributes(routeAttributes(route, c.Params)...)
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(observability.UserID(uid))
		}

		status := c.Response().StatusCode()
		if err != nil {
			span.RecordError(err)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		return err
	}
}

// routeAttributes tags a span with the forum resource a route template
// addresses and the ids it names. Ids are copied as strings since
// malformed ones still reach the handlers.
func routeAttributes(route string, param func(key string, def ...string) string) []attribute.KeyValue {
	resource := routeResource(route)
	attrs := []attribute.KeyValue{observability.ResourceKey.String(resource)}

	add := func(key attribute.Key, name string) {
		if strings.Contains(route, ":"+name) {
			if v := param(name); v != "" {
				attrs = append(attrs, key.String(v))
			}
		}
	}
	switch resource {
	case "forum", "feed":
		add(observability.ForumIDKey, "id")
	case "post":
		add(observability.PostIDKey, "id")
	case "reply":
		add(observability.PostIDKey, "id")
		add(observability.PostIDKey, "postId")
		add(observability.ReplyIDKey, "replyId")
	case "user":
		add(observability.UserIDKey, "id")
	}
	return attrs
}

// routeResource classifies an /api route template by the resource it serves.
func routeResource(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return "system"
	}
	segments := strings.Split(rest, "/")
	switch segments[0] {
	case "forums":
		return "forum"
	case "posts":
		if strings.Contains(rest, "/replies") {
			return "reply"
		}
		return "post"
	case "users":
		return "user"
	case "auth":
		return "auth"
	case "ws":
		return "feed"
	case "admin":
		return "admin"
	}
	return "system"
}
