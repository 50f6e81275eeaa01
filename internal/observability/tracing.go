package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "agora-api"

// Tracer is used by the request middleware and the aggregate synchronizer.
// It is a no-op until InitTracing installs a provider.
var Tracer trace.Tracer = otel.Tracer(defaultServiceName)

// Span attribute keys shared by request and synchronizer spans, so a trace
// can be searched by the forum, post or user it touched.
const (
	ForumIDKey   = attribute.Key("agora.forum.id")
	PostIDKey    = attribute.Key("agora.post.id")
	ReplyIDKey   = attribute.Key("agora.reply.id")
	UserIDKey    = attribute.Key("agora.user.id")
	ResourceKey  = attribute.Key("agora.resource")
	SyncEventKey = attribute.Key("agora.sync.event")
	RequestIDKey = attribute.Key("agora.request.id")
)

const (
	exporterOTLP    = "otlp"
	exporterStdout  = "stdout"
	exporterDiscard = "none"
)

// ForumID tags a span with a forum.
func ForumID(id uint) attribute.KeyValue { return ForumIDKey.Int64(int64(id)) }

// PostID tags a span with a post.
func PostID(id uint) attribute.KeyValue { return PostIDKey.Int64(int64(id)) }

// UserID tags a span with a user.
func UserID(id uint) attribute.KeyValue { return UserIDKey.Int64(int64(id)) }

// TracingConfig holds configuration for initializing the tracer.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// Exporter is "stdout", "otlp" or "none".
	Exporter     string
	OTLPEndpoint string
	SamplerRatio float64
}

// InitTracing installs the tracer provider and W3C propagation. The returned
// function flushes and stops the provider.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if !cfg.Enabled {
		Tracer = otel.Tracer(cfg.ServiceName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SamplerRatio)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tp.Tracer(cfg.ServiceName)

	return tp.Shutdown, nil
}

// newExporter returns nil for "none", which keeps trace ids in logs and
// responses without shipping spans anywhere.
func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case exporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("tracing exporter otlp needs OTLP_ENDPOINT")
		}
		exp, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	case exporterStdout, "":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		return exp, nil
	case exporterDiscard:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q (want stdout, otlp or none)", cfg.Exporter)
	}
}

// newSampler samples every trace at ratio >= 1 and none at ratio <= 0.
// Incoming sampled parents are always honoured.
func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TraceSync opens a span for one synchronizer event and starts its latency
// measurement. Call the returned function with the event's outcome.
func TraceSync(ctx context.Context, event string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := Tracer.Start(ctx, "sync."+event,
		trace.WithAttributes(append(attrs, SyncEventKey.String(event))...),
	)
	record := TrackSync(event)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		record(err)
	}
}

// TraceID returns the id of the trace carried by ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
