package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

const tracerName = "github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker"

// Span attribute keys.
const (
	attrFunctionName = attribute.Key("faas.name")
	attrFunctionID   = attribute.Key("faas.function_id")
	attrInvocationID = attribute.Key("faas.invocation_id")
)

var w3c = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

// extractTraceContext returns ctx carrying the remote span context from the
// host's W3C trace headers.
func extractTraceContext(ctx context.Context, tc *rpc.RpcTraceContext) context.Context {
	if tc == nil || tc.TraceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": tc.TraceParent,
		"tracestate":  tc.TraceState,
	}
	return w3c.Extract(ctx, carrier)
}

// startInvocationSpan starts the server span for an invocation.
func startInvocationSpan(ctx context.Context, tp trace.TracerProvider, name, functionID, invocationID string) (context.Context, trace.Span) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attrFunctionName.String(name),
			attrFunctionID.String(functionID),
			attrInvocationID.String(invocationID),
		),
	)
}

// InitTracing installs an sdk tracer provider and the W3C propagator as the
// otel globals. With an empty endpoint spans are sampled but not exported.
// The returned function flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, serviceName string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio < 1.0 && cfg.SampleRatio >= 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}

	if cfg.Endpoint != "" {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(w3c)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}
