// Package function holds the per-invocation state shared by the binder, the
// executor, and user code.
package function

import (
	"context"
	"strings"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

// TraceContext is the W3C trace context the host attached to an invocation.
type TraceContext struct {
	TraceParent string
	TraceState  string
	Attributes  map[string]string
}

// RetryContext reports the retry attempt the host is running.
type RetryContext struct {
	RetryCount    int
	MaxRetryCount int
}

// Context is the state of one invocation. It is created when an invocation
// request arrives and discarded after the response is written.
type Context struct {
	InvocationID string
	FunctionID   string
	Definition   *metadata.FunctionDefinition
	TraceContext TraceContext
	RetryContext *RetryContext

	// InputData holds the materialized input bindings by name.
	InputData map[string]any
	// TriggerMetadata holds the trigger metadata values by name.
	TriggerMetadata map[string]any

	// InstanceServices activates function instances.
	InstanceServices ServiceProvider

	ctx      context.Context
	features *Features
	sink     LogSink
}

// Option configures a Context.
type Option func(*Context)

// WithInputData sets the input binding values.
func WithInputData(data map[string]any) Option {
	return func(c *Context) { c.InputData = data }
}

// WithTriggerMetadata sets the trigger metadata values.
func WithTriggerMetadata(data map[string]any) Option {
	return func(c *Context) { c.TriggerMetadata = data }
}

func WithTraceContext(tc TraceContext) Option {
	return func(c *Context) { c.TraceContext = tc }
}

func WithRetryContext(rc *RetryContext) Option {
	return func(c *Context) { c.RetryContext = rc }
}

func WithServices(sp ServiceProvider) Option {
	return func(c *Context) { c.InstanceServices = sp }
}

// WithLogSink routes user logs to sink.
func WithLogSink(sink LogSink) Option {
	return func(c *Context) { c.sink = sink }
}

// NewContext creates the invocation state. ctx carries cancellation for the
// invocation.
func NewContext(ctx context.Context, invocationID string, def *metadata.FunctionDefinition, opts ...Option) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		InvocationID: invocationID,
		Definition:   def,
		ctx:          ctx,
		features:     NewFeatures(),
	}
	if def != nil {
		c.FunctionID = def.ID()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the invocation's cancellation context.
func (c *Context) Context() context.Context { return c.ctx }

// Features returns the invocation feature set.
func (c *Context) Features() *Features { return c.features }

// Bindings returns the output binding and result accumulator.
func (c *Context) Bindings() *BindingsFeature {
	return GetOrAdd(c.features, newBindingsFeature)
}

// Logger returns a logger whose entries are forwarded to the host.
func (c *Context) Logger() *Logger {
	return &Logger{invocationID: c.InvocationID, sink: c.sink}
}

// LookupInput finds a raw input value by name. Input data is searched before
// trigger metadata and names match without regard to case.
func (c *Context) LookupInput(name string) (any, bool) {
	if v, ok := lookupFold(c.InputData, name); ok {
		return v, true
	}
	return lookupFold(c.TriggerMetadata, name)
}

func lookupFold(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

type contextKey struct{}

// NewGoContext returns a copy of parent carrying fc.
func NewGoContext(parent context.Context, fc *Context) context.Context {
	return context.WithValue(parent, contextKey{}, fc)
}

// FromGoContext returns the invocation stored in ctx, if any.
func FromGoContext(ctx context.Context) (*Context, bool) {
	fc, ok := ctx.Value(contextKey{}).(*Context)
	return fc, ok
}
