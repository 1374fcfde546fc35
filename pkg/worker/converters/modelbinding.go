package converters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// ModelBindingHandler materializes deferred binding payloads from one source,
// for example "AzureStorageBlobs". A handler owns every payload from its
// source: content it cannot read is a Failed result, not an Unhandled one.
type ModelBindingHandler interface {
	Source() string
	Convert(ctx context.Context, data *rpc.ModelBindingData, target reflect.Type) Result
}

// ModelBindingDataConverter dispatches model binding data to the handler
// registered for its source.
type ModelBindingDataConverter struct {
	mu       sync.RWMutex
	handlers map[string]ModelBindingHandler
}

func NewModelBindingDataConverter(handlers ...ModelBindingHandler) *ModelBindingDataConverter {
	c := &ModelBindingDataConverter{handlers: make(map[string]ModelBindingHandler)}
	for _, h := range handlers {
		c.Handle(h)
	}
	return c
}

// Handle registers h for its source, replacing any earlier handler.
func (c *ModelBindingDataConverter) Handle(h ModelBindingHandler) {
	c.mu.Lock()
	c.handlers[strings.ToLower(h.Source())] = h
	c.mu.Unlock()
}

func (c *ModelBindingDataConverter) handler(source string) (ModelBindingHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[strings.ToLower(source)]
	return h, ok
}

func (c *ModelBindingDataConverter) Convert(ctx context.Context, cc *Context) Result {
	switch src := cc.Source.(type) {
	case *rpc.ModelBindingData:
		return c.convertOne(ctx, src, cc.TargetType)
	case *rpc.CollectionModelBindingData:
		return c.convertMany(ctx, src.ModelBindingData, cc.TargetType)
	}
	return Unhandled()
}

func (c *ModelBindingDataConverter) convertOne(ctx context.Context, data *rpc.ModelBindingData, target reflect.Type) Result {
	if data == nil {
		return Unhandled()
	}
	h, ok := c.handler(data.Source)
	if !ok {
		return Unhandled()
	}
	return h.Convert(ctx, data, target)
}

func (c *ModelBindingDataConverter) convertMany(ctx context.Context, items []*rpc.ModelBindingData, target reflect.Type) Result {
	if target.Kind() != reflect.Slice || target == bytesType {
		return Unhandled()
	}
	out := reflect.MakeSlice(target, 0, len(items))
	for i, item := range items {
		r := c.convertOne(ctx, item, target.Elem())
		switch r.Status() {
		case StatusFailed:
			return Failure(fmt.Errorf("model binding data %d: %w", i, r.Err()))
		case StatusUnhandled:
			return Unhandled()
		}
		v := reflect.ValueOf(r.Value())
		if !v.IsValid() || !v.Type().AssignableTo(target.Elem()) {
			return Failure(fmt.Errorf("model binding data %d: handler returned %T for %s", i, r.Value(), target.Elem()))
		}
		out = reflect.Append(out, v)
	}
	return Success(out.Interface())
}

var errUnsupportedContentType = errors.New("Unexpected content-type. Currently only 'application/json' is supported.")

// JSONModelBindingHandler decodes application/json model binding content
// into the target type.
type JSONModelBindingHandler struct {
	source string
}

func NewJSONModelBindingHandler(source string) *JSONModelBindingHandler {
	return &JSONModelBindingHandler{source: source}
}

func (h *JSONModelBindingHandler) Source() string { return h.source }

func (h *JSONModelBindingHandler) Convert(_ context.Context, data *rpc.ModelBindingData, target reflect.Type) Result {
	if !strings.HasPrefix(strings.ToLower(data.ContentType), "application/json") {
		return Failure(errUnsupportedContentType)
	}
	v := reflect.New(target)
	if err := json.Unmarshal(data.Content, v.Interface()); err != nil {
		return Failure(fmt.Errorf("decode %s model binding data: %w", h.source, err))
	}
	return Success(v.Elem().Interface())
}
