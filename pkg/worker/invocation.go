package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

const returnBindingName = "$return"

func (w *Worker) handleInvocation(ctx context.Context, msg *rpc.StreamingMessage) (out *rpc.StreamingMessage) {
	req := msg.InvocationRequest
	resp := &rpc.InvocationResponse{InvocationId: req.InvocationId}
	out = &rpc.StreamingMessage{InvocationResponse: resp}

	// The host waits for a response to every invocation, so a panic outside
	// the executor still answers with a failure.
	defer func() {
		if r := recover(); r != nil {
			perr := &invoke.PanicError{Value: r, Stack: debug.Stack()}
			w.logger.Errorf("Invocation %s panicked: %v", req.InvocationId, r)
			resp.OutputData, resp.ReturnValue = nil, nil
			resp.Result = rpc.Failure(perr)
			out = &rpc.StreamingMessage{InvocationResponse: resp}
		}
	}()

	def, ok := w.registry.Get(req.FunctionId)
	if !ok {
		resp.Result = rpc.Failure(fmt.Errorf("function with id %s is not loaded", req.FunctionId))
		return out
	}

	ictx, release, err := w.inflight.track(ctx, req.InvocationId, req.FunctionId)
	if err != nil {
		w.logger.Errorf("%v", err)
		resp.Result = rpc.Failure(err)
		return out
	}
	defer release()

	log := WithFields(w.logger, map[string]interface{}{
		"invocation_id": req.InvocationId,
		"function_id":   req.FunctionId,
	})

	ictx = extractTraceContext(ictx, req.TraceContext)
	ictx, span := startInvocationSpan(ictx, w.opts.TracerProvider, def.Name(), def.ID(), req.InvocationId)
	defer span.End()

	w.opts.Metrics.invocationStarted()
	start := time.Now()
	log.Debugf("Executing '%s'", def.Name())

	fc := function.NewContext(ictx, req.InvocationId, def, w.contextOptions(req)...)
	err = w.execute(ictx, fc, resp)

	status := "success"
	switch {
	case err != nil && ictx.Err() != nil:
		status = "cancelled"
		resp.Result = &rpc.StatusResult{Status: rpc.StatusCancelled, Exception: rpc.NewException(err)}
		span.SetStatus(codes.Error, "cancelled")
		log.Warnf("Executed '%s' (Cancelled, %s)", def.Name(), time.Since(start))
	case err != nil:
		status = "failure"
		resp.Result = rpc.Failure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("Executed '%s' (Failed, %s): %v", def.Name(), time.Since(start), err)
	default:
		resp.Result = rpc.Success()
		span.SetStatus(codes.Ok, "")
		log.Debugf("Executed '%s' (Succeeded, %s)", def.Name(), time.Since(start))
	}
	w.opts.Metrics.invocationFinished(def.Name(), status, time.Since(start))
	return out
}

// execute runs the function and fills in the response data. A panic in
// the pipeline around the user call becomes the returned error.
func (w *Worker) execute(ctx context.Context, fc *function.Context, resp *rpc.InvocationResponse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			resp.OutputData, resp.ReturnValue = nil, nil
			err = &invoke.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if err := w.executor.Execute(ctx, fc); err != nil {
		return err
	}
	resp.OutputData = outputData(fc)
	resp.ReturnValue = returnValue(fc.Definition, fc)
	return nil
}

func (w *Worker) contextOptions(req *rpc.InvocationRequest) []function.Option {
	opts := []function.Option{
		function.WithInputData(function.Materialize(req.InputData)),
		function.WithTriggerMetadata(function.MaterializeMap(req.TriggerMetadata)),
		function.WithLogSink(function.LogSinkFunc(w.forwardLog)),
	}
	if tc := req.TraceContext; tc != nil {
		opts = append(opts, function.WithTraceContext(function.TraceContext{
			TraceParent: tc.TraceParent,
			TraceState:  tc.TraceState,
			Attributes:  tc.Attributes,
		}))
	}
	if rc := req.RetryContext; rc != nil {
		opts = append(opts, function.WithRetryContext(&function.RetryContext{
			RetryCount:    int(rc.RetryCount),
			MaxRetryCount: int(rc.MaxRetryCount),
		}))
	}
	if w.opts.Services != nil {
		opts = append(opts, function.WithServices(w.opts.Services))
	}
	return opts
}

// forwardLog sends a user log entry to the host.
func (w *Worker) forwardLog(entry *rpc.RpcLog) {
	if err := w.outbox.Enqueue(&rpc.StreamingMessage{RpcLog: entry}); err != nil {
		w.logger.Debugf("Dropping log for invocation %s: %v", entry.InvocationId, err)
	}
}

// outputData converts the accumulated output bindings in name order. The
// return binding travels as ReturnValue.
func outputData(fc *function.Context) []*rpc.ParameterBinding {
	values := fc.Bindings().OutputBindings()
	names := make([]string, 0, len(values))
	for name := range values {
		if name != returnBindingName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]*rpc.ParameterBinding, 0, len(names))
	for _, name := range names {
		out = append(out, &rpc.ParameterBinding{Name: name, Data: rpc.ToTypedData(values[name])})
	}
	return out
}

func returnValue(def *metadata.FunctionDefinition, fc *function.Context) *rpc.TypedData {
	result, _ := fc.Bindings().InvocationResult()
	if _, declared := def.OutputBinding(returnBindingName); declared || result != nil {
		return rpc.ToTypedData(result)
	}
	return nil
}
