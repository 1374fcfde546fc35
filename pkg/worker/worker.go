// Package worker implements the language worker's side of the FunctionRpc
// protocol: it answers host requests, loads function definitions and runs
// invocations.
//
// Example:
//
//	w := worker.New(worker.Options{
//		WorkerID: cfg.WorkerID,
//		Loader:   invoke.NewStaticLoader(orders.Assembly),
//	})
//	ch, err := worker.DialGRPC(ctx, cfg.HostAddress(), cfg.GRPCMaxMessageLength)
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx, ch)
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/binding"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// Version is the worker version reported to the host.
var Version = "1.0.0"

// State is the worker's position in the host protocol.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateReady
	StateInvoking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateReady:
		return "Ready"
	case StateInvoking:
		return "Invoking"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Capability names advertised to the host.
const (
	CapabilityRpcHTTPBodyOnly                     = "RpcHttpBodyOnly"
	CapabilityRawHTTPBodyBytes                    = "RawHttpBodyBytes"
	CapabilityRpcHTTPTriggerMetadataRemoved       = "RpcHttpTriggerMetadataRemoved"
	CapabilityUseNullableValueDictionaryForHTTP   = "UseNullableValueDictionaryForHttp"
	CapabilityTypedDataCollection                 = "TypedDataCollection"
	CapabilityWorkerStatus                        = "WorkerStatus"
	CapabilityHandlesWorkerTerminateMessage       = "HandlesWorkerTerminateMessage"
	CapabilityIncludeEmptyEntriesInMessagePayload = "IncludeEmptyEntriesInMessagePayload"
)

// Capabilities returns the capability map sent with init and reload
// responses.
func Capabilities() map[string]string {
	caps := map[string]string{}
	for _, c := range []string{
		CapabilityRpcHTTPBodyOnly,
		CapabilityRawHTTPBodyBytes,
		CapabilityRpcHTTPTriggerMetadataRemoved,
		CapabilityUseNullableValueDictionaryForHTTP,
		CapabilityTypedDataCollection,
		CapabilityWorkerStatus,
		CapabilityHandlesWorkerTerminateMessage,
		CapabilityIncludeEmptyEntriesInMessagePayload,
	} {
		caps[c] = "True"
	}
	return caps
}

// Options configures a Worker. Zero values select the defaults.
type Options struct {
	WorkerID  string
	RequestID string

	Logger         Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider

	// Loader resolves script files to assemblies.
	Loader    invoke.AssemblyLoader
	Activator invoke.Activator
	// Converters is the conversion engine used for input binding.
	Converters *converters.Engine
	// Services activates function instances and is exposed on each
	// invocation context.
	Services function.ServiceProvider

	// TerminateGrace bounds how long running handlers may finish after a
	// WorkerTerminate or shutdown.
	TerminateGrace time.Duration

	// Setenv applies reload environment variables. Defaults to os.Setenv.
	Setenv func(key, value string) error
}

type handlerFunc func(ctx context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage

// Worker is the protocol state handler. One reader goroutine receives
// requests and runs each handler on its own goroutine; responses go through
// the Outbox to a single writer.
type Worker struct {
	opts     Options
	logger   Logger
	registry *metadata.Registry
	factory  *invoke.Factory
	executor *invoke.Executor
	outbox   *Outbox
	inflight *inflight
	handlers map[rpc.ContentKind]handlerFunc

	state   atomic.Int32
	running atomic.Bool

	mu          sync.RWMutex
	appDir      string
	hostVersion string

	dispatchMu sync.Mutex
	draining   bool
	active     sync.WaitGroup

	terminate     chan time.Duration
	terminateOnce sync.Once
}

// New creates a worker.
func New(opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = GetGlobalLogger()
	}
	if opts.Loader == nil {
		opts.Loader = invoke.NewPluginLoader()
	}
	if opts.TerminateGrace <= 0 {
		opts.TerminateGrace = 5 * time.Second
	}
	if opts.Setenv == nil {
		opts.Setenv = os.Setenv
	}

	factory := &invoke.Factory{Loader: opts.Loader, Activator: opts.Activator}
	w := &Worker{
		opts:      opts,
		logger:    opts.Logger,
		registry:  metadata.NewRegistry(),
		factory:   factory,
		executor:  invoke.NewExecutor(invoke.NewCache(factory), binding.NewBinder(opts.Converters)),
		outbox:    NewOutbox(),
		inflight:  newInflight(),
		terminate: make(chan time.Duration, 1),
	}
	w.handlers = map[rpc.ContentKind]handlerFunc{
		rpc.KindWorkerInitRequest:                w.handleWorkerInit,
		rpc.KindFunctionLoadRequest:              w.handleFunctionLoad,
		rpc.KindFunctionLoadRequestCollection:    w.handleFunctionLoadCollection,
		rpc.KindFunctionsMetadataRequest:         w.handleFunctionsMetadata,
		rpc.KindInvocationRequest:                w.handleInvocation,
		rpc.KindInvocationCancel:                 w.handleInvocationCancel,
		rpc.KindFunctionEnvironmentReloadRequest: w.handleEnvironmentReload,
		rpc.KindWorkerStatusRequest:              w.handleWorkerStatus,
		rpc.KindWorkerTerminate:                  w.handleWorkerTerminate,
	}
	return w
}

// State reports the current protocol state.
func (w *Worker) State() State {
	s := State(w.state.Load())
	if s == StateReady && w.inflight.len() > 0 {
		return StateInvoking
	}
	return s
}

// Registry exposes the loaded function definitions.
func (w *Worker) Registry() *metadata.Registry { return w.registry }

// HostVersion returns the version the host reported in WorkerInitRequest.
func (w *Worker) HostVersion() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hostVersion
}

// AppDirectory returns the function app directory the host reported.
func (w *Worker) AppDirectory() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.appDir
}

// advance moves the state forward to s; it never moves backwards.
func (w *Worker) advance(s State) {
	for {
		cur := w.state.Load()
		if State(cur) >= s {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Run serves the host over ch until the host closes the link, a
// WorkerTerminate arrives, or ctx is done. It closes ch before returning.
func (w *Worker) Run(ctx context.Context, ch HostChannel) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("worker is already running")
	}

	handlerCtx, cancelHandlers := context.WithCancel(ctx)
	defer cancelHandlers()
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()

	_ = w.outbox.Enqueue(&rpc.StreamingMessage{
		RequestId:   w.opts.RequestID,
		StartStream: &rpc.StartStream{WorkerId: w.opts.WorkerID},
	})

	writerDone := make(chan error, 1)
	go func() { writerDone <- w.outbox.Run(writerCtx, ch.Send) }()
	readerDone := make(chan error, 1)
	go func() { readerDone <- w.readLoop(handlerCtx, ch) }()

	var (
		runErr       error
		readerExited bool
		writerExited bool
		grace        = w.opts.TerminateGrace
	)
	select {
	case err := <-readerDone:
		readerExited = true
		if !errors.Is(err, io.EOF) {
			runErr = fmt.Errorf("receive from host: %w", err)
		}
	case err := <-writerDone:
		writerExited = true
		if err != nil {
			runErr = fmt.Errorf("send to host: %w", err)
		}
	case g := <-w.terminate:
		if g > 0 {
			grace = g
		}
		w.logger.Infof("Worker terminating, grace period %s", grace)
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	// Stop dispatching, let running handlers finish, then cancel the rest.
	w.dispatchMu.Lock()
	w.draining = true
	w.dispatchMu.Unlock()
	if !w.waitHandlers(grace) {
		w.logger.Warnf("Cancelling %d invocations still running after %s", w.inflight.len(), grace)
		cancelHandlers()
		w.inflight.cancelAll()
		w.waitHandlers(grace)
	}

	w.outbox.Close()
	if !writerExited {
		select {
		case <-writerDone:
		case <-time.After(grace):
			stopWriter()
			<-writerDone
		}
	}
	_ = ch.Close()
	if !readerExited {
		<-readerDone
	}

	w.state.Store(int32(StateStopped))
	return runErr
}

func (w *Worker) waitHandlers(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func (w *Worker) readLoop(ctx context.Context, ch HostChannel) error {
	for {
		msg, err := ch.Recv()
		if err != nil {
			return err
		}
		w.dispatch(ctx, msg)
	}
}

func (w *Worker) dispatch(ctx context.Context, msg *rpc.StreamingMessage) {
	kind := msg.Kind()
	h, ok := w.handlers[kind]
	if !ok {
		w.logger.Warnf("Ignoring unsupported message %q (request %s)", kind, msg.RequestId)
		return
	}

	w.dispatchMu.Lock()
	if w.draining {
		w.dispatchMu.Unlock()
		w.logger.Warnf("Ignoring %s received while shutting down", kind)
		return
	}
	w.active.Add(1)
	w.dispatchMu.Unlock()

	go func() {
		defer w.active.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Errorf("Handler for %s panicked: %v", kind, r)
			}
		}()

		resp := h(ctx, msg)
		if resp == nil {
			return
		}
		resp.RequestId = msg.RequestId
		if err := w.outbox.Enqueue(resp); err != nil {
			w.logger.Warnf("Dropping %s response: %v", resp.Kind(), err)
		}
	}()
}

func (w *Worker) workerMetadata() *rpc.WorkerMetadata {
	return &rpc.WorkerMetadata{
		RuntimeName:    metadata.WorkerLanguage,
		RuntimeVersion: runtime.Version(),
		WorkerVersion:  Version,
		WorkerBitness:  runtime.GOARCH,
		CustomProperties: map[string]string{
			"worker.os": runtime.GOOS,
		},
	}
}

func (w *Worker) handleWorkerInit(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	req := msg.WorkerInitRequest
	w.mu.Lock()
	w.hostVersion = req.HostVersion
	if req.FunctionAppDirectory != "" {
		w.appDir = req.FunctionAppDirectory
	}
	w.mu.Unlock()
	w.advance(StateInitialized)
	w.logger.Infof("Worker initialized by host %s (app directory %q)", req.HostVersion, req.FunctionAppDirectory)

	return &rpc.StreamingMessage{WorkerInitResponse: &rpc.WorkerInitResponse{
		WorkerVersion:  Version,
		Capabilities:   Capabilities(),
		WorkerMetadata: w.workerMetadata(),
		Result:         rpc.Success(),
	}}
}

func (w *Worker) handleFunctionLoad(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	return &rpc.StreamingMessage{FunctionLoadResponse: w.loadFunction(msg.FunctionLoadRequest)}
}

func (w *Worker) handleFunctionLoadCollection(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	reqs := msg.FunctionLoadRequestCollection.FunctionLoadRequests
	resp := &rpc.FunctionLoadResponseCollection{FunctionLoadResponses: make([]*rpc.FunctionLoadResponse, 0, len(reqs))}
	for _, req := range reqs {
		resp.FunctionLoadResponses = append(resp.FunctionLoadResponses, w.loadFunction(req))
	}
	return &rpc.StreamingMessage{FunctionLoadResponseCollection: resp}
}

func (w *Worker) loadFunction(req *rpc.FunctionLoadRequest) *rpc.FunctionLoadResponse {
	if req == nil {
		req = &rpc.FunctionLoadRequest{}
	}
	resp := &rpc.FunctionLoadResponse{FunctionId: req.FunctionId}

	def, err := w.buildDefinition(req)
	if err != nil {
		w.metricsLoad("failure")
		w.logger.Errorf("Function load failed for id %s: %v", req.FunctionId, err)
		resp.Result = rpc.Failure(err)
		return resp
	}
	if err := w.registry.Register(def); err != nil {
		w.metricsLoad("failure")
		resp.Result = rpc.Failure(err)
		return resp
	}

	w.metricsLoad("success")
	w.advance(StateReady)
	w.logger.Infof("Function '%s' loaded (id %s, entry point %s)", def.Name(), def.ID(), def.EntryPoint())
	resp.Result = rpc.Success()
	return resp
}

func (w *Worker) buildDefinition(req *rpc.FunctionLoadRequest) (*metadata.FunctionDefinition, error) {
	if req.Metadata != nil && req.FunctionId == "" && req.Metadata.FunctionId == "" {
		return nil, &metadata.ValidationError{Function: req.Metadata.Name, Reason: "function id is missing"}
	}
	return w.factory.Define(req.FunctionId, req.Metadata)
}

func (w *Worker) metricsLoad(status string) {
	w.opts.Metrics.functionLoaded(status)
}

func (w *Worker) handleFunctionsMetadata(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	dir := msg.FunctionsMetadataRequest.FunctionAppDirectory
	if dir == "" {
		dir = w.AppDirectory()
	}

	resp := &rpc.FunctionMetadataResponse{Result: rpc.Success()}
	metas, err := metadata.ReadFunctionsMetadata(dir)
	switch {
	case err != nil:
		w.logger.Errorf("Reading function metadata from %q failed: %v", dir, err)
		resp.Result = rpc.Failure(err)
	case len(metas) == 0:
		resp.UseDefaultMetadataIndexing = true
	default:
		resp.FunctionMetadataResults = metas
	}
	return &rpc.StreamingMessage{FunctionMetadataResponse: resp}
}

func (w *Worker) handleEnvironmentReload(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	req := msg.FunctionEnvironmentReloadRequest
	for k, v := range req.EnvironmentVariables {
		if err := w.opts.Setenv(k, v); err != nil {
			w.logger.Warnf("Setting environment variable %s failed: %v", k, err)
		}
	}

	w.registry.Reset()
	w.executor.Cache().Reset()
	if req.FunctionAppDirectory != "" {
		w.mu.Lock()
		w.appDir = req.FunctionAppDirectory
		w.mu.Unlock()
	}
	// Reloading drops every loaded function, so the worker is back to
	// waiting for loads.
	w.state.Store(int32(StateInitialized))
	w.logger.Infof("Environment reloaded: %d variables, app directory %q", len(req.EnvironmentVariables), req.FunctionAppDirectory)

	return &rpc.StreamingMessage{FunctionEnvironmentReloadResponse: &rpc.FunctionEnvironmentReloadResponse{
		WorkerMetadata: w.workerMetadata(),
		Capabilities:   Capabilities(),
		Result:         rpc.Success(),
	}}
}

func (w *Worker) handleWorkerStatus(context.Context, *rpc.StreamingMessage) *rpc.StreamingMessage {
	return &rpc.StreamingMessage{WorkerStatusResponse: &rpc.WorkerStatusResponse{}}
}

func (w *Worker) handleWorkerTerminate(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	grace := msg.WorkerTerminate.GracePeriod.AsDuration()
	w.terminateOnce.Do(func() { w.terminate <- grace })
	return nil
}

func (w *Worker) handleInvocationCancel(_ context.Context, msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	id := msg.InvocationCancel.InvocationId
	if w.inflight.cancel(id) {
		w.logger.Debugf("Cancellation requested for invocation %s", id)
	} else {
		w.logger.Debugf("Cancellation requested for unknown invocation %s", id)
	}
	return nil
}
