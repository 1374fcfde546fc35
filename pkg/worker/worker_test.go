// Copyright 2025 Croupier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

type Greeter struct{}

func (g *Greeter) Hello(fc *function.Context, name string) (string, error) {
	function.Output[string](fc, "msg").Set("queued " + name)
	fc.Logger().Infof("hello %s", name)
	return "Hello, " + name, nil
}

// explosive panics when the worker encodes it for the host.
type explosive struct{}

func (explosive) MarshalJSON() ([]byte, error) { panic("marshal exploded") }

func greeterAssembly(t *testing.T) *invoke.Assembly {
	t.Helper()
	a := invoke.NewAssembly("app")
	require.NoError(t, a.RegisterType("app.Greeter", &Greeter{},
		invoke.Method("Hello", invoke.Param("fc"), invoke.Param("name"))))
	require.NoError(t, a.RegisterStatic("app.Fail", func(string) error { return errors.New("bad input") }, invoke.Param("name")))
	require.NoError(t, a.RegisterStatic("app.Explode", func() explosive { return explosive{} }))
	require.NoError(t, a.RegisterStatic("app.Wait", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, invoke.Param("ctx")))
	return a
}

type harness struct {
	t    *testing.T
	w    *Worker
	host HostChannel
	in   chan *rpc.StreamingMessage

	mu   sync.Mutex
	logs []*rpc.RpcLog

	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

func startWorker(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Loader == nil {
		opts.Loader = invoke.NewStaticLoader(greeterAssembly(t))
	}
	if opts.Logger == nil {
		opts.Logger = &NoOpLogger{}
	}
	if opts.TerminateGrace == 0 {
		opts.TerminateGrace = time.Second
	}
	if opts.WorkerID == "" {
		opts.WorkerID = "worker-1"
	}

	hostEnd, workerEnd := NewPipe()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:      t,
		w:      New(opts),
		host:   hostEnd,
		in:     make(chan *rpc.StreamingMessage, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		h.err = h.w.Run(ctx, workerEnd)
		close(h.done)
	}()
	go func() {
		defer close(h.in)
		for {
			msg, err := hostEnd.Recv()
			if err != nil {
				return
			}
			if msg.RpcLog != nil {
				h.mu.Lock()
				h.logs = append(h.logs, msg.RpcLog)
				h.mu.Unlock()
				continue
			}
			h.in <- msg
		}
	}()
	t.Cleanup(func() {
		cancel()
		_ = hostEnd.Close()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("worker did not stop")
		}
	})

	start := h.next()
	require.NotNil(t, start.StartStream)
	assert.Equal(t, opts.WorkerID, start.StartStream.WorkerId)
	return h
}

func (h *harness) send(msg *rpc.StreamingMessage) {
	h.t.Helper()
	require.NoError(h.t, h.host.Send(msg))
}

func (h *harness) next() *rpc.StreamingMessage {
	h.t.Helper()
	select {
	case msg, ok := <-h.in:
		require.True(h.t, ok, "host channel closed")
		return msg
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for a message from the worker")
		return nil
	}
}

func (h *harness) request(msg *rpc.StreamingMessage) *rpc.StreamingMessage {
	h.t.Helper()
	h.send(msg)
	return h.next()
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case <-h.done:
		return h.err
	case <-time.After(5 * time.Second):
		h.t.Fatal("worker did not stop")
		return nil
	}
}

func (h *harness) userLogs() []*rpc.RpcLog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*rpc.RpcLog(nil), h.logs...)
}

func loadRequest(id, entryPoint string, raw ...string) *rpc.StreamingMessage {
	return &rpc.StreamingMessage{
		RequestId: "load-" + id,
		FunctionLoadRequest: &rpc.FunctionLoadRequest{
			FunctionId: id,
			Metadata: &rpc.RpcFunctionMetadata{
				Name:        entryPoint,
				ScriptFile:  "app.so",
				EntryPoint:  entryPoint,
				RawBindings: raw,
			},
		},
	}
}

var helloBindings = []string{
	`{"name":"name","type":"queueTrigger","direction":"In"}`,
	`{"name":"msg","type":"queue","direction":"Out"}`,
	`{"name":"$return","type":"http","direction":"Out"}`,
}

func (h *harness) load(id, entryPoint string, raw ...string) {
	h.t.Helper()
	resp := h.request(loadRequest(id, entryPoint, raw...))
	require.NotNil(h.t, resp.FunctionLoadResponse)
	require.Equal(h.t, rpc.StatusSuccess, resp.FunctionLoadResponse.Result.Status, "%+v", resp.FunctionLoadResponse.Result.Exception)
}

func invocation(invocationID, functionID string, inputs ...*rpc.ParameterBinding) *rpc.StreamingMessage {
	return &rpc.StreamingMessage{
		RequestId: "req-" + invocationID,
		InvocationRequest: &rpc.InvocationRequest{
			InvocationId: invocationID,
			FunctionId:   functionID,
			InputData:    inputs,
		},
	}
}

func metricValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	return 0
}

func TestWorker_Init(t *testing.T) {
	h := startWorker(t, Options{})
	assert.Equal(t, StateUninitialized, h.w.State())

	resp := h.request(&rpc.StreamingMessage{
		RequestId: "init",
		WorkerInitRequest: &rpc.WorkerInitRequest{
			HostVersion:          "4.30.0",
			FunctionAppDirectory: "/home/site/wwwroot",
		},
	})

	assert.Equal(t, "init", resp.RequestId)
	require.NotNil(t, resp.WorkerInitResponse)
	got := resp.WorkerInitResponse
	assert.Equal(t, rpc.StatusSuccess, got.Result.Status)
	assert.Equal(t, Version, got.WorkerVersion)
	assert.Equal(t, Capabilities(), got.Capabilities)
	assert.Len(t, got.Capabilities, 8)
	for name, v := range got.Capabilities {
		assert.Equal(t, "True", v, name)
	}
	require.NotNil(t, got.WorkerMetadata)
	assert.Equal(t, "go", got.WorkerMetadata.RuntimeName)

	assert.Equal(t, StateInitialized, h.w.State())
	assert.Equal(t, "4.30.0", h.w.HostVersion())
	assert.Equal(t, "/home/site/wwwroot", h.w.AppDirectory())
}

func TestWorker_FunctionLoad(t *testing.T) {
	tests := []struct {
		name       string
		entryPoint string
		raw        []string
		wantStatus rpc.Status
		wantMsg    string
	}{
		{"instance method", "app.Greeter.Hello", helloBindings, rpc.StatusSuccess, ""},
		{"static function", "app.Fail", []string{`{"name":"name","type":"queueTrigger","direction":"In"}`}, rpc.StatusSuccess, ""},
		{"unknown entry point", "app.Greeter.Missing", nil, rpc.StatusFailure, "Missing"},
		{"two http outputs", "app.Fail", []string{
			`{"name":"a","type":"http","direction":"Out"}`,
			`{"name":"b","type":"http","direction":"Out"}`,
		}, rpc.StatusFailure, "HTTP"},
		{"binding without direction", "app.Fail", []string{`{"name":"name","type":"queueTrigger"}`}, rpc.StatusFailure, "direction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startWorker(t, Options{})
			resp := h.request(loadRequest("fn-1", tt.entryPoint, tt.raw...))

			require.NotNil(t, resp.FunctionLoadResponse)
			assert.Equal(t, "load-fn-1", resp.RequestId)
			assert.Equal(t, "fn-1", resp.FunctionLoadResponse.FunctionId)
			assert.Equal(t, tt.wantStatus, resp.FunctionLoadResponse.Result.Status)
			if tt.wantStatus == rpc.StatusSuccess {
				assert.Equal(t, 1, h.w.Registry().Len())
				assert.Equal(t, StateReady, h.w.State())
				return
			}
			require.NotNil(t, resp.FunctionLoadResponse.Result.Exception)
			assert.Contains(t, resp.FunctionLoadResponse.Result.Exception.Message, tt.wantMsg)
			assert.Equal(t, 0, h.w.Registry().Len())
		})
	}
}

func TestWorker_FunctionLoadCollection(t *testing.T) {
	metrics := NewMetrics("test")
	h := startWorker(t, Options{Metrics: metrics})

	resp := h.request(&rpc.StreamingMessage{
		RequestId: "batch",
		FunctionLoadRequestCollection: &rpc.FunctionLoadRequestCollection{
			FunctionLoadRequests: []*rpc.FunctionLoadRequest{
				loadRequest("fn-hello", "app.Greeter.Hello", helloBindings...).FunctionLoadRequest,
				loadRequest("fn-missing", "app.Nope").FunctionLoadRequest,
			},
		},
	})

	require.NotNil(t, resp.FunctionLoadResponseCollection)
	got := resp.FunctionLoadResponseCollection.FunctionLoadResponses
	require.Len(t, got, 2)
	assert.Equal(t, "fn-hello", got[0].FunctionId)
	assert.Equal(t, rpc.StatusSuccess, got[0].Result.Status)
	assert.Equal(t, "fn-missing", got[1].FunctionId)
	assert.Equal(t, rpc.StatusFailure, got[1].Result.Status)

	assert.Equal(t, []string{"fn-hello"}, h.w.Registry().IDs())
	assert.Equal(t, 1.0, metricValue(t, metrics.functionLoads.WithLabelValues("success")))
	assert.Equal(t, 1.0, metricValue(t, metrics.functionLoads.WithLabelValues("failure")))
}

func TestWorker_Invocation(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	metrics := NewMetrics("test")
	h := startWorker(t, Options{TracerProvider: tp, Metrics: metrics})
	h.load("fn-hello", "app.Greeter.Hello", helloBindings...)

	req := invocation("inv-1", "fn-hello", &rpc.ParameterBinding{Name: "name", Data: rpc.StringData("ann")})
	req.InvocationRequest.TraceContext = &rpc.RpcTraceContext{
		TraceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	req.InvocationRequest.RetryContext = &rpc.RetryContext{RetryCount: 1, MaxRetryCount: 3}
	resp := h.request(req)

	assert.Equal(t, "req-inv-1", resp.RequestId)
	require.NotNil(t, resp.InvocationResponse)
	inv := resp.InvocationResponse
	assert.Equal(t, "inv-1", inv.InvocationId)
	require.Equal(t, rpc.StatusSuccess, inv.Result.Status, "%+v", inv.Result.Exception)

	require.Len(t, inv.OutputData, 1)
	assert.Equal(t, "msg", inv.OutputData[0].Name)
	require.NotNil(t, inv.OutputData[0].Data.String)
	assert.Equal(t, "queued ann", *inv.OutputData[0].Data.String)

	require.NotNil(t, inv.ReturnValue)
	require.NotNil(t, inv.ReturnValue.String)
	assert.Equal(t, "Hello, ann", *inv.ReturnValue.String)

	logs := h.userLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "inv-1", logs[0].InvocationId)
	assert.Equal(t, "hello ann", logs[0].Message)
	assert.Equal(t, rpc.LogCategoryUser, logs[0].LogCategory)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())

	assert.Equal(t, 1.0, metricValue(t, metrics.invocationsTotal.WithLabelValues("app.Greeter.Hello", "success")))
	assert.Equal(t, 0.0, metricValue(t, metrics.inFlight))
}

func TestWorker_InvocationFailures(t *testing.T) {
	h := startWorker(t, Options{})
	h.load("fn-fail", "app.Fail", `{"name":"name","type":"queueTrigger","direction":"In"}`)

	t.Run("user error", func(t *testing.T) {
		resp := h.request(invocation("inv-fail", "fn-fail", &rpc.ParameterBinding{Name: "name", Data: rpc.StringData("x")}))
		inv := resp.InvocationResponse
		require.NotNil(t, inv)
		assert.Equal(t, rpc.StatusFailure, inv.Result.Status)
		require.NotNil(t, inv.Result.Exception)
		assert.Contains(t, inv.Result.Exception.Message, "bad input")
		assert.Nil(t, inv.ReturnValue)
	})

	t.Run("function not loaded", func(t *testing.T) {
		resp := h.request(invocation("inv-unknown", "fn-nope"))
		inv := resp.InvocationResponse
		require.NotNil(t, inv)
		assert.Equal(t, "inv-unknown", inv.InvocationId)
		assert.Equal(t, rpc.StatusFailure, inv.Result.Status)
		assert.Contains(t, inv.Result.Exception.Message, "fn-nope")
	})
}

func TestWorker_InvocationPanics(t *testing.T) {
	p := converters.NewProvider()
	p.MustRegister("Exploding", converters.ConverterFunc(func(context.Context, *converters.Context) converters.Result {
		panic("converter exploded")
	}))

	tests := []struct {
		name       string
		entryPoint string
		bindings   []string
		inputs     []*rpc.ParameterBinding
		wantMsg    string
	}{
		{
			name:       "converter",
			entryPoint: "app.Fail",
			bindings:   []string{`{"name":"name","type":"queueTrigger","direction":"In"}`},
			inputs:     []*rpc.ParameterBinding{{Name: "name", Data: rpc.StringData("x")}},
			wantMsg:    "converter exploded",
		},
		{
			name:       "return value encoding",
			entryPoint: "app.Explode",
			bindings:   []string{`{"name":"$return","type":"http","direction":"Out"}`},
			wantMsg:    "marshal exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics("test")
			h := startWorker(t, Options{Converters: converters.NewEngine(p), Metrics: metrics})
			h.load("fn", tt.entryPoint, tt.bindings...)

			resp := h.request(invocation("inv-1", "fn", tt.inputs...))
			inv := resp.InvocationResponse
			require.NotNil(t, inv)
			assert.Equal(t, "req-inv-1", resp.RequestId)
			assert.Equal(t, "inv-1", inv.InvocationId)
			assert.Equal(t, rpc.StatusFailure, inv.Result.Status)
			require.NotNil(t, inv.Result.Exception)
			assert.Contains(t, inv.Result.Exception.Message, tt.wantMsg)
			assert.NotEmpty(t, inv.Result.Exception.StackTrace)
			assert.Nil(t, inv.ReturnValue)
			assert.Empty(t, inv.OutputData)
			assert.Equal(t, 1.0, metricValue(t, metrics.invocationsTotal.WithLabelValues(tt.entryPoint, "failure")))
			assert.Equal(t, 0, h.w.inflight.len())
		})
	}
}

func TestWorker_ConcurrentInvocations(t *testing.T) {
	release := make(chan struct{})
	a := invoke.NewAssembly("app")
	require.NoError(t, a.RegisterStatic("app.Gate", func(ctx context.Context, name string) (string, error) {
		if name == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "done " + name, nil
	}, invoke.Param("ctx"), invoke.Param("name")))

	h := startWorker(t, Options{Loader: invoke.NewStaticLoader(a)})
	h.load("fn-gate", "app.Gate", `{"name":"name","type":"queueTrigger","direction":"In"}`)

	h.send(invocation("inv-slow", "fn-gate", &rpc.ParameterBinding{Name: "name", Data: rpc.StringData("slow")}))
	require.Eventually(t, func() bool { return h.w.inflight.len() == 1 }, 5*time.Second, 10*time.Millisecond)
	h.send(invocation("inv-fast", "fn-gate", &rpc.ParameterBinding{Name: "name", Data: rpc.StringData("fast")}))

	first := h.next()
	require.NotNil(t, first.InvocationResponse)
	assert.Equal(t, "inv-fast", first.InvocationResponse.InvocationId)
	assert.Equal(t, rpc.StatusSuccess, first.InvocationResponse.Result.Status)
	assert.Equal(t, StateInvoking, h.w.State())

	close(release)
	second := h.next()
	require.NotNil(t, second.InvocationResponse)
	assert.Equal(t, "inv-slow", second.InvocationResponse.InvocationId)
	assert.Equal(t, rpc.StatusSuccess, second.InvocationResponse.Result.Status)
	require.NotNil(t, second.InvocationResponse.ReturnValue)
	assert.Equal(t, "done slow", *second.InvocationResponse.ReturnValue.String)

	assert.Equal(t, 1, h.w.executor.Cache().Len())
}

func TestWorker_InvocationCancel(t *testing.T) {
	h := startWorker(t, Options{})
	h.load("fn-wait", "app.Wait")

	h.send(invocation("inv-wait", "fn-wait"))
	require.Eventually(t, func() bool { return h.w.State() == StateInvoking }, 5*time.Second, 10*time.Millisecond)

	h.send(&rpc.StreamingMessage{InvocationCancel: &rpc.InvocationCancel{InvocationId: "inv-wait"}})
	resp := h.next()

	require.NotNil(t, resp.InvocationResponse)
	assert.Equal(t, "inv-wait", resp.InvocationResponse.InvocationId)
	assert.Equal(t, rpc.StatusCancelled, resp.InvocationResponse.Result.Status)
	assert.Eventually(t, func() bool { return h.w.State() == StateReady }, 5*time.Second, 10*time.Millisecond)
}

func TestWorker_DuplicateInvocationID(t *testing.T) {
	h := startWorker(t, Options{})
	h.load("fn-wait", "app.Wait")

	h.send(invocation("dup", "fn-wait"))
	require.Eventually(t, func() bool { return h.w.State() == StateInvoking }, 5*time.Second, 10*time.Millisecond)

	resp := h.request(invocation("dup", "fn-wait"))
	require.NotNil(t, resp.InvocationResponse)
	assert.Equal(t, rpc.StatusFailure, resp.InvocationResponse.Result.Status)
	assert.Contains(t, resp.InvocationResponse.Result.Exception.Message, "Unable to track CancellationTokenSource with id dup")

	h.send(&rpc.StreamingMessage{InvocationCancel: &rpc.InvocationCancel{InvocationId: "dup"}})
	resp = h.next()
	require.NotNil(t, resp.InvocationResponse)
	assert.Equal(t, rpc.StatusCancelled, resp.InvocationResponse.Result.Status)
}

func TestWorker_FunctionsMetadata(t *testing.T) {
	const manifest = `[{
		"name": "Hello",
		"scriptFile": "app.so",
		"entryPoint": "app.Greeter.Hello",
		"bindings": [{"name": "name", "type": "queueTrigger", "direction": "In"}]
	}]`

	tests := []struct {
		name        string
		content     string
		wantDefault bool
		wantCount   int
	}{
		{"no metadata file", "", true, 0},
		{"empty list", "[]", true, 0},
		{"one function", manifest, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, metadata.MetadataFileName), []byte(tt.content), 0o600))
			}
			h := startWorker(t, Options{})

			resp := h.request(&rpc.StreamingMessage{
				FunctionsMetadataRequest: &rpc.FunctionsMetadataRequest{FunctionAppDirectory: dir},
			})
			require.NotNil(t, resp.FunctionMetadataResponse)
			got := resp.FunctionMetadataResponse
			assert.Equal(t, rpc.StatusSuccess, got.Result.Status)
			assert.Equal(t, tt.wantDefault, got.UseDefaultMetadataIndexing)
			assert.Len(t, got.FunctionMetadataResults, tt.wantCount)
		})
	}
}

func TestWorker_EnvironmentReload(t *testing.T) {
	env := map[string]string{}
	h := startWorker(t, Options{Setenv: func(k, v string) error {
		env[k] = v
		return nil
	}})
	h.load("fn-hello", "app.Greeter.Hello", helloBindings...)
	require.Equal(t, StateReady, h.w.State())

	resp := h.request(&rpc.StreamingMessage{
		RequestId: "reload",
		FunctionEnvironmentReloadRequest: &rpc.FunctionEnvironmentReloadRequest{
			EnvironmentVariables: map[string]string{"AzureWebJobsStorage": "UseDevelopmentStorage=true"},
			FunctionAppDirectory: "/new/app",
		},
	})

	require.NotNil(t, resp.FunctionEnvironmentReloadResponse)
	reload := resp.FunctionEnvironmentReloadResponse
	assert.Equal(t, rpc.StatusSuccess, reload.Result.Status)
	assert.Equal(t, Capabilities(), reload.Capabilities)
	assert.NotNil(t, reload.WorkerMetadata)

	assert.Equal(t, "UseDevelopmentStorage=true", env["AzureWebJobsStorage"])
	assert.Equal(t, 0, h.w.Registry().Len())
	assert.Equal(t, "/new/app", h.w.AppDirectory())
	assert.Equal(t, StateInitialized, h.w.State())

	resp = h.request(invocation("inv-after-reload", "fn-hello"))
	assert.Equal(t, rpc.StatusFailure, resp.InvocationResponse.Result.Status)
}

func TestWorker_StatusAndUnknownKinds(t *testing.T) {
	h := startWorker(t, Options{})

	// No handler for inbound logs or responses; both are ignored.
	h.send(&rpc.StreamingMessage{RpcLog: &rpc.RpcLog{Message: "ignored"}})
	h.send(&rpc.StreamingMessage{WorkerInitResponse: &rpc.WorkerInitResponse{}})
	h.send(&rpc.StreamingMessage{RequestId: "empty"})

	resp := h.request(&rpc.StreamingMessage{RequestId: "status", WorkerStatusRequest: &rpc.WorkerStatusRequest{}})
	assert.Equal(t, "status", resp.RequestId)
	assert.NotNil(t, resp.WorkerStatusResponse)
}

func TestWorker_Terminate(t *testing.T) {
	h := startWorker(t, Options{})
	h.load("fn-wait", "app.Wait")
	h.send(invocation("inv-wait", "fn-wait"))
	require.Eventually(t, func() bool { return h.w.State() == StateInvoking }, 5*time.Second, 10*time.Millisecond)

	h.send(&rpc.StreamingMessage{WorkerTerminate: &rpc.WorkerTerminate{GracePeriod: durationpb.New(50 * time.Millisecond)}})

	require.NoError(t, h.wait())
	assert.Equal(t, StateStopped, h.w.State())

	// The running invocation is cancelled once the grace period is over and
	// its response is flushed before the link closes.
	resp := h.next()
	require.NotNil(t, resp.InvocationResponse)
	assert.Equal(t, rpc.StatusCancelled, resp.InvocationResponse.Result.Status)
}

func TestWorker_Shutdown(t *testing.T) {
	t.Run("host closes the link", func(t *testing.T) {
		h := startWorker(t, Options{})
		require.NoError(t, h.host.Close())
		assert.NoError(t, h.wait())
	})

	t.Run("context cancelled", func(t *testing.T) {
		h := startWorker(t, Options{})
		h.cancel()
		assert.ErrorIs(t, h.wait(), context.Canceled)
	})

	t.Run("run twice", func(t *testing.T) {
		h := startWorker(t, Options{})
		_, end := NewPipe()
		assert.Error(t, h.w.Run(context.Background(), end))
	})
}
