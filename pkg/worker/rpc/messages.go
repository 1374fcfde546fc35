// Package rpc holds the wire messages exchanged with the Functions host over
// the FunctionRpc event stream.
//
// The types mirror the host's protobuf contract field for field. They carry
// JSON tags using the proto field names and travel over gRPC with the "json"
// codec (see transport/jsoncodec) or over NNG as a protobuf Struct body (see
// pkg/worker/protocol). Each oneof is modeled as a set of pointer fields of
// which at most one is set.
package rpc

import (
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ContentKind names the populated content case of a StreamingMessage.
type ContentKind string

const (
	KindNone                              ContentKind = ""
	KindStartStream                       ContentKind = "start_stream"
	KindWorkerInitRequest                 ContentKind = "worker_init_request"
	KindWorkerInitResponse                ContentKind = "worker_init_response"
	KindWorkerStatusRequest               ContentKind = "worker_status_request"
	KindWorkerStatusResponse              ContentKind = "worker_status_response"
	KindWorkerTerminate                   ContentKind = "worker_terminate"
	KindFunctionLoadRequest               ContentKind = "function_load_request"
	KindFunctionLoadResponse              ContentKind = "function_load_response"
	KindFunctionLoadRequestCollection     ContentKind = "function_load_request_collection"
	KindFunctionLoadResponseCollection    ContentKind = "function_load_response_collection"
	KindInvocationRequest                 ContentKind = "invocation_request"
	KindInvocationResponse                ContentKind = "invocation_response"
	KindInvocationCancel                  ContentKind = "invocation_cancel"
	KindFunctionEnvironmentReloadRequest  ContentKind = "function_environment_reload_request"
	KindFunctionEnvironmentReloadResponse ContentKind = "function_environment_reload_response"
	KindFunctionsMetadataRequest          ContentKind = "functions_metadata_request"
	KindFunctionMetadataResponse          ContentKind = "function_metadata_response"
	KindRpcLog                            ContentKind = "rpc_log"
)

// StreamingMessage is the envelope for every message on the event stream.
type StreamingMessage struct {
	RequestId string `json:"request_id,omitempty"`

	StartStream                       *StartStream                       `json:"start_stream,omitempty"`
	WorkerInitRequest                 *WorkerInitRequest                 `json:"worker_init_request,omitempty"`
	WorkerInitResponse                *WorkerInitResponse                `json:"worker_init_response,omitempty"`
	WorkerStatusRequest               *WorkerStatusRequest               `json:"worker_status_request,omitempty"`
	WorkerStatusResponse              *WorkerStatusResponse              `json:"worker_status_response,omitempty"`
	WorkerTerminate                   *WorkerTerminate                   `json:"worker_terminate,omitempty"`
	FunctionLoadRequest               *FunctionLoadRequest               `json:"function_load_request,omitempty"`
	FunctionLoadResponse              *FunctionLoadResponse              `json:"function_load_response,omitempty"`
	FunctionLoadRequestCollection     *FunctionLoadRequestCollection     `json:"function_load_request_collection,omitempty"`
	FunctionLoadResponseCollection    *FunctionLoadResponseCollection    `json:"function_load_response_collection,omitempty"`
	InvocationRequest                 *InvocationRequest                 `json:"invocation_request,omitempty"`
	InvocationResponse                *InvocationResponse                `json:"invocation_response,omitempty"`
	InvocationCancel                  *InvocationCancel                  `json:"invocation_cancel,omitempty"`
	FunctionEnvironmentReloadRequest  *FunctionEnvironmentReloadRequest  `json:"function_environment_reload_request,omitempty"`
	FunctionEnvironmentReloadResponse *FunctionEnvironmentReloadResponse `json:"function_environment_reload_response,omitempty"`
	FunctionsMetadataRequest          *FunctionsMetadataRequest          `json:"functions_metadata_request,omitempty"`
	FunctionMetadataResponse          *FunctionMetadataResponse          `json:"function_metadata_response,omitempty"`
	RpcLog                            *RpcLog                            `json:"rpc_log,omitempty"`
}

// Kind reports which content case is populated. The first non-nil case wins.
func (m *StreamingMessage) Kind() ContentKind {
	switch {
	case m == nil:
		return KindNone
	case m.StartStream != nil:
		return KindStartStream
	case m.WorkerInitRequest != nil:
		return KindWorkerInitRequest
	case m.WorkerInitResponse != nil:
		return KindWorkerInitResponse
	case m.WorkerStatusRequest != nil:
		return KindWorkerStatusRequest
	case m.WorkerStatusResponse != nil:
		return KindWorkerStatusResponse
	case m.WorkerTerminate != nil:
		return KindWorkerTerminate
	case m.FunctionLoadRequest != nil:
		return KindFunctionLoadRequest
	case m.FunctionLoadResponse != nil:
		return KindFunctionLoadResponse
	case m.FunctionLoadRequestCollection != nil:
		return KindFunctionLoadRequestCollection
	case m.FunctionLoadResponseCollection != nil:
		return KindFunctionLoadResponseCollection
	case m.InvocationRequest != nil:
		return KindInvocationRequest
	case m.InvocationResponse != nil:
		return KindInvocationResponse
	case m.InvocationCancel != nil:
		return KindInvocationCancel
	case m.FunctionEnvironmentReloadRequest != nil:
		return KindFunctionEnvironmentReloadRequest
	case m.FunctionEnvironmentReloadResponse != nil:
		return KindFunctionEnvironmentReloadResponse
	case m.FunctionsMetadataRequest != nil:
		return KindFunctionsMetadataRequest
	case m.FunctionMetadataResponse != nil:
		return KindFunctionMetadataResponse
	case m.RpcLog != nil:
		return KindRpcLog
	default:
		return KindNone
	}
}

// StartStream is the first message a worker sends after connecting.
type StartStream struct {
	WorkerId string `json:"worker_id,omitempty"`
}

// WorkerInitRequest is sent by the host once the stream is established.
type WorkerInitRequest struct {
	HostVersion          string            `json:"host_version,omitempty"`
	Capabilities         map[string]string `json:"capabilities,omitempty"`
	LogCategories        map[string]int32  `json:"log_categories,omitempty"`
	WorkerDirectory      string            `json:"worker_directory,omitempty"`
	FunctionAppDirectory string            `json:"function_app_directory,omitempty"`
}

// WorkerInitResponse advertises the worker capabilities to the host.
type WorkerInitResponse struct {
	WorkerVersion  string            `json:"worker_version,omitempty"`
	Capabilities   map[string]string `json:"capabilities,omitempty"`
	WorkerMetadata *WorkerMetadata   `json:"worker_metadata,omitempty"`
	Result         *StatusResult     `json:"result,omitempty"`
}

// WorkerMetadata describes the worker runtime.
type WorkerMetadata struct {
	RuntimeName      string            `json:"runtime_name,omitempty"`
	RuntimeVersion   string            `json:"runtime_version,omitempty"`
	WorkerVersion    string            `json:"worker_version,omitempty"`
	WorkerBitness    string            `json:"worker_bitness,omitempty"`
	CustomProperties map[string]string `json:"custom_properties,omitempty"`
}

type WorkerStatusRequest struct{}

type WorkerStatusResponse struct{}

// WorkerTerminate asks the worker to shut down within the grace period.
type WorkerTerminate struct {
	GracePeriod *durationpb.Duration `json:"grace_period,omitempty"`
}

// Status is the outcome carried by StatusResult.
type Status int32

const (
	StatusFailure   Status = 0
	StatusSuccess   Status = 1
	StatusCancelled Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusFailure:
		return "Failure"
	case StatusSuccess:
		return "Success"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// StatusResult is attached to every response.
type StatusResult struct {
	Status    Status        `json:"status"`
	Result    string        `json:"result,omitempty"`
	Exception *RpcException `json:"exception,omitempty"`
	Logs      []*RpcLog     `json:"logs,omitempty"`
}

// Success returns a successful StatusResult.
func Success() *StatusResult {
	return &StatusResult{Status: StatusSuccess}
}

// Failure returns a failed StatusResult carrying the error as an exception.
func Failure(err error) *StatusResult {
	return &StatusResult{Status: StatusFailure, Exception: NewException(err)}
}

// RpcException is the structured form of an error sent to the host.
type RpcException struct {
	Source          string `json:"source,omitempty"`
	StackTrace      string `json:"stack_trace,omitempty"`
	Message         string `json:"message,omitempty"`
	IsUserException bool   `json:"is_user_exception,omitempty"`
	Type            string `json:"type,omitempty"`
}

// FunctionLoadRequest asks the worker to load one function.
type FunctionLoadRequest struct {
	FunctionId               string               `json:"function_id,omitempty"`
	Metadata                 *RpcFunctionMetadata `json:"metadata,omitempty"`
	ManagedDependencyEnabled bool                 `json:"managed_dependency_enabled,omitempty"`
}

type FunctionLoadResponse struct {
	FunctionId             string        `json:"function_id,omitempty"`
	Result                 *StatusResult `json:"result,omitempty"`
	IsDependencyDownloaded bool          `json:"is_dependency_downloaded,omitempty"`
}

type FunctionLoadRequestCollection struct {
	FunctionLoadRequests []*FunctionLoadRequest `json:"function_load_requests,omitempty"`
}

type FunctionLoadResponseCollection struct {
	FunctionLoadResponses []*FunctionLoadResponse `json:"function_load_responses,omitempty"`
}

// RpcFunctionMetadata is the authoritative description of a function.
type RpcFunctionMetadata struct {
	Name                     string                  `json:"name,omitempty"`
	Directory                string                  `json:"directory,omitempty"`
	ScriptFile               string                  `json:"script_file,omitempty"`
	EntryPoint               string                  `json:"entry_point,omitempty"`
	Bindings                 map[string]*BindingInfo `json:"bindings,omitempty"`
	IsProxy                  bool                    `json:"is_proxy,omitempty"`
	Status                   *StatusResult           `json:"status,omitempty"`
	Language                 string                  `json:"language,omitempty"`
	RawBindings              []string                `json:"raw_bindings,omitempty"`
	FunctionId               string                  `json:"function_id,omitempty"`
	ManagedDependencyEnabled bool                    `json:"managed_dependency_enabled,omitempty"`
	RetryOptions             *RpcRetryOptions        `json:"retry_options,omitempty"`
	Properties               map[string]string       `json:"properties,omitempty"`
}

// BindingDirection is the wire direction of a binding.
type BindingDirection int32

const (
	DirectionIn    BindingDirection = 0
	DirectionOut   BindingDirection = 1
	DirectionInOut BindingDirection = 2
)

// BindingDataType is the wire data type hint of a binding.
type BindingDataType int32

const (
	DataTypeUndefined BindingDataType = 0
	DataTypeString    BindingDataType = 1
	DataTypeBinary    BindingDataType = 2
	DataTypeStream    BindingDataType = 3
)

// BindingInfo is the per-binding entry of RpcFunctionMetadata.Bindings.
type BindingInfo struct {
	Type       string            `json:"type,omitempty"`
	Direction  BindingDirection  `json:"direction"`
	DataType   BindingDataType   `json:"data_type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RetryStrategy selects how RpcRetryOptions intervals are interpreted.
type RetryStrategy int32

const (
	RetryExponentialBackoff RetryStrategy = 0
	RetryFixedDelay         RetryStrategy = 1
)

// RpcRetryOptions is the retry policy a function declares for the host.
type RpcRetryOptions struct {
	MaxRetryCount   int32                `json:"max_retry_count,omitempty"`
	DelayInterval   *durationpb.Duration `json:"delay_interval,omitempty"`
	MinimumInterval *durationpb.Duration `json:"minimum_interval,omitempty"`
	MaximumInterval *durationpb.Duration `json:"maximum_interval,omitempty"`
	RetryStrategy   RetryStrategy        `json:"retry_strategy"`
}

// InvocationRequest asks the worker to run a loaded function.
type InvocationRequest struct {
	InvocationId    string                `json:"invocation_id,omitempty"`
	FunctionId      string                `json:"function_id,omitempty"`
	InputData       []*ParameterBinding   `json:"input_data,omitempty"`
	TriggerMetadata map[string]*TypedData `json:"trigger_metadata,omitempty"`
	TraceContext    *RpcTraceContext      `json:"trace_context,omitempty"`
	RetryContext    *RetryContext         `json:"retry_context,omitempty"`
}

// RpcTraceContext carries W3C trace context for the invocation.
type RpcTraceContext struct {
	TraceParent string            `json:"trace_parent,omitempty"`
	TraceState  string            `json:"trace_state,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type RetryContext struct {
	RetryCount    int32         `json:"retry_count,omitempty"`
	MaxRetryCount int32         `json:"max_retry_count,omitempty"`
	Exception     *RpcException `json:"exception,omitempty"`
}

// ParameterBinding is a named typed value.
type ParameterBinding struct {
	Name string     `json:"name,omitempty"`
	Data *TypedData `json:"data,omitempty"`
}

type InvocationResponse struct {
	InvocationId string              `json:"invocation_id,omitempty"`
	OutputData   []*ParameterBinding `json:"output_data,omitempty"`
	ReturnValue  *TypedData          `json:"return_value,omitempty"`
	Result       *StatusResult       `json:"result,omitempty"`
}

// InvocationCancel asks the worker to signal cancellation to an invocation.
type InvocationCancel struct {
	InvocationId string               `json:"invocation_id,omitempty"`
	GracePeriod  *durationpb.Duration `json:"grace_period,omitempty"`
}

type FunctionEnvironmentReloadRequest struct {
	EnvironmentVariables map[string]string `json:"environment_variables,omitempty"`
	FunctionAppDirectory string            `json:"function_app_directory,omitempty"`
}

type FunctionEnvironmentReloadResponse struct {
	WorkerMetadata *WorkerMetadata   `json:"worker_metadata,omitempty"`
	Capabilities   map[string]string `json:"capabilities,omitempty"`
	Result         *StatusResult     `json:"result,omitempty"`
}

type FunctionsMetadataRequest struct {
	FunctionAppDirectory string `json:"function_app_directory,omitempty"`
}

type FunctionMetadataResponse struct {
	FunctionMetadataResults    []*RpcFunctionMetadata `json:"function_metadata_results,omitempty"`
	Result                     *StatusResult          `json:"result,omitempty"`
	UseDefaultMetadataIndexing bool                   `json:"use_default_metadata_indexing,omitempty"`
}

// RpcLogLevel is the severity of an RpcLog.
type RpcLogLevel int32

const (
	LogTrace       RpcLogLevel = 0
	LogDebug       RpcLogLevel = 1
	LogInformation RpcLogLevel = 2
	LogWarning     RpcLogLevel = 3
	LogError       RpcLogLevel = 4
	LogCritical    RpcLogLevel = 5
	LogNone        RpcLogLevel = 6
)

// RpcLogCategory separates user logs from worker system logs.
type RpcLogCategory int32

const (
	LogCategoryUser         RpcLogCategory = 0
	LogCategorySystem       RpcLogCategory = 1
	LogCategoryCustomMetric RpcLogCategory = 2
)

// RpcLog forwards a log entry to the host.
type RpcLog struct {
	InvocationId string                 `json:"invocation_id,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Level        RpcLogLevel            `json:"level"`
	Message      string                 `json:"message,omitempty"`
	EventId      string                 `json:"event_id,omitempty"`
	Exception    *RpcException          `json:"exception,omitempty"`
	Properties   map[string]string      `json:"properties,omitempty"`
	LogCategory  RpcLogCategory         `json:"log_category"`
	Timestamp    *timestamppb.Timestamp `json:"timestamp,omitempty"`
}
