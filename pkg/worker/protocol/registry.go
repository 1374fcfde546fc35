package protocol

import (
	"fmt"
	"sync"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// Registry maps 24-bit kind ids to envelope content kinds.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint32]rpc.ContentKind
	byKind map[rpc.ContentKind]uint32
}

// NewRegistry creates a new empty kind registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint32]rpc.ContentKind),
		byKind: make(map[rpc.ContentKind]uint32),
	}
}

// Register maps kindID to kind, replacing any previous mapping of either.
func (r *Registry) Register(kindID uint32, kind rpc.ContentKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[kindID] = kind
	r.byKind[kind] = kindID
}

// MustRegister registers a kind and panics when the id or kind is taken.
// Useful for package-level initialization.
func (r *Registry) MustRegister(kindID uint32, kind rpc.ContentKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[kindID]; exists {
		panic(fmt.Sprintf("kind id 0x%06X already registered", kindID))
	}
	if _, exists := r.byKind[kind]; exists {
		panic(fmt.Sprintf("kind %s already registered", kind))
	}
	r.byID[kindID] = kind
	r.byKind[kind] = kindID
}

// Kind returns the content kind for a kind id.
func (r *Registry) Kind(kindID uint32) (rpc.ContentKind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.byID[kindID]
	if !ok {
		return rpc.KindNone, fmt.Errorf("unknown message kind: 0x%06X", kindID)
	}
	return kind, nil
}

// ID returns the kind id for a content kind.
func (r *Registry) ID(kind rpc.ContentKind) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKind[kind]
	if !ok {
		return 0, fmt.Errorf("no kind id for %q", kind)
	}
	return id, nil
}

// DefaultRegistry holds every kind of the FunctionRpc stream.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(KindWorkerInitRequest, rpc.KindWorkerInitRequest)
	r.MustRegister(KindWorkerInitResponse, rpc.KindWorkerInitResponse)
	r.MustRegister(KindWorkerStatusRequest, rpc.KindWorkerStatusRequest)
	r.MustRegister(KindWorkerStatusResponse, rpc.KindWorkerStatusResponse)
	r.MustRegister(KindFunctionEnvironmentReloadRequest, rpc.KindFunctionEnvironmentReloadRequest)
	r.MustRegister(KindFunctionEnvironmentReloadResponse, rpc.KindFunctionEnvironmentReloadResponse)
	r.MustRegister(KindWorkerTerminate, rpc.KindWorkerTerminate)
	r.MustRegister(KindFunctionLoadRequest, rpc.KindFunctionLoadRequest)
	r.MustRegister(KindFunctionLoadResponse, rpc.KindFunctionLoadResponse)
	r.MustRegister(KindFunctionLoadRequestCollection, rpc.KindFunctionLoadRequestCollection)
	r.MustRegister(KindFunctionLoadResponseCollection, rpc.KindFunctionLoadResponseCollection)
	r.MustRegister(KindFunctionsMetadataRequest, rpc.KindFunctionsMetadataRequest)
	r.MustRegister(KindFunctionMetadataResponse, rpc.KindFunctionMetadataResponse)
	r.MustRegister(KindInvocationRequest, rpc.KindInvocationRequest)
	r.MustRegister(KindInvocationResponse, rpc.KindInvocationResponse)
	r.MustRegister(KindInvocationCancel, rpc.KindInvocationCancel)
	r.MustRegister(KindStartStream, rpc.KindStartStream)
	r.MustRegister(KindRpcLog, rpc.KindRpcLog)
	return r
}

// KindIDString returns a human-readable name for a kind id.
func KindIDString(kindID uint32) string {
	if kind, err := DefaultRegistry.Kind(kindID); err == nil {
		return string(kind)
	}
	return fmt.Sprintf("Unknown(0x%06X)", kindID)
}
