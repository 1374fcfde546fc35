package function

import (
	"fmt"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// LogSink receives log entries destined for the host.
type LogSink interface {
	Log(entry *rpc.RpcLog)
}

// LogSinkFunc adapts a function to LogSink.
type LogSinkFunc func(*rpc.RpcLog)

func (f LogSinkFunc) Log(entry *rpc.RpcLog) { f(entry) }

// Logger writes user log entries for one invocation. Entries are dropped
// when the invocation has no sink.
type Logger struct {
	invocationID string
	sink         LogSink
}

func (l *Logger) Debugf(format string, args ...any) { l.log(rpc.LogDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(rpc.LogInformation, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(rpc.LogWarning, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(rpc.LogError, format, args...) }

func (l *Logger) log(level rpc.RpcLogLevel, format string, args ...any) {
	if l.sink == nil {
		return
	}
	l.sink.Log(&rpc.RpcLog{
		InvocationId: l.invocationID,
		Category:     "Function.User",
		Level:        level,
		Message:      fmt.Sprintf(format, args...),
		LogCategory:  rpc.LogCategoryUser,
		Timestamp:    timestamppb.Now(),
	})
}
