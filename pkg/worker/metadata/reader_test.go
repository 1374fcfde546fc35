package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

const sampleMetadata = `[
  {
    "name": "HttpTrigger",
    "scriptFile": "app.so",
    "entryPoint": "app.Handlers.Hello",
    "language": "go",
    "properties": {"IsCodeless": false},
    "bindings": [
      {"name": "req", "type": "httpTrigger", "direction": "In", "authLevel": "Anonymous", "methods": ["get", "post"]},
      {"name": "$return", "type": "http", "direction": "Out"}
    ]
  },
  {
    "name": "QueueTrigger",
    "scriptFile": "app.so",
    "entryPoint": "app.Handlers.Queue",
    "bindings": [
      {"name": "messages", "type": "queueTrigger", "direction": "In", "dataType": "String", "cardinality": "Many"}
    ],
    "retry": {"strategy": "fixedDelay", "maxRetryCount": 5, "delayInterval": "00:00:10"}
  }
]`

func TestReadFunctionsMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte(sampleMetadata), 0o600))

	funcs, err := ReadFunctionsMetadata(dir)
	require.NoError(t, err)
	require.Len(t, funcs, 2)

	http := funcs[0]
	assert.Equal(t, "HttpTrigger", http.Name)
	assert.Equal(t, dir, http.Directory)
	assert.Equal(t, WorkerLanguage, http.Language)
	assert.NotEmpty(t, http.FunctionId)
	assert.Len(t, http.RawBindings, 2)
	assert.Equal(t, "false", http.Properties["IsCodeless"])
	require.Contains(t, http.Bindings, "req")
	assert.Equal(t, "httpTrigger", http.Bindings["req"].Type)
	assert.Equal(t, rpc.DirectionOut, http.Bindings["$return"].Direction)

	queue := funcs[1]
	assert.NotEqual(t, http.FunctionId, queue.FunctionId)
	assert.Equal(t, rpc.DataTypeString, queue.Bindings["messages"].DataType)
	require.NotNil(t, queue.RetryOptions)
	assert.Equal(t, rpc.RetryFixedDelay, queue.RetryOptions.RetryStrategy)
	assert.Equal(t, 10*time.Second, queue.RetryOptions.DelayInterval.AsDuration())
}

func TestReadFunctionsMetadata_Missing(t *testing.T) {
	funcs, err := ReadFunctionsMetadata(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, funcs)
}

func TestParseFunctionsMetadata_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"no bindings", `[{"name":"Fn","bindings":[]}]`, "At least one binding must be declared in function `Fn`"},
		{"binding without type", `[{"name":"Fn","bindings":[{"name":"a","direction":"In"}]}]`, "Bindings must declare a direction and type."},
		{"not an array", `{"name":"Fn"}`, "invalid functions.metadata"},
		{"bad interval", `[{"name":"Fn","bindings":[{"name":"a","type":"queueTrigger","direction":"In"}],"retry":{"delayInterval":"soon"}}]`, "invalid interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFunctionsMetadata([]byte(tt.doc), "/app")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10s", 10 * time.Second},
		{"00:00:10", 10 * time.Second},
		{"01:30:00", 90 * time.Minute},
		{"1.00:00:00", 24 * time.Hour},
		{"00:00:00.5", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
