package function

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

type counter struct{ n int }

func TestFeatures_GetOrAddCreatesOnce(t *testing.T) {
	f := NewFeatures()

	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]*counter, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetOrAdd(f, func() *counter {
				mu.Lock()
				created++
				mu.Unlock()
				return &counter{}
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	got, ok := Get[*counter](f)
	require.True(t, ok)
	assert.Same(t, results[0], got)

	_, ok = Get[string](f)
	assert.False(t, ok)

	Set(f, "hello")
	s, ok := Get[string](f)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestContext_LookupInput(t *testing.T) {
	fc := NewContext(context.Background(), "inv-1", nil,
		WithInputData(map[string]any{"Order": "from-input"}),
		WithTriggerMetadata(map[string]any{"order": "from-trigger", "sys": 1}),
	)

	tests := []struct {
		name string
		key  string
		want any
		ok   bool
	}{
		{"exact input", "Order", "from-input", true},
		{"case folded input wins", "ORDER", "from-input", true},
		{"trigger metadata", "SYS", 1, true},
		{"missing", "nope", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := fc.LookupInput(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestOutputBinding(t *testing.T) {
	fc := NewContext(context.Background(), "inv-1", nil)

	out := Output[string](fc, "queueOut")
	_, ok := out.Get()
	assert.False(t, ok)

	out.Set("msg")
	v, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "msg", v)
	assert.Equal(t, map[string]any{"queueOut": "msg"}, fc.Bindings().OutputBindings())

	_, ok = fc.Bindings().InvocationResult()
	assert.False(t, ok)
	fc.Bindings().SetInvocationResult(nil)
	r, ok := fc.Bindings().InvocationResult()
	assert.True(t, ok)
	assert.Nil(t, r)
}

func TestServices(t *testing.T) {
	s := NewServices()
	ProvideValue(s, &counter{n: 7})
	Provide(s, func(*Context) (string, error) { return "", errors.New("no config") })

	v, ok, err := s.GetService(reflect.TypeOf(&counter{}), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, v.(*counter).n)

	_, ok, err = s.GetService(reflect.TypeOf(""), nil)
	assert.True(t, ok)
	assert.ErrorContains(t, err, "no config")

	_, ok, err = s.GetService(reflect.TypeOf(0), nil)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestLogger_ForwardsToSink(t *testing.T) {
	var got []*rpc.RpcLog
	fc := NewContext(context.Background(), "inv-9", nil, WithLogSink(LogSinkFunc(func(l *rpc.RpcLog) {
		got = append(got, l)
	})))

	fc.Logger().Infof("processed %d items", 3)
	fc.Logger().Errorf("boom")

	require.Len(t, got, 2)
	assert.Equal(t, "inv-9", got[0].InvocationId)
	assert.Equal(t, "processed 3 items", got[0].Message)
	assert.Equal(t, rpc.LogInformation, got[0].Level)
	assert.Equal(t, rpc.LogCategoryUser, got[0].LogCategory)
	assert.NotNil(t, got[0].Timestamp)
	assert.Equal(t, rpc.LogError, got[1].Level)

	NewContext(context.Background(), "x", nil).Logger().Infof("dropped")
}

func TestFromTypedData(t *testing.T) {
	mbd := &rpc.ModelBindingData{Source: "AzureStorageBlobs"}
	tests := []struct {
		name string
		in   *rpc.TypedData
		want any
	}{
		{"nil", nil, nil},
		{"empty", &rpc.TypedData{}, nil},
		{"string", rpc.StringData("s"), "s"},
		{"json", rpc.JSONData(`{"a":1}`), `{"a":1}`},
		{"bytes", rpc.BytesData([]byte("b")), []byte("b")},
		{"int", rpc.IntData(4), int64(4)},
		{"double", rpc.DoubleData(0.5), 0.5},
		{"strings", &rpc.TypedData{CollectionString: &rpc.CollectionString{String: []string{"a"}}}, []string{"a"}},
		{"sint64", &rpc.TypedData{CollectionSint64: &rpc.CollectionSInt64{Sint64: []int64{1}}}, []int64{1}},
		{"model binding data", &rpc.TypedData{ModelBindingData: mbd}, mbd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromTypedData(tt.in))
		})
	}

	got := Materialize([]*rpc.ParameterBinding{{Name: "a", Data: rpc.StringData("x")}, nil})
	assert.Equal(t, map[string]any{"a": "x"}, got)
}

func TestGoContextRoundTrip(t *testing.T) {
	fc := NewContext(context.Background(), "inv", nil)
	ctx := NewGoContext(context.Background(), fc)
	got, ok := FromGoContext(ctx)
	require.True(t, ok)
	assert.Same(t, fc, got)

	_, ok = FromGoContext(context.Background())
	assert.False(t, ok)
}
