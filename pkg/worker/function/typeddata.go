package function

import (
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// FromTypedData materializes a wire value as the Go value converters see.
// Json payloads stay strings so converters can decode them into the target.
func FromTypedData(d *rpc.TypedData) any {
	switch d.Case() {
	case rpc.DataString:
		return *d.String
	case rpc.DataJSON:
		return *d.Json
	case rpc.DataBytes:
		return d.Bytes
	case rpc.DataStream:
		return d.Stream
	case rpc.DataHTTP:
		return d.Http
	case rpc.DataInt:
		return *d.Int
	case rpc.DataDouble:
		return *d.Double
	case rpc.DataCollectionBytes:
		return d.CollectionBytes.Bytes
	case rpc.DataCollectionString:
		return d.CollectionString.String
	case rpc.DataCollectionDouble:
		return d.CollectionDouble.Double
	case rpc.DataCollectionSint64:
		return d.CollectionSint64.Sint64
	case rpc.DataModelBindingData:
		return d.ModelBindingData
	case rpc.DataCollectionModelBindingData:
		return d.CollectionModelBindingData
	default:
		return nil
	}
}

// Materialize converts named wire values into a map of Go values.
func Materialize(bindings []*rpc.ParameterBinding) map[string]any {
	out := make(map[string]any, len(bindings))
	for _, b := range bindings {
		if b == nil {
			continue
		}
		out[b.Name] = FromTypedData(b.Data)
	}
	return out
}

// MaterializeMap converts a wire value map into a map of Go values.
func MaterializeMap(data map[string]*rpc.TypedData) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = FromTypedData(v)
	}
	return out
}
