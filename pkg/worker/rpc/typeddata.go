package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// DataCase names the populated case of a TypedData.
type DataCase int

const (
	DataNone DataCase = iota
	DataString
	DataJSON
	DataBytes
	DataStream
	DataHTTP
	DataInt
	DataDouble
	DataCollectionBytes
	DataCollectionString
	DataCollectionDouble
	DataCollectionSint64
	DataModelBindingData
	DataCollectionModelBindingData
)

var dataCaseNames = map[DataCase]string{
	DataNone:                       "None",
	DataString:                     "String",
	DataJSON:                       "Json",
	DataBytes:                      "Bytes",
	DataStream:                     "Stream",
	DataHTTP:                       "Http",
	DataInt:                        "Int",
	DataDouble:                     "Double",
	DataCollectionBytes:            "CollectionBytes",
	DataCollectionString:           "CollectionString",
	DataCollectionDouble:           "CollectionDouble",
	DataCollectionSint64:           "CollectionSint64",
	DataModelBindingData:           "ModelBindingData",
	DataCollectionModelBindingData: "CollectionModelBindingData",
}

func (c DataCase) String() string {
	if name, ok := dataCaseNames[c]; ok {
		return name
	}
	return fmt.Sprintf("DataCase(%d)", int(c))
}

// TypedData is a value exchanged with the host. At most one field is set.
type TypedData struct {
	String                     *string                     `json:"string,omitempty"`
	Json                       *string                     `json:"json,omitempty"`
	Bytes                      []byte                      `json:"bytes,omitempty"`
	Stream                     []byte                      `json:"stream,omitempty"`
	Http                       *RpcHttp                    `json:"http,omitempty"`
	Int                        *int64                      `json:"int,omitempty"`
	Double                     *float64                    `json:"double,omitempty"`
	CollectionBytes            *CollectionBytes            `json:"collection_bytes,omitempty"`
	CollectionString           *CollectionString           `json:"collection_string,omitempty"`
	CollectionDouble           *CollectionDouble           `json:"collection_double,omitempty"`
	CollectionSint64           *CollectionSInt64           `json:"collection_sint64,omitempty"`
	ModelBindingData           *ModelBindingData           `json:"model_binding_data,omitempty"`
	CollectionModelBindingData *CollectionModelBindingData `json:"collection_model_binding_data,omitempty"`
}

// Case reports the populated case.
func (d *TypedData) Case() DataCase {
	switch {
	case d == nil:
		return DataNone
	case d.String != nil:
		return DataString
	case d.Json != nil:
		return DataJSON
	case d.Bytes != nil:
		return DataBytes
	case d.Stream != nil:
		return DataStream
	case d.Http != nil:
		return DataHTTP
	case d.Int != nil:
		return DataInt
	case d.Double != nil:
		return DataDouble
	case d.CollectionBytes != nil:
		return DataCollectionBytes
	case d.CollectionString != nil:
		return DataCollectionString
	case d.CollectionDouble != nil:
		return DataCollectionDouble
	case d.CollectionSint64 != nil:
		return DataCollectionSint64
	case d.ModelBindingData != nil:
		return DataModelBindingData
	case d.CollectionModelBindingData != nil:
		return DataCollectionModelBindingData
	default:
		return DataNone
	}
}

type CollectionBytes struct {
	Bytes [][]byte `json:"bytes,omitempty"`
}

type CollectionString struct {
	String []string `json:"string,omitempty"`
}

type CollectionDouble struct {
	Double []float64 `json:"double,omitempty"`
}

type CollectionSInt64 struct {
	Sint64 []int64 `json:"sint64,omitempty"`
}

// ModelBindingData is the opaque payload handed to deferred-binding converters.
type ModelBindingData struct {
	Version     string `json:"version,omitempty"`
	Source      string `json:"source,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"content,omitempty"`
}

type CollectionModelBindingData struct {
	ModelBindingData []*ModelBindingData `json:"model_binding_data,omitempty"`
}

// RpcHttp is the HTTP request or response shape used by http bindings.
type RpcHttp struct {
	Method                   string            `json:"method,omitempty"`
	Url                      string            `json:"url,omitempty"`
	Headers                  map[string]string `json:"headers,omitempty"`
	Body                     *TypedData        `json:"body,omitempty"`
	Params                   map[string]string `json:"params,omitempty"`
	StatusCode               string            `json:"status_code,omitempty"`
	Query                    map[string]string `json:"query,omitempty"`
	EnableContentNegotiation bool              `json:"enable_content_negotiation,omitempty"`
	RawBody                  *TypedData        `json:"raw_body,omitempty"`
}

func StringData(s string) *TypedData { return &TypedData{String: &s} }

func JSONData(s string) *TypedData { return &TypedData{Json: &s} }

func BytesData(b []byte) *TypedData {
	if b == nil {
		b = []byte{}
	}
	return &TypedData{Bytes: b}
}

func IntData(i int64) *TypedData { return &TypedData{Int: &i} }

func DoubleData(f float64) *TypedData { return &TypedData{Double: &f} }

// ToTypedData converts a Go value produced by a function into its wire form.
// Values with no dedicated case are JSON encoded; if encoding fails the value
// is sent as its fmt representation.
func ToTypedData(value any) *TypedData {
	switch v := value.(type) {
	case nil:
		return &TypedData{}
	case *TypedData:
		return v
	case []byte:
		return BytesData(v)
	case string:
		return StringData(v)
	case *RpcHttp:
		return &TypedData{Http: v}
	case *ModelBindingData:
		return &TypedData{ModelBindingData: v}
	case int:
		return IntData(int64(v))
	case int8:
		return IntData(int64(v))
	case int16:
		return IntData(int64(v))
	case int32:
		return IntData(int64(v))
	case int64:
		return IntData(v)
	case uint8:
		return IntData(int64(v))
	case uint16:
		return IntData(int64(v))
	case uint32:
		return IntData(int64(v))
	case uint:
		return uintData(uint64(v))
	case uint64:
		return uintData(v)
	case float32:
		return DoubleData(float64(v))
	case float64:
		return DoubleData(v)
	case []string:
		return &TypedData{CollectionString: &CollectionString{String: v}}
	case []float64:
		return &TypedData{CollectionDouble: &CollectionDouble{Double: v}}
	case []int64:
		return &TypedData{CollectionSint64: &CollectionSInt64{Sint64: v}}
	case [][]byte:
		return &TypedData{CollectionBytes: &CollectionBytes{Bytes: v}}
	}

	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return &TypedData{}
	}
	// Named byte slices such as metadata.ByteMemory travel as bytes.
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return BytesData(rv.Bytes())
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return StringData(fmt.Sprint(value))
	}
	return JSONData(string(encoded))
}

// uintData keeps unsigned values exact: values past the sint64 range are sent
// as a JSON number.
func uintData(v uint64) *TypedData {
	if v > math.MaxInt64 {
		return JSONData(strconv.FormatUint(v, 10))
	}
	return IntData(int64(v))
}
