// Package jsoncodec registers a gRPC codec named "json" that encodes the
// hand-written FunctionRpc messages with encoding/json.
package jsoncodec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const Name = "json"

type codec struct{}

func (codec) Name() string { return Name }

func (codec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsoncodec: marshal %T: %w", v, err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsoncodec: unmarshal %T: %w", v, err)
	}
	return nil
}

func init() { encoding.RegisterCodec(codec{}) }
