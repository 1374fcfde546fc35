package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// EncodeEnvelope converts msg into its kind id and a serialized protobuf
// Struct holding the envelope's JSON form. Struct numbers are doubles, so
// integers beyond 2^53 lose precision on this path.
func EncodeEnvelope(msg *rpc.StreamingMessage) (uint32, []byte, error) {
	kindID, err := DefaultRegistry.ID(msg.Kind())
	if err != nil {
		return 0, nil, err
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal body: %w", err)
	}
	return kindID, data, nil
}

// DecodeEnvelope parses a Struct body into an envelope and checks that its
// populated case matches kindID.
func DecodeEnvelope(kindID uint32, data []byte) (*rpc.StreamingMessage, error) {
	want, err := DefaultRegistry.Kind(kindID)
	if err != nil {
		return nil, err
	}

	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", want, err)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", want, err)
	}
	msg := &rpc.StreamingMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", want, err)
	}
	if got := msg.Kind(); got != want {
		return nil, fmt.Errorf("kind id 0x%06X announces %s but body holds %q", kindID, want, got)
	}
	return msg, nil
}

// Frame encodes msg into a framed body ready to send.
func Frame(msg *rpc.StreamingMessage, seq uint32) ([]byte, error) {
	kindID, data, err := EncodeEnvelope(msg)
	if err != nil {
		return nil, err
	}
	return NewMessageBody(kindID, seq, data), nil
}

// Unframe parses a framed body into its sequence number and envelope.
func Unframe(body []byte) (uint32, *rpc.StreamingMessage, error) {
	_, kindID, seq, data, err := ParseMessageBody(body)
	if err != nil {
		return 0, nil, err
	}
	msg, err := DecodeEnvelope(kindID, data)
	if err != nil {
		return seq, nil, err
	}
	return seq, msg, nil
}
