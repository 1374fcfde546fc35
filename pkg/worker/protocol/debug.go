package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// DebugString returns a human-readable summary of a framed body.
func DebugString(body []byte) string {
	version, kindID, seq, data, err := ParseMessageBody(body)
	if err != nil {
		return fmt.Sprintf("Message[ParseError: %v]", err)
	}

	return fmt.Sprintf("Message{Ver=%d, Kind=%s(0x%06X), Seq=%d, BodyLen=%d}",
		version, KindIDString(kindID), kindID, seq, len(data))
}

// DebugStringWithBody returns a detailed representation of a framed body.
// The Struct payload is formatted as JSON using protojson.
func DebugStringWithBody(body []byte) string {
	version, kindID, seq, data, err := ParseMessageBody(body)
	if err != nil {
		return fmt.Sprintf("Message[ParseError: %v]", err)
	}

	bodyStr := "<empty>"
	if len(data) > 0 {
		s := &structpb.Struct{}
		if err := proto.Unmarshal(data, s); err != nil {
			if len(data) <= 32 {
				bodyStr = fmt.Sprintf("%x", data)
			} else {
				bodyStr = fmt.Sprintf("%x... (%d bytes)", data[:32], len(data))
			}
		} else if jsonBytes, err := protojson.Marshal(s); err == nil {
			bodyStr = string(jsonBytes)
		} else {
			bodyStr = fmt.Sprintf("<json error: %v>", err)
		}
	}

	return fmt.Sprintf("Message{Ver=%d, Kind=%s(0x%06X), Seq=%d, Body=%s}",
		version, KindIDString(kindID), kindID, seq, bodyStr)
}

// MessageInfo holds parsed message information.
type MessageInfo struct {
	Version uint8
	KindID  uint32
	Seq     uint32
	BodyLen int
	IsReq   bool
	IsResp  bool
	IsEvent bool
}

// ParseMessageInfo parses the framed body and returns structured information.
func ParseMessageInfo(body []byte) (*MessageInfo, error) {
	version, kindID, seq, data, err := ParseMessageBody(body)
	if err != nil {
		return nil, err
	}

	return &MessageInfo{
		Version: version,
		KindID:  kindID,
		Seq:     seq,
		BodyLen: len(data),
		IsReq:   IsRequest(kindID),
		IsResp:  IsResponse(kindID),
		IsEvent: IsEvent(kindID),
	}, nil
}

// String returns a string representation of MessageInfo.
func (i *MessageInfo) String() string {
	return fmt.Sprintf("MessageInfo{Ver=%d, Kind=%s(0x%06X), Seq=%d, BodyLen=%d, IsReq=%v, IsResp=%v, IsEvent=%v}",
		i.Version, KindIDString(i.KindID), i.KindID, i.Seq, i.BodyLen, i.IsReq, i.IsResp, i.IsEvent)
}
