// Package protocol implements the worker's host link framing over NNG.
//
// Message Format:
//
//	Header (8 bytes):
//	  ┌─────────┬──────────┬─────────────────┐
//	  │ Version │ KindID   │ Sequence        │
//	  │ (1B)    │ (3B)     │ (4B)            │
//	  └─────────┴──────────┴─────────────────┘
//
//	Body: the StreamingMessage envelope as a serialized protobuf Struct
//
// Request kinds have odd ids and their responses the following even id.
// Stream events (0x04xxxx) are neither.
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// Version1 is the current protocol version.
	Version1 = 0x01

	// HeaderSize is the fixed size of the message header in bytes.
	HeaderSize = 8 // Version(1) + KindID(3) + Sequence(4)
)

// Kind id constants (24 bits).
const (
	// Worker lifecycle (0x01xx)
	KindWorkerInitRequest                 = 0x010101
	KindWorkerInitResponse                = 0x010102
	KindWorkerStatusRequest               = 0x010103
	KindWorkerStatusResponse              = 0x010104
	KindFunctionEnvironmentReloadRequest  = 0x010105
	KindFunctionEnvironmentReloadResponse = 0x010106
	KindWorkerTerminate                   = 0x010107

	// Function loading (0x02xx)
	KindFunctionLoadRequest            = 0x020101
	KindFunctionLoadResponse           = 0x020102
	KindFunctionLoadRequestCollection  = 0x020103
	KindFunctionLoadResponseCollection = 0x020104
	KindFunctionsMetadataRequest       = 0x020105
	KindFunctionMetadataResponse       = 0x020106

	// Invocation (0x03xx)
	KindInvocationRequest  = 0x030101
	KindInvocationResponse = 0x030102
	KindInvocationCancel   = 0x030103

	// Stream events (0x04xx)
	KindStartStream = 0x040100
	KindRpcLog      = 0x040102
)

// PutKindID encodes a 24-bit kind id into buf in big-endian order.
func PutKindID(buf []byte, kindID uint32) {
	buf[0] = byte(kindID >> 16)
	buf[1] = byte(kindID >> 8)
	buf[2] = byte(kindID)
}

// GetKindID decodes a 24-bit kind id from buf in big-endian order.
func GetKindID(buf []byte) uint32 {
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
}

// NewMessageBody creates a body with the protocol header prefix and data.
func NewMessageBody(kindID uint32, seq uint32, data []byte) []byte {
	body := make([]byte, HeaderSize+len(data))
	body[0] = Version1
	PutKindID(body[1:4], kindID)
	binary.BigEndian.PutUint32(body[4:8], seq)
	copy(body[HeaderSize:], data)
	return body
}

// ParseMessageBody parses a body that carries the protocol header as a prefix.
func ParseMessageBody(body []byte) (version uint8, kindID uint32, seq uint32, data []byte, err error) {
	if len(body) < HeaderSize {
		err = fmt.Errorf("body too short for header: %d < %d", len(body), HeaderSize)
		return
	}

	version = body[0]
	if version != Version1 {
		err = fmt.Errorf("unsupported protocol version %d", version)
		return
	}
	kindID = GetKindID(body[1:4])
	seq = binary.BigEndian.Uint32(body[4:8])
	data = body[HeaderSize:]
	return
}

// IsEvent reports whether the kind id is a stream event.
func IsEvent(kindID uint32) bool {
	return kindID>>16 == 0x04
}

// IsRequest returns true if the kind id indicates a request message.
func IsRequest(kindID uint32) bool {
	return kindID%2 == 1 && !IsEvent(kindID)
}

// IsResponse returns true if the kind id indicates a response message.
func IsResponse(kindID uint32) bool {
	return kindID%2 == 0 && !IsEvent(kindID)
}
