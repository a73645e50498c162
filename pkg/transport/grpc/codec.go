package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a gRPC content-subtype: requests sent with
// grpc.CallContentSubtype(codecName) negotiate "application/grpc+json"
// instead of the default protobuf wire format. There is no protobuf
// toolchain in this build, so the wire package's plain Go structs are
// marshaled with encoding/json instead.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
