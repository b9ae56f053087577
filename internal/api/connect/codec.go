// Package connect provides the Connect RPC services of the shuffler.
package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// CodecName is the codec name negotiated through the application/json
// content type.
const CodecName = "json"

// jsonCodec marshals plain Go structs. The built-in JSON codec only
// accepts protobuf messages.
type jsonCodec struct{}

// Codec returns the JSON codec used by servers and clients.
func Codec() connect.Codec {
	return jsonCodec{}
}

func (jsonCodec) Name() string {
	return CodecName
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}
