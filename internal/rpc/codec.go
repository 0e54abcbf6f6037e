// Package rpc exposes the pipeline as the gRPC service xetra.Daily. Messages
// are plain Go structs carried by a JSON codec, selected with the "json"
// content subtype.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the name of the JSON codec and the content subtype clients send.
const Codec = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return Codec }
