// Package rpc declares the connect procedures of the ledger API: message
// types, handler constructors and typed clients.
//
// Messages are plain Go structs carried with a JSON codec registered under
// the "json" name, so any connect client speaking application/json can call
// the service. Service names and procedure paths use the
// "/<package>.<Service>/<Method>" layout that protoc-gen-connect-go emits,
// and the handler and client constructors mirror its generated signatures.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const codecName = "json"

type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}

// WithJSON makes handlers and clients use the plain-struct JSON codec.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
