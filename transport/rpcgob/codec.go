// Package rpcgob implements a grpc transport for dht.Node using
// encoding/gob as the wire codec and a hand-built grpc.ServiceDesc,
// since no protoc-generated stubs are available in this environment
// (SPEC_FULL.md §4.4). It exposes CreateRecord, ReadRecord,
// UpdateRecord, DeleteRecord, and FindSuccessor as unary RPCs.
package rpcgob

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is both the encoding.Codec registration name and the grpc
// call's content-subtype.
const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec adapts encoding/gob to grpc's encoding.Codec interface.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }
