package grpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/critlog/internal/wire"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}

	req := wire.Request{
		ID: 42,
		Identifier: &wire.Identifier{
			Node:    wire.NodeInfo{ID: "node-a", Cluster: "edge"},
			LogName: "access_log",
		},
		Message: wire.Batch{Kind: wire.KindHTTP, Entries: [][]byte{[]byte(`{"path":"/"}`)}},
	}

	data, err := codec.Marshal(&req)
	require.NoError(t, err)

	var decoded wire.Request
	require.NoError(t, codec.Unmarshal(data, &decoded))
	require.Equal(t, req.ID, decoded.ID)
	require.Equal(t, req.Identifier.Node.ID, decoded.Identifier.Node.ID)
	require.Equal(t, req.Message.Entries, decoded.Message.Entries)
}

func TestJSONCodecName(t *testing.T) {
	require.Equal(t, "json", jsonCodec{}.Name())
}
