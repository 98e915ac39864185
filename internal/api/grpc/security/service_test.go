package security

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

var errStopDecode = errors.New("stop after decode")

// rpcPattern matches `rpc Name(google.protobuf.Request) returns (google.protobuf.Response);`.
var rpcPattern = regexp.MustCompile(`rpc (\w+)\(([\w.]+)\) returns \(([\w.]+)\);`)

// TestServiceDesc_MatchesProto checks the hand-written descriptor against the .proto contract.
func TestServiceDesc_MatchesProto(t *testing.T) {
	t.Parallel()

	contents, err := os.ReadFile(filepath.Join("..", "..", "..", "..", ServiceDesc.Metadata.(string)))
	require.NoError(t, err)

	rpcs := rpcPattern.FindAllStringSubmatch(string(contents), -1)
	require.Len(t, ServiceDesc.Methods, len(rpcs))

	handlers := make(map[string]func(context.Context, func(any) error) (any, error), len(ServiceDesc.Methods))
	for _, method := range ServiceDesc.Methods {
		handlers[method.MethodName] = func(ctx context.Context, dec func(any) error) (any, error) {
			return method.Handler(nil, ctx, dec, nil)
		}
	}

	for _, rpc := range rpcs {
		name, request := rpc[1], rpc[2]

		handler, ok := handlers[name]
		require.True(t, ok, name)

		var decoded any

		_, err = handler(context.Background(), func(v any) error {
			decoded = v

			return errStopDecode
		})
		require.ErrorIs(t, err, errStopDecode)

		message, ok := decoded.(proto.Message)
		require.True(t, ok, name)
		require.Equal(t, request, string(message.ProtoReflect().Descriptor().FullName()), name)
	}

	require.Equal(t, "catpoint.v1.SecurityService", ServiceName)
	require.Contains(t, string(contents), "package catpoint.v1;")
}
