// Package security implements the gRPC transport for the security controller.
//
// The contract is api/catpoint/v1/security.proto. It only uses protobuf
// well-known types (Struct, StringValue, BytesValue, Empty), so the service
// descriptor in service.go is declared by hand instead of generated.
// Server adapts controller calls to it; the helpers in messages.go convert between
// domain types and wire values for both the server and the client.
package security
