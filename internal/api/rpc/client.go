package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Invoke calls a unary method with the JSON codec and maps the returned
// status back to a domain error.
func Invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, fullMethod string, req any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := conn.Invoke(ctx, fullMethod, req, out, opts...); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}
