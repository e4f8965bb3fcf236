package rpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Unary describes one unary method of a hand written service. S is the
// service interface the registered implementation satisfies.
func Unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				resp, err := call(srv.(S), ctx, in)
				return resp, ToStatus(err)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// UnaryInterceptor turns service errors into statuses and logs every call.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		err = ToStatus(err)

		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "grpc call",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.String("kind", string(KindOf(err))),
			slog.Duration("duration", time.Since(started)),
		)
		return resp, err
	}
}
