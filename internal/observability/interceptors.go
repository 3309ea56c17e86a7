package observability

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
)

// Health probes hit the server every few seconds; they are logged at trace level.
const healthPrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor records metrics, logs each call and turns handler panics into codes.Internal.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = recovered(log, info.FullMethod, r)
			}
			observe(log, m, info.FullMethod, "unary", start, err)
		}()
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = recovered(log, info.FullMethod, r)
			}
			observe(log, m, info.FullMethod, "stream", start, err)
		}()
		return handler(srv, ss)
	}
}

func observe(log zerolog.Logger, m *metrics.Metrics, method, kind string, start time.Time, err error) {
	duration := time.Since(start)
	code := status.Code(err)
	m.RecordRPC(method, code.String(), duration.Seconds())

	ev := log.Debug()
	switch {
	case code != codes.OK && code != codes.Canceled:
		ev = log.Warn().Err(err)
	case strings.HasPrefix(method, healthPrefix):
		ev = log.Trace()
	}
	ev.Str("method", method).
		Str("kind", kind).
		Str("code", code.String()).
		Dur("duration", duration).
		Msg("gRPC call completed")
}

func recovered(log zerolog.Logger, method string, r interface{}) error {
	log.Error().
		Str("method", method).
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("gRPC handler panicked")
	return status.Error(codes.Internal, "internal error")
}
