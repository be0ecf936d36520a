package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/pocketledger/internal/metrics"
)

// callInfoKey carries a *callInfo that WithUser fills in, so an outer interceptor can
// log who made a call authenticated further in.
const callInfoKey contextKey = "call_info"

type callInfo struct {
	userID string
}

// LoggingInterceptor logs every handled RPC with its procedure, user, duration and any
// error code, and records the call in m when m is not nil. Register it ahead of the auth
// interceptor so rejected calls are logged too.
type LoggingInterceptor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLoggingInterceptor creates the interceptor. A nil logger means slog.Default().
func NewLoggingInterceptor(logger *slog.Logger, m *metrics.Metrics) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger, metrics: m}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		info := &callInfo{}
		resp, err := next(context.WithValue(ctx, callInfoKey, info), req)
		i.record(info, req.Spec().Procedure, start, err)
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor. Streams are logged when they end.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		info := &callInfo{}
		err := next(context.WithValue(ctx, callInfoKey, info), conn)
		i.record(info, conn.Spec().Procedure, start, err)
		return err
	}
}

func (i *LoggingInterceptor) record(info *callInfo, procedure string, start time.Time, err error) {
	elapsed := time.Since(start)
	userID := info.userID // empty if pre-auth or rejected

	code := "ok"
	if err != nil {
		code = connect.CodeOf(err).String()
	}
	if i.metrics != nil {
		i.metrics.RPCRequests.WithLabelValues(procedure, code).Inc()
		i.metrics.RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
	}

	duration := elapsed.Milliseconds()
	if err != nil {
		var connectErr *connect.Error
		if errors.As(err, &connectErr) {
			i.logger.Warn("RPC error",
				"procedure", procedure,
				"code", connectErr.Code(),
				"error", connectErr.Message(),
				"user_id", userID,
				"duration_ms", duration,
			)
		} else {
			i.logger.Error("RPC error",
				"procedure", procedure,
				"error", err,
				"user_id", userID,
				"duration_ms", duration,
			)
		}
		return
	}
	i.logger.Info("RPC ok",
		"procedure", procedure,
		"user_id", userID,
		"duration_ms", duration,
	)
}
