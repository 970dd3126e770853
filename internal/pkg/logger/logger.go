// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 设置全局日志级别与服务名，应在 main 中最先调用。
func Init(level, serviceName string) {
	InitWithWriter(os.Stdout, level, serviceName)
}

// InitWithWriter 与 Init 相同，但允许指定输出（测试中使用）。
func InitWithWriter(w io.Writer, level, serviceName string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	base = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = base
}

// WithRequestID 把请求 ID 放入 context，之后 Ctx(ctx) 输出的日志都会带上它。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID 返回 context 中的请求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ctx 返回带有 trace_id / span_id / request_id 的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := base.With()
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	if id := RequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	l := lc.Logger()
	return &l
}
