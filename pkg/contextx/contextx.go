// Package contextx 提供在 context 中传递事务句柄与链路标识的辅助函数
package contextx

import "context"

type ctxKey int

const (
	txKey ctxKey = iota
	traceIDKey
	spanIDKey
	requestIDKey
)

// WithTx 将事务句柄放入 context，仓储层通过 GetTx 取回
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetTx 获取 context 中的事务句柄，不存在时返回 nil
func GetTx(ctx context.Context) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey)
}

// WithTraceID 设置 trace_id
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 trace_id
func TraceID(ctx context.Context) string {
	return stringValue(ctx, traceIDKey)
}

// WithSpanID 设置 span_id
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// SpanID 获取 span_id
func SpanID(ctx context.Context) string {
	return stringValue(ctx, spanIDKey)
}

// WithRequestID 设置 request_id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 获取 request_id
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
