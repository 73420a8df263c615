// Package notify is the one-way message sink for user-facing toasts. The core
// fires messages and never waits for acknowledgment.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Sink receives fire-and-forget user notifications.
type Sink interface {
	Info(ctx context.Context, msg string)
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// LogSink writes notifications to the request-scoped zap logger. It stands in
// for a real toast/push channel in deployments that have none.
type LogSink struct{}

func (LogSink) Info(ctx context.Context, msg string) {
	zctx.From(ctx).Info("notify", zap.String("level", "info"), zap.String("message", msg))
}

func (LogSink) Success(ctx context.Context, msg string) {
	zctx.From(ctx).Info("notify", zap.String("level", "success"), zap.String("message", msg))
}

func (LogSink) Error(ctx context.Context, msg string) {
	zctx.From(ctx).Warn("notify", zap.String("level", "error"), zap.String("message", msg))
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Info(context.Context, string)    {}
func (Nop) Success(context.Context, string) {}
func (Nop) Error(context.Context, string)   {}
