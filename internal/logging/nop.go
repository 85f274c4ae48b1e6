package logging

import "context"

// NopLogger discards all messages. It is the default logger for components
// constructed without an explicit one, and keeps tests quiet.
type NopLogger struct{}

func (NopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (NopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (NopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (NopLogger) Error(ctx context.Context, msg string, args ...any) {}

func (n NopLogger) With(args ...any) Logger { return n }
