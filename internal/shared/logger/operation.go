package logger

import (
	"context"
	"log/slog"
	"time"
)

// Operation logs an operation's lifecycle (start/complete/fail)
type Operation struct {
	logger    *Logger
	ctx       context.Context
	name      string
	StartTime time.Time
	attrs     []any
}

// StartOp begins tracking an operation and logs its start at debug level
func (l *Logger) StartOp(ctx context.Context, name string, args ...any) *Operation {
	op := &Operation{
		logger:    l,
		ctx:       WithOperation(ctx, name),
		name:      name,
		StartTime: time.Now(),
		attrs:     args,
	}

	l.WithContext(op.ctx).Debug("operation started", args...)

	return op
}

// Context returns the operation-scoped context
func (op *Operation) Context() context.Context {
	return op.ctx
}

// With adds attributes to every subsequent log line of the operation
func (op *Operation) With(args ...any) *Operation {
	op.attrs = append(op.attrs, args...)
	return op
}

// Complete logs successful operation completion
func (op *Operation) Complete(msg string, args ...any) {
	if msg == "" {
		msg = "operation completed"
	}
	op.logger.WithContext(op.ctx).Info(msg, op.collect(args)...)
}

// Fail logs a failed operation with DomainError enrichment
func (op *Operation) Fail(err error, msg string, args ...any) {
	if msg == "" {
		msg = "operation failed"
	}
	op.logger.ErrorCtx(op.ctx, msg, err, op.collect(args)...)
}

// Progress logs operation progress (debug level)
func (op *Operation) Progress(msg string, args ...any) {
	op.logger.WithContext(op.ctx).Debug(msg, op.collect(args)...)
}

func (op *Operation) collect(args []any) []any {
	attrs := append([]any{slog.Duration("duration_ms", time.Since(op.StartTime))}, op.attrs...)
	return append(attrs, args...)
}
