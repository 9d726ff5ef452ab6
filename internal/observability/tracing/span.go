package tracing

import (
	"context"
	"fmt"

	"github.com/smallbiznis/leasecore/internal/errs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Start opens a span on the named tracer. Attributes holding tenant text are
// dropped.
func Start(ctx context.Context, tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracer).Start(ctx, name, trace.WithAttributes(scrub(attrs)...))
}

// End marks the span failed when err is set and ends it. Domain errors are
// reported by code, anything else by type, so messages with amounts or names
// stay out of the trace.
func End(span trace.Span, err error) {
	if err != nil {
		code := ErrorCode(err)
		span.SetAttributes(KeyErrorCode.String(code))
		if kind := errs.KindOf(err); kind != "" {
			span.SetAttributes(KeyErrorKind.String(string(kind)))
		}
		span.RecordError(fmt.Errorf("%s", code))
		span.SetStatus(codes.Error, code)
	}
	span.End()
}

// ErrorCode returns the stable code of a domain error or the Go type of any
// other error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := errs.CodeOf(err); code != "" {
		return code
	}
	return fmt.Sprintf("%T", err)
}
