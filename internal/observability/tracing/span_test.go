package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/leasecore/internal/config"
	"github.com/smallbiznis/leasecore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestEndReportsDomainCodeOnly(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := NewProvider(config.Config{}, sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	errOverpaid := errs.Conflict("payment_exceeds_remaining")
	_, span := Start(context.Background(), "test", "payment.record")
	End(span, fmt.Errorf("%w: remaining 500000.00 for Budi", errOverpaid))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "payment_exceeds_remaining", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), KeyErrorKind.String("conflict"))
	require.Len(t, spans[0].Events(), 1)
	for _, attr := range spans[0].Events()[0].Attributes {
		assert.NotContains(t, attr.Value.Emit(), "Budi")
	}

	assert.Equal(t, "*errors.errorString", ErrorCode(errors.New("tenant 42 owes money")))
}

func TestSamplerKeepsMoneyMovement(t *testing.T) {
	sampler := NewSampler(0.01)
	// The highest trace id falls outside every ratio below 1.
	var tid trace.TraceID
	for i := range tid {
		tid[i] = 0xff
	}

	decide := func(name string) sdktrace.SamplingDecision {
		return sampler.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       tid,
			Name:          name,
		}).Decision
	}

	assert.Equal(t, sdktrace.RecordAndSample, decide("payment.record"))
	assert.Equal(t, sdktrace.RecordAndSample, decide("scheduler.sweep"))
	assert.Equal(t, sdktrace.Drop, decide("invoice.generate"))
}

func TestSamplingRatioBounds(t *testing.T) {
	assert.Equal(t, defaultSamplingRatio, samplingRatio(0))
	assert.Equal(t, 1.0, samplingRatio(3))
	assert.Equal(t, 0.5, samplingRatio(0.5))
}
