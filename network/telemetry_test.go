package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTelemetry(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader, *Builder) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	builder := newTestBuilder(&recordingSleeper{}, &countingProber{reachable: true}).
		WithTracerProvider(tp).
		WithMeterProvider(mp)
	return exporter, reader, builder
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != instrumentationName {
			continue
		}
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func sumCounter(t *testing.T, m metricdata.Metrics, filter func(attribute.Set) bool) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if filter == nil || filter(dp.Attributes) {
			total += dp.Value
		}
	}
	return total
}

func TestNetTelemetry(t *testing.T) {
	exporter, reader, builder := setupTelemetry(t)
	srv := newStatusServer(t, testBody, 503, 200)

	_, err := builder.Build().Net(context.Background(), "get", srv.URL, nil)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "network.Net", span.Name)
	assert.Contains(t, span.Attributes, attribute.String(attrMethod, "GET"))
	assert.Contains(t, span.Attributes, attribute.String(attrURL, srv.URL))
	assert.Contains(t, span.Attributes, attribute.Int(attrStatusCode, 200))
	assert.Contains(t, span.Attributes, attribute.Int(attrAttempts, 2))

	requests := srv.recorded()
	require.Len(t, requests, 2)
	assert.NotEmpty(t, requests[0].Header.Get("traceparent"))

	metrics := collect(t, reader)
	require.Contains(t, metrics, metricAttempts)
	assert.EqualValues(t, 2, sumCounter(t, metrics[metricAttempts], nil))
	require.Contains(t, metrics, metricPauses)
	assert.EqualValues(t, 1, sumCounter(t, metrics[metricPauses], func(s attribute.Set) bool {
		v, ok := s.Value(attrReason)
		return ok && v.AsString() == pauseBrief
	}))

	require.Contains(t, metrics, metricDuration)
	hist, ok := metrics[metricDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
}

func TestDownloadTelemetryRecordsError(t *testing.T) {
	exporter, _, builder := setupTelemetry(t)
	srv := newStatusServer(t, "", 404)

	err := builder.Build().Download(context.Background(), srv.URL, t.TempDir()+"/out", nil)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "network.Download", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String(attrErrorType, string(KindNoContent)))
}
