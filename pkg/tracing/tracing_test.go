package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseAttributes(t *testing.T) {
	got := ParseAttributes(" service.namespace=mediascribe , broken, team = audio ,")
	assert.Equal(t, map[string]string{
		"service.namespace": "mediascribe",
		"team":              "audio",
	}, got)

	assert.Empty(t, ParseAttributes(""))
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "mediascribe"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestBatchOptionsDefaults(t *testing.T) {
	var got sdktrace.BatchSpanProcessorOptions
	for _, opt := range batchOptions(Config{}.withDefaults()) {
		opt(&got)
	}

	assert.Equal(t, 5*time.Second, got.BatchTimeout)
	assert.Equal(t, 30*time.Second, got.ExportTimeout)
	assert.Equal(t, 8192, got.MaxQueueSize)
	assert.Equal(t, 512, got.MaxExportBatchSize)
}

func TestBatchOptionsKeepBatchWithinQueue(t *testing.T) {
	cfg := Config{BatchTimeout: time.Second, MaxQueueSize: 100, MaxExportBatchSize: 400}.withDefaults()

	var got sdktrace.BatchSpanProcessorOptions
	for _, opt := range batchOptions(cfg) {
		opt(&got)
	}

	assert.Equal(t, time.Second, got.BatchTimeout)
	assert.Equal(t, 100, got.MaxQueueSize)
	assert.Equal(t, 100, got.MaxExportBatchSize)
}

func TestSamplerClampsRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{ratio: 1.5, root: "AlwaysOnSampler"},
		{ratio: 1, root: "AlwaysOnSampler"},
		{ratio: 0, root: "AlwaysOffSampler"},
		{ratio: -2, root: "AlwaysOffSampler"},
		{ratio: 0.25, root: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		assert.Contains(t, desc, "ParentBased{root:"+tt.root, "ratio %v", tt.ratio)
	}
}
