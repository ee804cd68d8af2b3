package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Metrics struct {
	PagesResolvedMetric   metric.Int64Counter
	RegionsResolvedMetric metric.Int64Counter
	RegionDurationMetric  metric.Int64Histogram
}

func NewMetrics(meterProvider metric.MeterProvider) (Metrics, error) {
	meter := meterProvider.Meter("internal.pagemap.metrics")

	pages, err := meter.Int64Counter("pageinspect.pages.resolved",
		metric.WithDescription("Total virtual pages resolved to pagemap records"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get resolved pages metric: %w", err)
	}

	regions, err := meter.Int64Counter("pageinspect.regions.resolved",
		metric.WithDescription("Total memory regions resolved"),
		metric.WithUnit("{region}"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get resolved regions metric: %w", err)
	}

	duration, err := meter.Int64Histogram("pageinspect.regions.duration",
		metric.WithDescription("Time spent resolving a single region"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to get region duration metric: %w", err)
	}

	return Metrics{
		PagesResolvedMetric:   pages,
		RegionsResolvedMetric: regions,
		RegionDurationMetric:  duration,
	}, nil
}

// Noop returns metrics that discard everything.
func Noop() Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())

	return m
}

func (m Metrics) RecordRegion(ctx context.Context, pages uint64, took time.Duration, anonymous bool) {
	attrs := metric.WithAttributes(attribute.Bool("anonymous", anonymous))

	m.PagesResolvedMetric.Add(ctx, int64(pages), attrs)
	m.RegionsResolvedMetric.Add(ctx, 1, attrs)
	m.RegionDurationMetric.Record(ctx, took.Microseconds(), attrs)
}
