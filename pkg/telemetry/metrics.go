package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter(ServiceName)

// Attribute keys
const (
	KeyOperation = "prism.operation"
	KeyOutcome   = "prism.outcome"
	KeyItemKind  = "prism.item_kind"
)

var (
	trackerRequestsCounter metric.Int64Counter
	exportItemsCounter     metric.Int64Counter
	refreshCounter         metric.Int64Counter
	llmRequestsCounter     metric.Int64Counter

	trackerDurationHistogram metric.Float64Histogram
	refreshDurationHistogram metric.Float64Histogram
	llmDurationHistogram     metric.Float64Histogram
)

// initMetrics initializes all metric instruments
// Must be called after Init() has set up the global meter provider
func initMetrics() error {
	var err error

	if trackerRequestsCounter, err = meter.Int64Counter(
		"prism_tracker_requests_total",
		metric.WithDescription("Total number of Jira API calls"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if exportItemsCounter, err = meter.Int64Counter(
		"prism_export_items_total",
		metric.WithDescription("Total number of items submitted for export"),
		metric.WithUnit("{item}"),
	); err != nil {
		return err
	}

	if refreshCounter, err = meter.Int64Counter(
		"prism_snapshot_refreshes_total",
		metric.WithDescription("Total number of snapshot loads"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return err
	}

	if llmRequestsCounter, err = meter.Int64Counter(
		"prism_llm_requests_total",
		metric.WithDescription("Total number of language model completions"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if trackerDurationHistogram, err = meter.Float64Histogram(
		"prism_tracker_request_duration_seconds",
		metric.WithDescription("Duration of Jira API calls in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if refreshDurationHistogram, err = meter.Float64Histogram(
		"prism_snapshot_refresh_duration_seconds",
		metric.WithDescription("Duration of snapshot loads in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if llmDurationHistogram, err = meter.Float64Histogram(
		"prism_llm_request_duration_seconds",
		metric.WithDescription("Duration of language model completions in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	return nil
}

func outcome(category string) string {
	if category == "" {
		return "ok"
	}
	return category
}

// RecordTrackerRequest records a Jira API call. category is empty on success.
func RecordTrackerRequest(ctx context.Context, op, category string, duration time.Duration) {
	if trackerRequestsCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(KeyOperation, op),
		attribute.String(KeyOutcome, outcome(category)),
	)
	trackerRequestsCounter.Add(ctx, 1, attrs)
	trackerDurationHistogram.Record(ctx, duration.Seconds(), attrs)
}

// RecordExport records the result of an export batch
func RecordExport(ctx context.Context, kind string, successful, failed int) {
	if exportItemsCounter == nil {
		return
	}
	exportItemsCounter.Add(ctx, int64(successful), metric.WithAttributes(
		attribute.String(KeyItemKind, kind),
		attribute.String(KeyOutcome, "ok"),
	))
	exportItemsCounter.Add(ctx, int64(failed), metric.WithAttributes(
		attribute.String(KeyItemKind, kind),
		attribute.String(KeyOutcome, "failed"),
	))
}

// RecordRefresh records a snapshot load
func RecordRefresh(ctx context.Context, category string, duration time.Duration) {
	if refreshCounter == nil {
		return
	}
	refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyOutcome, outcome(category))))
	refreshDurationHistogram.Record(ctx, duration.Seconds())
}

// RecordLLMRequest records a language model completion
func RecordLLMRequest(ctx context.Context, failed bool, duration time.Duration) {
	if llmRequestsCounter == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	llmRequestsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(KeyOutcome, result)))
	llmDurationHistogram.Record(ctx, duration.Seconds())
}
