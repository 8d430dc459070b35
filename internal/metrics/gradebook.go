package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type GradebookMetrics struct {
	marksCommitted    metric.Int64Counter
	batchesRejected   metric.Int64Counter
	recordsAdded      metric.Int64Counter
	scaffoldRows      metric.Int64Counter
	sheetsAggregated  metric.Int64Counter
	eventsUndelivered metric.Int64Counter
}

func NewGradebookMetrics(meter metric.Meter) (*GradebookMetrics, error) {
	gm := &GradebookMetrics{}

	var err error

	gm.marksCommitted, err = meter.Int64Counter(
		"gradebook.marks.committed",
		metric.WithDescription("Marks written by committed batches"),
		metric.WithUnit("{mark}"),
	)
	if err != nil {
		return nil, err
	}

	gm.batchesRejected, err = meter.Int64Counter(
		"gradebook.batches.rejected",
		metric.WithDescription("Mark batches rolled back or refused"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	gm.recordsAdded, err = meter.Int64Counter(
		"gradebook.records.added",
		metric.WithDescription("Single records added through the enrollment cascade"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	gm.scaffoldRows, err = meter.Int64Counter(
		"gradebook.scaffold.rows_created",
		metric.WithDescription("Enrollment and zero-mark rows created by the cascade"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	gm.sheetsAggregated, err = meter.Int64Counter(
		"gradebook.sheets.aggregated",
		metric.WithDescription("Mark sheets built for reporting"),
		metric.WithUnit("{sheet}"),
	)
	if err != nil {
		return nil, err
	}

	gm.eventsUndelivered, err = meter.Int64Counter(
		"gradebook.events.undelivered",
		metric.WithDescription("Post-commit events the publisher refused"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return gm, nil
}

func (gm *GradebookMetrics) RecordBatchCommitted(ctx context.Context, marks int) {
	if gm != nil && gm.marksCommitted != nil {
		gm.marksCommitted.Add(ctx, int64(marks))
	}
}

func (gm *GradebookMetrics) RecordBatchRejected(ctx context.Context, kind string) {
	if gm != nil && gm.batchesRejected != nil {
		gm.batchesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (gm *GradebookMetrics) RecordRecordAdded(ctx context.Context) {
	if gm != nil && gm.recordsAdded != nil {
		gm.recordsAdded.Add(ctx, 1)
	}
}

func (gm *GradebookMetrics) RecordScaffold(ctx context.Context, enrollments, marks int) {
	if gm == nil || gm.scaffoldRows == nil {
		return
	}
	gm.scaffoldRows.Add(ctx, int64(enrollments), metric.WithAttributes(attribute.String("table", "enrollments")))
	gm.scaffoldRows.Add(ctx, int64(marks), metric.WithAttributes(attribute.String("table", "marks")))
}

func (gm *GradebookMetrics) RecordSheetAggregated(ctx context.Context, singleStudent bool) {
	if gm != nil && gm.sheetsAggregated != nil {
		gm.sheetsAggregated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("single_student", singleStudent)))
	}
}

func (gm *GradebookMetrics) RecordEventUndelivered(ctx context.Context, eventType string) {
	if gm != nil && gm.eventsUndelivered != nil {
		gm.eventsUndelivered.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
	}
}
