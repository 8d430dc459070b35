package gradebook

import (
	"context"
	"fmt"
	"time"
)

const (
	EventBatchCommitted = "marks.batch_committed"
	EventRecordAdded    = "marks.record_added"
)

// Publisher delivers committed mark events. Both the NATS and the Kafka
// producers implement it.
type Publisher interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
}

type MarkEvent struct {
	Type           string      `json:"type"`
	CourseID       int         `json:"course_id"`
	AssessmentID   int         `json:"assessment_id"`
	AssessmentName string      `json:"assessment_name"`
	Marks          []EventMark `json:"marks"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

type EventMark struct {
	StudentID int     `json:"student_id"`
	Mark      float64 `json:"mark"`
}

// publish runs after commit, so a delivery failure is logged and counted but
// does not fail the operation.
func (s *service) publish(ctx context.Context, event MarkEvent) {
	if s.publisher == nil {
		return
	}

	event.OccurredAt = time.Now().UTC()
	key := fmt.Sprintf("course-%d", event.CourseID)

	if err := s.publisher.SendMessage(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish mark event",
			"event", event.Type,
			"course_id", event.CourseID,
			"error", err,
		)
		s.metrics.Gradebook.RecordEventUndelivered(ctx, event.Type)
	}
}
