package assessment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"course-mark-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrAssessmentNotFound = errors.New("assessment not found")

type Repository interface {
	GetByCourseAndName(ctx context.Context, courseID int, name string) (*Assessment, error)
	// GetByCourse returns the assessments of a course ordered by id.
	GetByCourse(ctx context.Context, courseID int) ([]Assessment, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) GetByCourseAndName(ctx context.Context, courseID int, name string) (*Assessment, error) {
	start := time.Now()
	a := new(Assessment)
	err := r.db.NewSelect().
		Model(a).
		Where("a.course_id = ?", courseID).
		Where("a.name = ?", name).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "assessments", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *repository) GetByCourse(ctx context.Context, courseID int) ([]Assessment, error) {
	start := time.Now()
	assessments := make([]Assessment, 0)
	err := r.db.NewSelect().
		Model(&assessments).
		Where("a.course_id = ?", courseID).
		OrderExpr("a.id ASC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "assessments", time.Since(start), err)

	return assessments, err
}
