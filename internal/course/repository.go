package course

import (
	"context"
	"time"

	"course-mark-service/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	// GetAll returns every course of the catalog ordered by id.
	GetAll(ctx context.Context) ([]Course, error)
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

func (r *repository) GetAll(ctx context.Context) ([]Course, error) {
	start := time.Now()
	courses := make([]Course, 0)
	err := r.db.NewSelect().Model(&courses).OrderExpr("c.id ASC").Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "courses", time.Since(start), err)

	return courses, err
}
