package gradebook

import (
	"context"
	"database/sql"
	"time"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/course"
	"course-mark-service/internal/metrics"
	"course-mark-service/internal/student"

	"github.com/uptrace/bun"
)

// Tx exposes the repositories bound to one open transaction.
type Tx struct {
	Students    student.Repository
	Courses     course.Repository
	Assessments assessment.Repository
	Marks       Repository
}

// Store gives the engine non-transactional reads and a way to run work in a
// single transaction. RunInTx commits when fn returns nil and rolls back
// otherwise, including when fn panics.
type Store interface {
	Repository
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type store struct {
	Repository
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewStore(db *bun.DB, m *metrics.Metrics) Store {
	return &store{
		Repository: NewRepository(db, m),
		db:         db,
		metrics:    m,
	}
}

func (s *store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}

	err := s.db.RunInTx(ctx, opts, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, Tx{
			Students:    student.NewRepository(btx, s.metrics),
			Courses:     course.NewRepository(btx, s.metrics),
			Assessments: assessment.NewRepository(btx, s.metrics),
			Marks:       NewRepository(btx, s.metrics),
		})
	})

	s.metrics.Database.RecordTransaction(ctx, "gradebook", time.Since(start), err == nil)
	return err
}
