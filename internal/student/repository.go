package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"course-mark-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrStudentNotFound = errors.New("student not found")

// Repository is the read side of the student directory. Students are created
// by the registry; this service only looks them up.
type Repository interface {
	GetByID(ctx context.Context, id int) (*Student, error)
	GetByMatricNumber(ctx context.Context, matricNumber string) (*Student, error)
	// ListEnrolled returns the students enrolled in a course, ordered by id.
	ListEnrolled(ctx context.Context, courseID int) ([]Student, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

// NewRepository accepts a *bun.DB or a bun.Tx.
func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("s.id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) GetByMatricNumber(ctx context.Context, matricNumber string) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().
		Model(student).
		Where("s.matric_number = ?", matricNumber).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) ListEnrolled(ctx context.Context, courseID int) ([]Student, error) {
	start := time.Now()
	students := make([]Student, 0)
	err := r.db.NewSelect().
		Model(&students).
		Join("JOIN enrollments AS e ON e.student_id = s.id").
		Where("e.course_id = ?", courseID).
		OrderExpr("s.id ASC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "enrollments", time.Since(start), err)

	return students, err
}
