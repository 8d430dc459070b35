package gradebook

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"course-mark-service/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Repository holds the row primitives for enrollments and marks.
type Repository interface {
	// EnsureEnrollments enrolls the student in every given course that it is not
	// enrolled in yet and returns the course ids it actually inserted.
	EnsureEnrollments(ctx context.Context, studentID int, courseIDs []int) ([]int, error)
	// EnsureMarks inserts a zero mark for every given assessment the student has
	// no mark for. Existing marks are left alone. Returns the inserted assessment ids.
	EnsureMarks(ctx context.Context, studentID int, assessmentIDs []int) ([]int, error)
	// UpsertMark writes the mark, creating the row or overwriting it.
	UpsertMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) error
	// RecordMark writes the mark only if the row exists and was never recorded.
	// It reports false when another writer recorded it first.
	RecordMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) (bool, error)
	// Exists reports whether the student has a recorded mark on the named
	// assessment of a course. Zero rows from the cascade do not count.
	Exists(ctx context.Context, studentID, courseID int, assessmentName string) (bool, error)
	ListByCourse(ctx context.Context, courseID int) ([]Mark, error)
	ListByStudent(ctx context.Context, studentID int) ([]StudentRecord, error)
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

func (r *repository) EnsureEnrollments(ctx context.Context, studentID int, courseIDs []int) ([]int, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}

	rows := make([]Enrollment, len(courseIDs))
	for i, id := range courseIDs {
		rows[i] = Enrollment{StudentID: studentID, CourseID: id}
	}

	start := time.Now()
	created := make([]int, 0)
	_, err := r.db.NewInsert().
		Model(&rows).
		ExcludeColumn("id", "created_at").
		On("CONFLICT (student_id, course_id) DO NOTHING").
		Returning("course_id").
		Exec(ctx, &created)

	r.metrics.Database.RecordQuery(ctx, "insert", "enrollments", time.Since(start), err)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return created, nil
}

func (r *repository) EnsureMarks(ctx context.Context, studentID int, assessmentIDs []int) ([]int, error) {
	if len(assessmentIDs) == 0 {
		return nil, nil
	}

	rows := make([]Mark, len(assessmentIDs))
	for i, id := range assessmentIDs {
		rows[i] = Mark{StudentID: studentID, AssessmentID: id, Mark: decimal.Zero}
	}

	start := time.Now()
	created := make([]int, 0)
	_, err := r.db.NewInsert().
		Model(&rows).
		ExcludeColumn("id", "created_at", "updated_at").
		On("CONFLICT (student_id, assessment_id) DO NOTHING").
		Returning("assessment_id").
		Exec(ctx, &created)

	r.metrics.Database.RecordQuery(ctx, "insert", "marks", time.Since(start), err)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return created, nil
}

func (r *repository) UpsertMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) error {
	row := &Mark{StudentID: studentID, AssessmentID: assessmentID, Mark: mark, Recorded: true}

	start := time.Now()
	_, err := r.db.NewInsert().
		Model(row).
		ExcludeColumn("id", "created_at", "updated_at").
		On("CONFLICT (student_id, assessment_id) DO UPDATE").
		Set("mark = EXCLUDED.mark").
		Set("recorded = TRUE").
		Set("updated_at = current_timestamp").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "upsert", "marks", time.Since(start), err)

	return err
}

// RecordMark relies on the row lock taken by UPDATE: a second writer waits for
// the first to commit, then re-checks recorded and matches no row.
func (r *repository) RecordMark(ctx context.Context, studentID, assessmentID int, mark decimal.Decimal) (bool, error) {
	start := time.Now()
	res, err := r.db.NewUpdate().
		Model((*Mark)(nil)).
		Set("mark = ?", mark).
		Set("recorded = TRUE").
		Set("updated_at = current_timestamp").
		Where("m.student_id = ?", studentID).
		Where("m.assessment_id = ?", assessmentID).
		Where("m.recorded = FALSE").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "marks", time.Since(start), err)

	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) Exists(ctx context.Context, studentID, courseID int, assessmentName string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*Mark)(nil)).
		Join("JOIN assessments AS a ON a.id = m.assessment_id").
		Where("m.student_id = ?", studentID).
		Where("a.course_id = ?", courseID).
		Where("a.name = ?", assessmentName).
		Where("m.recorded = TRUE").
		Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "exists", "marks", time.Since(start), err)

	return exists, err
}

func (r *repository) ListByCourse(ctx context.Context, courseID int) ([]Mark, error) {
	start := time.Now()
	marks := make([]Mark, 0)
	err := r.db.NewSelect().
		Model(&marks).
		Join("JOIN assessments AS a ON a.id = m.assessment_id").
		Where("a.course_id = ?", courseID).
		OrderExpr("m.student_id ASC, m.assessment_id ASC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "marks", time.Since(start), err)

	return marks, err
}

type studentRecordRow struct {
	CourseID       int             `bun:"course_id"`
	CourseName     string          `bun:"course_name"`
	AssessmentID   int             `bun:"assessment_id"`
	AssessmentName string          `bun:"assessment_name"`
	Weight         decimal.Decimal `bun:"weight"`
	Mark           decimal.Decimal `bun:"mark"`
}

func (r *repository) ListByStudent(ctx context.Context, studentID int) ([]StudentRecord, error) {
	start := time.Now()
	var rows []studentRecordRow
	err := r.db.NewSelect().
		TableExpr("marks AS m").
		ColumnExpr("c.id AS course_id, c.name AS course_name").
		ColumnExpr("a.id AS assessment_id, a.name AS assessment_name, a.weight").
		ColumnExpr("m.mark").
		Join("JOIN assessments AS a ON a.id = m.assessment_id").
		Join("JOIN courses AS c ON c.id = a.course_id").
		Where("m.student_id = ?", studentID).
		OrderExpr("c.id ASC, a.id ASC").
		Scan(ctx, &rows)

	r.metrics.Database.RecordQuery(ctx, "select", "marks", time.Since(start), err)

	if err != nil {
		return nil, err
	}

	records := make([]StudentRecord, len(rows))
	for i, row := range rows {
		records[i] = StudentRecord{
			CourseID:       row.CourseID,
			CourseName:     row.CourseName,
			AssessmentID:   row.AssessmentID,
			AssessmentName: row.AssessmentName,
			Weight:         row.Weight.InexactFloat64(),
			Mark:           row.Mark.InexactFloat64(),
		}
	}
	return records, nil
}
