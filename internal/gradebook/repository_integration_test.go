//go:build integration

package gradebook_test

import (
	"context"
	"sync"
	"testing"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/course"
	"course-mark-service/internal/gradebook"
	"course-mark-service/internal/logger"
	"course-mark-service/internal/metrics"
	"course-mark-service/internal/student"
	"course-mark-service/testing/testdb"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixture struct {
	db  *bun.DB
	svc gradebook.Service

	c1, c2     course.Course
	a1, a2, b1 assessment.Assessment
	s          student.Student
}

func setupFixture(t *testing.T, pg *testdb.PostgresContainer) *fixture {
	t.Helper()
	ctx := context.Background()

	testdb.CleanupTables(t, pg.DB, "marks", "enrollments", "assessments", "courses", "students")

	f := &fixture{db: pg.DB}

	f.c1 = course.Course{Name: "C1"}
	f.c2 = course.Course{Name: "C2"}
	_, err := pg.DB.NewInsert().Model(&f.c1).Exec(ctx)
	require.NoError(t, err)
	_, err = pg.DB.NewInsert().Model(&f.c2).Exec(ctx)
	require.NoError(t, err)

	f.a1 = assessment.Assessment{CourseID: f.c1.ID, Name: "A1", Weight: decimal.NewFromInt(30)}
	f.a2 = assessment.Assessment{CourseID: f.c1.ID, Name: "A2", Weight: decimal.NewFromInt(70)}
	f.b1 = assessment.Assessment{CourseID: f.c2.ID, Name: "B1", Weight: decimal.NewFromInt(100)}
	for _, a := range []*assessment.Assessment{&f.a1, &f.a2, &f.b1} {
		_, err := pg.DB.NewInsert().Model(a).Exec(ctx)
		require.NoError(t, err)
	}

	f.s = student.Student{MatricNumber: "U1001", Name: "S"}
	_, err = pg.DB.NewInsert().Model(&f.s).Exec(ctx)
	require.NoError(t, err)

	m := metrics.NewMock()
	f.svc = gradebook.NewService(
		gradebook.NewStore(pg.DB, m),
		student.NewRepository(pg.DB, m),
		assessment.NewRepository(pg.DB, m),
		nil,
		logger.Discard(),
		m,
	)
	return f
}

func (f *fixture) mark(t *testing.T, studentID, assessmentID int) gradebook.Mark {
	t.Helper()
	var row gradebook.Mark
	err := f.db.NewSelect().
		Model(&row).
		Where("m.student_id = ?", studentID).
		Where("m.assessment_id = ?", assessmentID).
		Scan(context.Background())
	require.NoError(t, err)
	return row
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	n, err := f.db.NewSelect().Table(table).Count(context.Background())
	require.NoError(t, err)
	return n
}

func ptr(v float64) *float64 { return &v }

func TestGradebookPostgres(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	defer pg.Cleanup(t)

	pg.RunMigrations(t,
		(*student.Student)(nil),
		(*course.Course)(nil),
		(*assessment.Assessment)(nil),
		(*gradebook.Enrollment)(nil),
		(*gradebook.Mark)(nil),
	)

	ctx := context.Background()

	t.Run("CascadeBatchAndBounds", func(t *testing.T) {
		f := setupFixture(t, pg)

		_, err := f.svc.AddRecordWithCascade(ctx, gradebook.RecordPayload{
			Name: "S", MatricNumber: "U1001", CourseID: f.c1.ID, AssessmentName: "A1", Mark: ptr(25),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, f.count(t, "enrollments"))
		assert.Equal(t, 3, f.count(t, "marks"))

		sheet, err := f.svc.AggregateStudentMarks(ctx, f.c1.ID, f.s.ID)
		require.NoError(t, err)
		require.Len(t, sheet.Students, 1)
		assert.Equal(t, map[int]float64{f.a1.ID: 25, f.a2.ID: 0}, sheet.Students[0].Marks)

		_, err = f.svc.AddRecordWithCascade(ctx, gradebook.RecordPayload{
			Name: "S", MatricNumber: "U1001", CourseID: f.c1.ID, AssessmentName: "A1", Mark: ptr(1),
		})
		assert.ErrorIs(t, err, gradebook.ErrConflict)

		require.NoError(t, f.svc.CommitMarkBatch(ctx, f.c1.ID, "A2", []gradebook.MarkEntry{{StudentID: f.s.ID, Mark: ptr(35)}}))
		require.NoError(t, f.svc.CommitMarkBatch(ctx, f.c1.ID, "A2", []gradebook.MarkEntry{{StudentID: f.s.ID, Mark: ptr(60.5)}}))
		assert.Equal(t, "60.50", f.mark(t, f.s.ID, f.a2.ID).Mark.StringFixed(2))

		err = f.svc.CommitMarkBatch(ctx, f.c1.ID, "A1", []gradebook.MarkEntry{{StudentID: f.s.ID, Mark: ptr(50)}})
		assert.ErrorIs(t, err, gradebook.ErrValidation)
		assert.True(t, f.mark(t, f.s.ID, f.a1.ID).Mark.Equal(decimal.NewFromInt(25)))

		records, err := f.svc.GetStudentRecords(ctx, "U1001")
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("UnknownStudentRollsBackBatch", func(t *testing.T) {
		f := setupFixture(t, pg)

		err := f.svc.CommitMarkBatch(ctx, f.c1.ID, "A1", []gradebook.MarkEntry{
			{StudentID: f.s.ID, Mark: ptr(10)},
			{StudentID: f.s.ID + 1000, Mark: ptr(10)},
		})
		assert.ErrorIs(t, err, gradebook.ErrNotFound)
		assert.Equal(t, 0, f.count(t, "marks"))
		assert.Equal(t, 0, f.count(t, "enrollments"))
	})

	t.Run("ConcurrentAddsOneWins", func(t *testing.T) {
		f := setupFixture(t, pg)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.AddRecordWithCascade(ctx, gradebook.RecordPayload{
					Name: "S", MatricNumber: "U1001", CourseID: f.c2.ID, AssessmentName: "B1", Mark: ptr(float64(10 + i)),
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, gradebook.ErrConflict)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 2, f.count(t, "enrollments"))
		assert.Equal(t, 3, f.count(t, "marks"))
	})
}
