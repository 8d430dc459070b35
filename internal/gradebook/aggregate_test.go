package gradebook

import (
	"testing"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/student"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSheet(t *testing.T) {
	assessments := []assessment.Assessment{
		{ID: 12, CourseID: 1, Name: "Exam", Weight: decimal.NewFromInt(70)},
		{ID: 11, CourseID: 1, Name: "Test", Weight: decimal.RequireFromString("30.5")},
	}
	students := []student.Student{
		{ID: 1, Name: "Ada", MatricNumber: "U1"},
		{ID: 2, Name: "Ben", MatricNumber: "U2"},
	}
	marks := []Mark{
		{StudentID: 1, AssessmentID: 11, Mark: decimal.RequireFromString("25.25")},
		{StudentID: 1, AssessmentID: 12, Mark: decimal.Zero},
		// A mark on an assessment outside the course is ignored.
		{StudentID: 1, AssessmentID: 99, Mark: decimal.NewFromInt(5)},
	}

	sheet := buildSheet(assessments, students, marks)

	require.Len(t, sheet.Assessments, 2)
	assert.Equal(t, 11, sheet.Assessments[0].ID)
	assert.Equal(t, 30.5, sheet.Assessments[0].Weight)

	require.Len(t, sheet.Students, 2)
	assert.Equal(t, map[int]float64{11: 25.25, 12: 0}, sheet.Students[0].Marks)
	assert.Equal(t, map[int]float64{}, sheet.Students[1].Marks)

	col, ok := sheet.Column(12)
	assert.True(t, ok)
	assert.Equal(t, "Exam", col.Name)
	_, ok = sheet.Column(99)
	assert.False(t, ok)
}

func TestMarkSheet_Only(t *testing.T) {
	sheet := buildSheet(
		[]assessment.Assessment{{ID: 1, Name: "Quiz", Weight: decimal.NewFromInt(10)}},
		[]student.Student{{ID: 1}, {ID: 2}},
		nil,
	)

	one := sheet.only(2)
	require.Len(t, one.Students, 1)
	assert.Equal(t, 2, one.Students[0].ID)
	assert.Len(t, one.Assessments, 1)

	none := sheet.only(3)
	assert.Empty(t, none.Students)
	assert.NotNil(t, none.Students)
	assert.Len(t, none.Assessments, 1)
}
