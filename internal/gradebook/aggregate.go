package gradebook

import (
	"context"
	"sort"

	"course-mark-service/internal/assessment"
	"course-mark-service/internal/student"
)

func (s *service) AggregateMarks(ctx context.Context, courseID int) (*MarkSheet, error) {
	return s.aggregate(ctx, courseID, 0)
}

// AggregateStudentMarks returns the sheet of a course reduced to one student.
// The assessment columns are always complete.
func (s *service) AggregateStudentMarks(ctx context.Context, courseID, studentID int) (*MarkSheet, error) {
	if studentID <= 0 {
		return nil, validationError("student id must be positive")
	}
	return s.aggregate(ctx, courseID, studentID)
}

func (s *service) aggregate(ctx context.Context, courseID, onlyStudent int) (*MarkSheet, error) {
	if courseID <= 0 {
		return nil, validationError("course id must be positive")
	}

	assessments, err := s.assessments.GetByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError("list assessments", err)
	}

	students, err := s.students.ListEnrolled(ctx, courseID)
	if err != nil {
		return nil, internalError("list enrolled students", err)
	}

	marks, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError("list marks", err)
	}

	sheet := buildSheet(assessments, students, marks)
	if onlyStudent > 0 {
		sheet = sheet.only(onlyStudent)
	}

	s.metrics.Gradebook.RecordSheetAggregated(ctx, onlyStudent > 0)
	return sheet, nil
}

func buildSheet(assessments []assessment.Assessment, students []student.Student, marks []Mark) *MarkSheet {
	sheet := &MarkSheet{
		Students:    make([]StudentMarks, 0, len(students)),
		Assessments: make([]AssessmentColumn, 0, len(assessments)),
	}

	index := make(map[int]AssessmentColumn, len(assessments))
	for _, a := range assessments {
		col := AssessmentColumn{ID: a.ID, Name: a.Name, Weight: a.Weight.InexactFloat64()}
		index[a.ID] = col
		sheet.Assessments = append(sheet.Assessments, col)
	}
	sort.Slice(sheet.Assessments, func(i, j int) bool {
		return sheet.Assessments[i].ID < sheet.Assessments[j].ID
	})

	byStudent := make(map[int]map[int]float64)
	for _, m := range marks {
		if _, ok := index[m.AssessmentID]; !ok {
			continue
		}
		if byStudent[m.StudentID] == nil {
			byStudent[m.StudentID] = make(map[int]float64)
		}
		byStudent[m.StudentID][m.AssessmentID] = m.Mark.InexactFloat64()
	}

	for _, st := range students {
		studentMarks := byStudent[st.ID]
		if studentMarks == nil {
			studentMarks = map[int]float64{}
		}
		sheet.Students = append(sheet.Students, StudentMarks{
			ID:           st.ID,
			Name:         st.Name,
			MatricNumber: st.MatricNumber,
			Marks:        studentMarks,
		})
	}

	return sheet
}

func (m *MarkSheet) only(studentID int) *MarkSheet {
	filtered := &MarkSheet{
		Students:    make([]StudentMarks, 0, 1),
		Assessments: m.Assessments,
	}
	for _, st := range m.Students {
		if st.ID == studentID {
			filtered.Students = append(filtered.Students, st)
			break
		}
	}
	return filtered
}

// Column returns the assessment column with the given id.
func (m *MarkSheet) Column(assessmentID int) (AssessmentColumn, bool) {
	for _, a := range m.Assessments {
		if a.ID == assessmentID {
			return a, true
		}
	}
	return AssessmentColumn{}, false
}
