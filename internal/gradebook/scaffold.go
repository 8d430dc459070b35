package gradebook

import (
	"context"
)

// catalog is the course/assessment schema as seen by one transaction.
type catalog struct {
	courseIDs     []int
	assessmentIDs []int
	assessments   map[int]struct{}
}

func loadCatalog(ctx context.Context, tx Tx) (*catalog, error) {
	courses, err := tx.Courses.GetAll(ctx)
	if err != nil {
		return nil, internalError("list courses", err)
	}

	cat := &catalog{
		courseIDs:   make([]int, 0, len(courses)),
		assessments: make(map[int]struct{}),
	}
	for _, c := range courses {
		cat.courseIDs = append(cat.courseIDs, c.ID)

		assessments, err := tx.Assessments.GetByCourse(ctx, c.ID)
		if err != nil {
			return nil, internalError("list assessments", err)
		}
		for _, a := range assessments {
			cat.assessmentIDs = append(cat.assessmentIDs, a.ID)
			cat.assessments[a.ID] = struct{}{}
		}
	}
	return cat, nil
}

func (c *catalog) hasAssessment(id int) bool {
	_, ok := c.assessments[id]
	return ok
}

// scaffold lists the rows ensureFullScaffold had to insert.
type scaffold struct {
	enrollments []int
	marks       []int
}

// ensureFullScaffold enrolls the student in every course of the catalog and
// gives them a zero mark on every assessment they have no mark for. It never
// touches existing rows, so running it again is a no-op.
func (s *service) ensureFullScaffold(ctx context.Context, tx Tx, cat *catalog, studentID int) (scaffold, error) {
	enrolled, err := tx.Marks.EnsureEnrollments(ctx, studentID, cat.courseIDs)
	if err != nil {
		return scaffold{}, internalError("enroll student", err)
	}

	marks, err := tx.Marks.EnsureMarks(ctx, studentID, cat.assessmentIDs)
	if err != nil {
		return scaffold{}, internalError("initialize marks", err)
	}

	return scaffold{enrollments: enrolled, marks: marks}, nil
}

// setMark overwrites the mark whether or not it was recorded before.
func (s *service) setMark(ctx context.Context, tx Tx, studentID, assessmentID int, mark float64) error {
	if err := tx.Marks.UpsertMark(ctx, studentID, assessmentID, toDecimal(mark)); err != nil {
		return internalError("write mark", err)
	}
	return nil
}

// claimMark writes the first recorded mark of a row created by the scaffold.
// A row recorded by someone else in the meantime is a conflict.
func (s *service) claimMark(ctx context.Context, tx Tx, studentID, assessmentID int, mark float64) (bool, error) {
	ok, err := tx.Marks.RecordMark(ctx, studentID, assessmentID, toDecimal(mark))
	if err != nil {
		return false, internalError("write mark", err)
	}
	return ok, nil
}
