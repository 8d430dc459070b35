package reporting

import (
	"errors"
	"sort"

	"course-mark-service/internal/gradebook"

	"github.com/shopspring/decimal"
)

var ErrStudentNotInCourse = errors.New("student has no standing in this course")

type CourseReport struct {
	CourseID     int               `json:"course_id"`
	TotalWeight  float64           `json:"total_weight"`
	ClassAverage float64           `json:"class_average"`
	Students     []StudentResult   `json:"students"`
	Components   []ComponentResult `json:"components"`
}

// StudentResult is one line of the ranked list. Students missing a mark are
// counted as zero for that assessment.
type StudentResult struct {
	Rank         int     `json:"rank"`
	StudentID    int     `json:"student_id"`
	Name         string  `json:"name"`
	MatricNumber string  `json:"matric_number"`
	Total        float64 `json:"total"`
	Percentage   float64 `json:"percentage"`
}

// ComponentResult summarizes one assessment over the students that have a mark on it.
type ComponentResult struct {
	AssessmentID int     `json:"assessment_id"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Average      float64 `json:"average"`
	Highest      float64 `json:"highest"`
	Lowest       float64 `json:"lowest"`
	Count        int     `json:"count"`
}

type Standing struct {
	StudentResult
	ClassSize    int     `json:"class_size"`
	ClassAverage float64 `json:"class_average"`
	AboveAverage bool    `json:"above_average"`
}

type scored struct {
	result StudentResult
	total  decimal.Decimal
}

// BuildCourseReport ranks the students of sheet by total. Ties share a rank and
// the next rank skips (1, 2, 2, 4); tied students are listed by matric number.
func BuildCourseReport(courseID int, sheet *gradebook.MarkSheet) *CourseReport {
	report := &CourseReport{
		CourseID:   courseID,
		Students:   []StudentResult{},
		Components: []ComponentResult{},
	}
	if sheet == nil {
		return report
	}

	totalWeight := decimal.Zero
	for _, col := range sheet.Assessments {
		totalWeight = totalWeight.Add(decimal.NewFromFloat(col.Weight))
	}
	report.TotalWeight = round(totalWeight)

	rows := make([]scored, 0, len(sheet.Students))
	sum := decimal.Zero
	for _, st := range sheet.Students {
		total := decimal.Zero
		for _, col := range sheet.Assessments {
			if mark, ok := st.Marks[col.ID]; ok {
				total = total.Add(decimal.NewFromFloat(mark))
			}
		}
		sum = sum.Add(total)

		pct := decimal.Zero
		if totalWeight.IsPositive() {
			pct = total.Div(totalWeight).Mul(decimal.NewFromInt(100))
		}

		rows = append(rows, scored{
			total: total.Round(2),
			result: StudentResult{
				StudentID:    st.ID,
				Name:         st.Name,
				MatricNumber: st.MatricNumber,
				Total:        round(total),
				Percentage:   round(pct),
			},
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].total.Cmp(rows[j].total); c != 0 {
			return c > 0
		}
		return rows[i].result.MatricNumber < rows[j].result.MatricNumber
	})

	for i := range rows {
		if i > 0 && rows[i].total.Equal(rows[i-1].total) {
			rows[i].result.Rank = rows[i-1].result.Rank
		} else {
			rows[i].result.Rank = i + 1
		}
		report.Students = append(report.Students, rows[i].result)
	}

	if len(rows) > 0 {
		report.ClassAverage = round(sum.Div(decimal.NewFromInt(int64(len(rows)))))
	}

	for _, col := range sheet.Assessments {
		report.Components = append(report.Components, component(col, sheet.Students))
	}

	return report
}

func component(col gradebook.AssessmentColumn, students []gradebook.StudentMarks) ComponentResult {
	res := ComponentResult{AssessmentID: col.ID, Name: col.Name, Weight: col.Weight}

	var sum, hi, lo decimal.Decimal
	for _, st := range students {
		mark, ok := st.Marks[col.ID]
		if !ok {
			continue
		}
		d := decimal.NewFromFloat(mark)
		if res.Count == 0 || d.GreaterThan(hi) {
			hi = d
		}
		if res.Count == 0 || d.LessThan(lo) {
			lo = d
		}
		sum = sum.Add(d)
		res.Count++
	}

	if res.Count > 0 {
		res.Average = round(sum.Div(decimal.NewFromInt(int64(res.Count))))
		res.Highest = round(hi)
		res.Lowest = round(lo)
	}
	return res
}

// StudentStanding picks one student out of a course report.
func StudentStanding(report *CourseReport, studentID int) (*Standing, error) {
	for _, res := range report.Students {
		if res.StudentID == studentID {
			return &Standing{
				StudentResult: res,
				ClassSize:     len(report.Students),
				ClassAverage:  report.ClassAverage,
				AboveAverage:  res.Total > report.ClassAverage,
			}, nil
		}
	}
	return nil, ErrStudentNotInCourse
}

func round(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
