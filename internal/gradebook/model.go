package gradebook

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Enrollment links a student to a course. One row per pair.
type Enrollment struct {
	bun.BaseModel `bun:"table:enrollments,alias:e"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	StudentID int       `bun:"student_id,notnull,unique:enrollment_student_course" json:"student_id"`
	CourseID  int       `bun:"course_id,notnull,unique:enrollment_student_course" json:"course_id"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (*Enrollment) ForeignKeys() []string {
	return []string{
		`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`,
		`("course_id") REFERENCES "courses" ("id") ON DELETE CASCADE`,
	}
}

// Mark is the mark of one student on one assessment. Rows created by the
// enrollment cascade hold a zero and are not Recorded until a mark is written.
// The unique (student_id, assessment_id) constraint keeps one row per pair.
type Mark struct {
	bun.BaseModel `bun:"table:marks,alias:m"`

	ID           int             `bun:"id,pk,autoincrement" json:"id"`
	StudentID    int             `bun:"student_id,notnull,unique:mark_student_assessment" json:"student_id"`
	AssessmentID int             `bun:"assessment_id,notnull,unique:mark_student_assessment" json:"assessment_id"`
	Mark         decimal.Decimal `bun:"mark,type:numeric(6,2),notnull,default:0" json:"mark"`
	Recorded     bool            `bun:"recorded,notnull,default:false" json:"recorded"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (*Mark) ForeignKeys() []string {
	return []string{
		`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`,
		`("assessment_id") REFERENCES "assessments" ("id") ON DELETE CASCADE`,
	}
}

// MarkEntry is one line of a batch: the mark a student earned on the batch's assessment.
type MarkEntry struct {
	StudentID int      `json:"student_id" validate:"required,gt=0"`
	Mark      *float64 `json:"mark" validate:"required"`
}

type batchInput struct {
	CourseID       int         `json:"course_id" validate:"required,gt=0"`
	AssessmentName string      `json:"assessment_name" validate:"required,notblank"`
	Entries        []MarkEntry `json:"entries" validate:"required,min=1,dive"`
}

// RecordPayload is the input of AddRecordWithCascade.
type RecordPayload struct {
	Name           string   `json:"name" validate:"required,notblank"`
	MatricNumber   string   `json:"matric_number" validate:"required,notblank"`
	CourseID       int      `json:"course_id" validate:"required,gt=0"`
	AssessmentName string   `json:"assessment_name" validate:"required,notblank"`
	Mark           *float64 `json:"mark" validate:"required"`
}

// MarkSheet is the join-free view of a course used by reports: every enrolled
// student with a mark per assessment id, plus the assessment columns.
type MarkSheet struct {
	Students    []StudentMarks     `json:"students"`
	Assessments []AssessmentColumn `json:"assessments"`
}

type StudentMarks struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	MatricNumber string          `json:"matric_number"`
	Marks        map[int]float64 `json:"marks"`
}

type AssessmentColumn struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// StudentRecord is one mark of a student, flattened with its course and assessment.
type StudentRecord struct {
	CourseID       int     `json:"course_id"`
	CourseName     string  `json:"course_name"`
	AssessmentID   int     `json:"assessment_id"`
	AssessmentName string  `json:"assessment_name"`
	Weight         float64 `json:"weight"`
	Mark           float64 `json:"mark"`
}
