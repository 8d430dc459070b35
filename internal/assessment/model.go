package assessment

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Assessment is one weighted component of a course. Weight is the highest mark
// a student can earn on it.
type Assessment struct {
	bun.BaseModel `bun:"table:assessments,alias:a"`

	ID       int             `bun:"id,pk,autoincrement" json:"id"`
	CourseID int             `bun:"course_id,notnull,unique:course_assessment_name" json:"course_id"`
	Name     string          `bun:"name,notnull,unique:course_assessment_name" json:"name"`
	Weight   decimal.Decimal `bun:"weight,type:numeric(6,2),notnull" json:"weight"`
}

func (*Assessment) ForeignKeys() []string {
	return []string{`("course_id") REFERENCES "courses" ("id") ON DELETE CASCADE`}
}
