package student

import "github.com/uptrace/bun"

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID           int    `bun:"id,pk,autoincrement" json:"id"`
	MatricNumber string `bun:"matric_number,unique,notnull" json:"matric_number"`
	Name         string `bun:"name,notnull" json:"name"`
}
