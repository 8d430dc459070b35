package course

import "github.com/uptrace/bun"

type Course struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID   int    `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}
