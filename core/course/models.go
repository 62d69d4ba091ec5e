package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
)

type Course struct {
	ID           int64     `json:"id"`
	InstructorID int64     `json:"instructor_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"` // UTC

	// read only
	InstructorUsername string `json:"instructor_username,omitempty"`
}

type NewCourse struct {
	Title       string `json:"title" form:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" form:"description"`
	IsPublished bool   `json:"is_published" form:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string `json:"title" form:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" form:"description"`
	IsPublished bool   `json:"is_published" form:"is_published"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

// QueryFilter narrows course listings. Zero fields are ignored.
type QueryFilter struct {
	InstructorID  int64
	PublishedOnly bool
	Limit         uint64
}
