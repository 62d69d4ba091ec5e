package progress

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
)

const (
	MinPercent = 0
	MaxPercent = 100
)

// Entry records the completion percentage of a student within one course.
// CourseID is null once the course is gone; CourseName keeps the title the student enrolled in.
type Entry struct {
	ID              int64      `json:"id"`
	StudentID       int64      `json:"student_id"`
	CourseID        null.Int64 `json:"course_id"`
	CourseName      string     `json:"course_name"`
	ProgressPercent int        `json:"progress_percent"`
	UpdatedAt       time.Time  `json:"updated_at"` // UTC

	// read only
	StudentUsername    string      `json:"student_username,omitempty"`
	CourseTitle        null.String `json:"course_title"`
	CourseInstructorID null.Int64  `json:"-"`
}

// Label is the title of the linked course, or the stored course name when the link is absent.
func (e Entry) Label() string {
	if e.CourseTitle.Valid && e.CourseTitle.String != "" {
		return e.CourseTitle.String
	}
	return e.CourseName
}

// UpdateEntry.ProgressPercent is nil when the field was not sent.
type UpdateEntry struct {
	ProgressPercent *int `json:"progress_percent" form:"progress_percent" validate:"required,min=0,max=100"`
}

func (ue *UpdateEntry) Validate(validate *validator.Validate) error {
	return validate.Struct(ue)
}

// EnrollStudent is the form used by instructors to enroll a student by username.
type EnrollStudent struct {
	Username string `json:"username" form:"username" validate:"required,notblank,max=150"`
}

func (es *EnrollStudent) Validate(validate *validator.Validate) error {
	es.Username = core.CleanString(es.Username)
	return validate.Struct(es)
}

type QueryFilter struct {
	StudentID int64
	CourseID  int64
	OrderBy   []core.DBOrdering
}

var (
	byStudentUsername = []core.DBOrdering{{Field: "student_username", Ascending: true}}
	byLatestUpdate    = []core.DBOrdering{{Field: "updated_at"}, {Field: "id"}}

	orderableFields = map[string]bool{"id": true, "updated_at": true, "student_username": true, "course_name": true}
)

// orderBy checks the requested ordering, falling back to def when none was requested.
func orderBy(ordering, def []core.DBOrdering) ([]core.DBOrdering, error) {
	if len(ordering) == 0 {
		return def, nil
	}
	for _, ord := range ordering {
		if !orderableFields[ord.Field] {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "ordering",
				Error: fmt.Sprintf("cannot order by %q", ord.Field),
			})
		}
	}
	return ordering, nil
}
