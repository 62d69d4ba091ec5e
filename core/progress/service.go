package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
)

var ErrNotFound = errors.New("progress entry not found")

type (
	Repository interface {
		// GetOrCreateEntry inserts e unless an entry already exists for (e.StudentID, e.CourseID),
		// in which case the existing entry is returned with created=false.
		GetOrCreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (entry Entry, created bool, err error)
		GetEntry(ctx context.Context, id int64, exec ...core.DBExecutor) (Entry, error)
		GetStudentEntry(ctx context.Context, studentID, courseID int64, exec ...core.DBExecutor) (Entry, error)
		QueryEntries(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Entry, error)
		UpdateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		DeleteEntry(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// DeleteByStudent removes every entry of the student and returns how many were removed.
		DeleteByStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) (int, error)
	}

	CourseGetter interface {
		Get(ctx context.Context, id int64) (course.Course, error)
	}

	AccountGetter interface {
		GetByUsername(ctx context.Context, uname string) (account.Account, error)
	}

	Service struct {
		repo     Repository
		courses  CourseGetter
		accounts AccountGetter
	}
)

func NewService(repo Repository, courses CourseGetter, accounts AccountGetter) *Service {
	return &Service{repo: repo, courses: courses, accounts: accounts}
}

// Enroll gets or creates the progress entry of student in crs.
// created tells "enrolled" apart from "already enrolled"; both are successes.
func (svc *Service) Enroll(ctx context.Context, student account.Account, crs course.Course) (Entry, bool, error) {
	sp, ok := student.StudentProfile()
	if !ok {
		return Entry{}, false, account.ErrNotAStudent
	}
	e := Entry{
		StudentID:       sp.ID,
		CourseID:        null.Int64From(crs.ID),
		CourseName:      crs.Title,
		ProgressPercent: 0,
		UpdatedAt:       time.Now().UTC(),
	}
	entry, created, err := svc.repo.GetOrCreateEntry(ctx, e)
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "enrolling student")
	}
	return entry, created, nil
}

// EnrollByUsername enrolls the student named uname in one of the instructor's courses.
func (svc *Service) EnrollByUsername(ctx context.Context, instructor account.Account, courseID int64, uname string) (Entry, bool, error) {
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return Entry{}, false, err
	}
	if !course.IsOwner(instructor, crs) {
		return Entry{}, false, core.ErrNotAuthorized
	}

	student, err := svc.accounts.GetByUsername(ctx, uname)
	if err != nil {
		return Entry{}, false, err
	}
	if !student.IsStudent() {
		return Entry{}, false, core.NewValidationError(
			account.ErrNotAStudent,
			core.FieldError{Field: "username", Error: account.ErrNotAStudent.Error()},
		)
	}
	return svc.Enroll(ctx, student, crs)
}

func (svc *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return svc.repo.GetEntry(ctx, id)
}

// GetForOwner returns the entry if instructor owns its course.
// Entries whose course is gone have no owner.
func (svc *Service) GetForOwner(ctx context.Context, instructor account.Account, id int64) (Entry, error) {
	e, err := svc.repo.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !IsCourseOwner(instructor, e) {
		return Entry{}, core.ErrNotAuthorized
	}
	return e, nil
}

// GetForStudent returns the entry of student in the course, if any.
func (svc *Service) GetForStudent(ctx context.Context, student account.Account, courseID int64) (Entry, error) {
	sp, ok := student.StudentProfile()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return svc.repo.GetStudentEntry(ctx, sp.ID, courseID)
}

// QueryByCourse lists the entries of one of the instructor's courses, ordered by student username by default.
func (svc *Service) QueryByCourse(ctx context.Context, instructor account.Account, courseID int64, ordering ...core.DBOrdering) ([]Entry, error) {
	orderings, err := orderBy(ordering, byStudentUsername)
	if err != nil {
		return nil, err
	}
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsOwner(instructor, crs) {
		return nil, core.ErrNotAuthorized
	}
	return svc.repo.QueryEntries(ctx, QueryFilter{CourseID: crs.ID, OrderBy: orderings})
}

// QueryByStudent lists the entries of student, most recently updated first by default.
func (svc *Service) QueryByStudent(ctx context.Context, student account.Account, ordering ...core.DBOrdering) ([]Entry, error) {
	orderings, err := orderBy(ordering, byLatestUpdate)
	if err != nil {
		return nil, err
	}
	sp, ok := student.StudentProfile()
	if !ok {
		return nil, account.ErrNotAStudent
	}
	return svc.repo.QueryEntries(ctx, QueryFilter{StudentID: sp.ID, OrderBy: orderings})
}

// Update sets the progress percent of an entry of one of the instructor's courses.
func (svc *Service) Update(ctx context.Context, instructor account.Account, id int64, ue UpdateEntry) (Entry, error) {
	if ue.ProgressPercent == nil {
		return Entry{}, core.NewValidationError(nil, core.FieldError{Field: "progress_percent", Error: "this field is required"})
	}
	if err := checkPercent(*ue.ProgressPercent); err != nil {
		return Entry{}, err
	}
	e, err := svc.GetForOwner(ctx, instructor, id)
	if err != nil {
		return Entry{}, err
	}
	e.ProgressPercent = *ue.ProgressPercent
	e.UpdatedAt = time.Now().UTC()
	if e, err = svc.repo.UpdateEntry(ctx, e); err != nil {
		return Entry{}, errors.Wrap(err, "updating progress entry")
	}
	return e, nil
}

// Delete removes an entry of one of the instructor's courses.
func (svc *Service) Delete(ctx context.Context, instructor account.Account, id int64) error {
	if _, err := svc.GetForOwner(ctx, instructor, id); err != nil {
		return err
	}
	return svc.repo.DeleteEntry(ctx, id)
}

// IsCourseOwner tells whether instructor owns the course the entry belongs to.
func IsCourseOwner(instructor account.Account, e Entry) bool {
	ip, ok := instructor.InstructorProfile()
	return ok && e.CourseID.Valid && e.CourseInstructorID.Valid && e.CourseInstructorID.Int64 == ip.ID
}

func checkPercent(pct int) error {
	if pct < MinPercent || pct > MaxPercent {
		msg := fmt.Sprintf("progress_percent must be between %d and %d", MinPercent, MaxPercent)
		return core.NewValidationError(nil, core.FieldError{Field: "progress_percent", Error: msg})
	}
	return nil
}
