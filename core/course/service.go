package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

var ErrNotFound = errors.New("course not found")

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (Course, error)
		// QueryCourses returns the courses matching filter, newest first.
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// QueryPublished lists published courses, newest first. A zero limit returns all of them.
func (svc *Service) QueryPublished(ctx context.Context, limit uint64) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, QueryFilter{PublishedOnly: true, Limit: limit})
}

// QueryByInstructor lists all the courses, published or not, owned by the instructor.
func (svc *Service) QueryByInstructor(ctx context.Context, instructor account.Account) ([]Course, error) {
	ip, ok := instructor.InstructorProfile()
	if !ok {
		return nil, core.ErrNotAuthorized
	}
	return svc.repo.QueryCourses(ctx, QueryFilter{InstructorID: ip.ID})
}

func (svc *Service) Create(ctx context.Context, acc account.Account, nc NewCourse) (Course, error) {
	ip, ok := acc.InstructorProfile()
	if !ok {
		return Course{}, core.ErrNotAuthorized
	}
	crs := Course{
		InstructorID:       ip.ID,
		Title:              nc.Title,
		Description:        nc.Description,
		IsPublished:        nc.IsPublished,
		CreatedAt:          time.Now().UTC(),
		InstructorUsername: acc.Username,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) Get(ctx context.Context, id int64) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// GetForOwner returns the course if acc is the instructor owning it.
func (svc *Service) GetForOwner(ctx context.Context, acc account.Account, id int64) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !IsOwner(acc, crs) {
		return Course{}, core.ErrNotAuthorized
	}
	return crs, nil
}

func (svc *Service) Update(ctx context.Context, acc account.Account, id int64, uc UpdateCourse) (Course, error) {
	crs, err := svc.GetForOwner(ctx, acc, id)
	if err != nil {
		return Course{}, err
	}
	crs.Title = uc.Title
	crs.Description = uc.Description
	crs.IsPublished = uc.IsPublished
	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	return crs, nil
}

// IsOwner tells whether acc is the instructor owning crs.
func IsOwner(acc account.Account, crs Course) bool {
	ip, ok := acc.InstructorProfile()
	return ok && ip.ID == crs.InstructorID
}
