package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// withInstructor must be called with the read lock held.
func (repo *courseRepository) withInstructor(crs course.Course) course.Course {
	if ip, ok := repo.db.instructors[crs.InstructorID]; ok {
		crs.InstructorUsername = repo.db.accounts[ip.AccountID].Username
	}
	return crs
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.instructors[crs.InstructorID]; !ok {
		return course.Course{}, core.NewValidationError(nil, core.FieldError{Field: "instructor_id", Error: "instructor not found"})
	}
	crs.ID = repo.db.nextID("courses")
	crs.InstructorUsername = ""
	repo.db.courses[crs.ID] = crs
	return repo.withInstructor(crs), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int64, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return repo.withInstructor(crs), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if filter.PublishedOnly && !crs.IsPublished {
			continue
		}
		if filter.InstructorID != 0 && crs.InstructorID != filter.InstructorID {
			continue
		}
		courses = append(courses, repo.withInstructor(crs))
	}

	// newest first
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.After(courses[j].CreatedAt)
		}
		return courses[i].ID > courses[j].ID
	})
	if filter.Limit > 0 && uint64(len(courses)) > filter.Limit {
		courses = courses[:filter.Limit]
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Title = crs.Title
	orig.Description = crs.Description
	orig.IsPublished = crs.IsPublished
	repo.db.courses[crs.ID] = orig
	return repo.withInstructor(orig), nil
}
