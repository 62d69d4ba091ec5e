package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

// withRelations must be called with the read lock held.
func (repo *progressRepository) withRelations(e progress.Entry) progress.Entry {
	e.StudentUsername = ""
	if sp, ok := repo.db.students[e.StudentID]; ok {
		e.StudentUsername = repo.db.accounts[sp.AccountID].Username
	}
	e.CourseTitle, e.CourseInstructorID = null.String{}, null.Int64{}
	if e.CourseID.Valid {
		if crs, ok := repo.db.courses[e.CourseID.Int64]; ok {
			e.CourseTitle = null.StringFrom(crs.Title)
			e.CourseInstructorID = null.Int64From(crs.InstructorID)
		}
	}
	return e
}

// findEntry must be called with the read lock held.
func (repo *progressRepository) findEntry(studentID int64, courseID null.Int64) (progress.Entry, bool) {
	if !courseID.Valid {
		return progress.Entry{}, false
	}
	for _, e := range repo.db.entries {
		if e.StudentID == studentID && e.CourseID.Valid && e.CourseID.Int64 == courseID.Int64 {
			return e, true
		}
	}
	return progress.Entry{}, false
}

func (repo *progressRepository) GetOrCreateEntry(_ context.Context, e progress.Entry, _ ...core.DBExecutor) (progress.Entry, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.findEntry(e.StudentID, e.CourseID); ok {
		return repo.withRelations(existing), false, nil
	}
	if _, ok := repo.db.students[e.StudentID]; !ok {
		return progress.Entry{}, false, errors.Errorf("student profile %d does not exist", e.StudentID)
	}
	if e.ProgressPercent < progress.MinPercent || e.ProgressPercent > progress.MaxPercent {
		return progress.Entry{}, false, errors.Errorf("progress percent %d out of range", e.ProgressPercent)
	}

	e.ID = repo.db.nextID("progress_entries")
	repo.db.entries[e.ID] = e
	return repo.withRelations(e), true, nil
}

func (repo *progressRepository) GetEntry(_ context.Context, id int64, _ ...core.DBExecutor) (progress.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.entries[id]; ok {
		return repo.withRelations(e), nil
	}
	return progress.Entry{}, progress.ErrNotFound
}

func (repo *progressRepository) GetStudentEntry(_ context.Context, studentID, courseID int64, _ ...core.DBExecutor) (progress.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.findEntry(studentID, null.Int64From(courseID)); ok {
		return repo.withRelations(e), nil
	}
	return progress.Entry{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryEntries(_ context.Context, filter progress.QueryFilter, _ ...core.DBExecutor) ([]progress.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]progress.Entry, 0)
	for _, e := range repo.db.entries {
		if filter.StudentID != 0 && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != 0 && (!e.CourseID.Valid || e.CourseID.Int64 != filter.CourseID) {
			continue
		}
		entries = append(entries, repo.withRelations(e))
	}

	for _, ord := range filter.OrderBy {
		if _, ok := entryLess[ord.Field]; !ok {
			return nil, errors.Errorf("cannot order progress entries by %q", ord.Field)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		for _, ord := range filter.OrderBy {
			less := entryLess[ord.Field]
			a, b := entries[i], entries[j]
			if !ord.Ascending {
				a, b = b, a
			}
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

var entryLess = map[string]func(a, b progress.Entry) bool{
	"id":               func(a, b progress.Entry) bool { return a.ID < b.ID },
	"updated_at":       func(a, b progress.Entry) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	"student_username": func(a, b progress.Entry) bool { return a.StudentUsername < b.StudentUsername },
	"course_name":      func(a, b progress.Entry) bool { return a.CourseName < b.CourseName },
}

func (repo *progressRepository) UpdateEntry(_ context.Context, e progress.Entry, _ ...core.DBExecutor) (progress.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.entries[e.ID]
	if !ok {
		return progress.Entry{}, progress.ErrNotFound
	}
	if e.ProgressPercent < progress.MinPercent || e.ProgressPercent > progress.MaxPercent {
		return progress.Entry{}, errors.Errorf("progress percent %d out of range", e.ProgressPercent)
	}
	orig.ProgressPercent = e.ProgressPercent
	orig.UpdatedAt = e.UpdatedAt
	repo.db.entries[e.ID] = orig
	return repo.withRelations(orig), nil
}

func (repo *progressRepository) DeleteEntry(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.entries[id]; !ok {
		return progress.ErrNotFound
	}
	delete(repo.db.entries, id)
	return nil
}

func (repo *progressRepository) DeleteByStudent(_ context.Context, studentID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, e := range repo.db.entries {
		if e.StudentID == studentID {
			delete(repo.db.entries, id)
			n++
		}
	}
	return n, nil
}
