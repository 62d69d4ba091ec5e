package progress_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
	"github.com/trezcool/classroom/testutil"
)

func TestService_Enroll(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.AccountRepo, "teacher")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	crs := testutil.CreateCourse(t, s.CourseRepo, teacher, "Go 101", true)

	first, created, err := s.ProgressSvc.Enroll(ctx, alice, crs)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, first.ProgressPercent)
	assert.Equal(t, "Go 101", first.CourseName)
	assert.Equal(t, alice.Student.ID, first.StudentID)

	second, created, err := s.ProgressSvc.Enroll(ctx, alice, crs)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	entries, err := s.ProgressRepo.QueryEntries(ctx, progress.QueryFilter{StudentID: alice.Student.ID, CourseID: crs.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// not a student
	_, _, err = s.ProgressSvc.Enroll(ctx, teacher, crs)
	assert.Equal(t, account.ErrNotAStudent, errors.Cause(err))
}

func TestService_Enroll_concurrent(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.AccountRepo, "teacher")
	bob := testutil.CreateStudent(t, s.AccountRepo, "bob")
	crs := testutil.CreateCourse(t, s.CourseRepo, teacher, "Go 101", true)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ProgressSvc.Enroll(ctx, bob, crs)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	entries, err := s.ProgressRepo.QueryEntries(ctx, progress.QueryFilter{StudentID: bob.Student.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_EnrollByUsername(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.AccountRepo, "teacher")
	other := testutil.CreateInstructor(t, s.AccountRepo, "other")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	crs := testutil.CreateCourse(t, s.CourseRepo, teacher, "Go 101", false)

	tests := []struct {
		name        string
		instructor  account.Account
		courseID    int64
		username    string
		wantCreated bool
		wantErr     error
	}{
		{name: "course not found", instructor: teacher, courseID: 999, username: "alice", wantErr: course.ErrNotFound},
		{name: "not the owner", instructor: other, courseID: crs.ID, username: "alice", wantErr: core.ErrNotAuthorized},
		{name: "user not found", instructor: teacher, courseID: crs.ID, username: "nobody", wantErr: account.ErrNotFound},
		{name: "enrolled", instructor: teacher, courseID: crs.ID, username: "alice", wantCreated: true},
		{name: "already enrolled", instructor: teacher, courseID: crs.ID, username: "alice", wantCreated: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, created, err := s.ProgressSvc.EnrollByUsername(ctx, tt.instructor, tt.courseID, tt.username)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			assert.Equal(t, alice.Student.ID, e.StudentID)
		})
	}

	// "not a student" is reported as a field error
	_, _, err := s.ProgressSvc.EnrollByUsername(ctx, teacher, crs.ID, "other")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, map[string]string{"username": account.ErrNotAStudent.Error()}, vErr.FieldErrors())
}

func TestService_Update(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	other := testutil.CreateInstructor(t, s.AccountRepo, "other")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	crs := testutil.CreateCourse(t, s.CourseRepo, owner, "Go 101", true)
	entry := testutil.CreateEntry(t, s.ProgressRepo, alice, crs, 10)
	orphan := testutil.CreateEntry(t, s.ProgressRepo, alice, course.Course{Title: "Gone"}, 20)

	tests := []struct {
		name       string
		instructor account.Account
		id         int64
		percent    int
		missing    bool
		wantErr    error
	}{
		{name: "not found", instructor: owner, id: 999, percent: 50, wantErr: progress.ErrNotFound},
		{name: "student", instructor: alice, id: entry.ID, percent: 50, wantErr: core.ErrNotAuthorized},
		{name: "not the owner", instructor: other, id: entry.ID, percent: 50, wantErr: core.ErrNotAuthorized},
		{name: "no course", instructor: owner, id: orphan.ID, percent: 50, wantErr: core.ErrNotAuthorized},
		{name: "below range", instructor: owner, id: entry.ID, percent: -1},
		{name: "above range", instructor: owner, id: entry.ID, percent: 101},
		{name: "missing percent", instructor: owner, id: entry.ID, missing: true},
		{name: "owner", instructor: owner, id: entry.ID, percent: 50},
		{name: "upper bound", instructor: owner, id: entry.ID, percent: 100},
		{name: "lower bound", instructor: owner, id: entry.ID, percent: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := s.ProgressRepo.GetEntry(ctx, entry.ID)
			require.NoError(t, err)

			data := testutil.Percent(tt.percent)
			if tt.missing {
				data = progress.UpdateEntry{}
			}
			updated, err := s.ProgressSvc.Update(ctx, tt.instructor, tt.id, data)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.missing:
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr), "err = %v", err)
				assert.Equal(t, map[string]string{"progress_percent": "this field is required"}, vErr.FieldErrors())
			case tt.percent < progress.MinPercent || tt.percent > progress.MaxPercent:
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr), "err = %v", err)
				assert.Contains(t, vErr.FieldErrors(), "progress_percent")
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.percent, updated.ProgressPercent)
			}

			after, err := s.ProgressRepo.GetEntry(ctx, entry.ID)
			require.NoError(t, err)
			refused := tt.wantErr != nil || tt.missing || tt.id != entry.ID || tt.percent < progress.MinPercent || tt.percent > progress.MaxPercent
			if refused {
				assert.Equal(t, before.ProgressPercent, after.ProgressPercent, "refused update must not persist")
			} else {
				assert.Equal(t, tt.percent, after.ProgressPercent)
			}
		})
	}
}

func TestService_Delete(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	other := testutil.CreateInstructor(t, s.AccountRepo, "other")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	crs := testutil.CreateCourse(t, s.CourseRepo, owner, "Go 101", true)
	entry := testutil.CreateEntry(t, s.ProgressRepo, alice, crs, 10)

	err := s.ProgressSvc.Delete(ctx, other, entry.ID)
	assert.Equal(t, core.ErrNotAuthorized, errors.Cause(err))
	_, err = s.ProgressRepo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)

	require.NoError(t, s.ProgressSvc.Delete(ctx, owner, entry.ID))
	_, err = s.ProgressRepo.GetEntry(ctx, entry.ID)
	assert.Equal(t, progress.ErrNotFound, errors.Cause(err))

	err = s.ProgressSvc.Delete(ctx, owner, entry.ID)
	assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
}

func TestService_queries(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	other := testutil.CreateInstructor(t, s.AccountRepo, "other")
	zoe := testutil.CreateStudent(t, s.AccountRepo, "zoe")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	go101 := testutil.CreateCourse(t, s.CourseRepo, owner, "Go 101", true)
	sql101 := testutil.CreateCourse(t, s.CourseRepo, owner, "SQL 101", true)

	testutil.CreateEntry(t, s.ProgressRepo, zoe, go101, 10)
	testutil.CreateEntry(t, s.ProgressRepo, alice, go101, 20)
	_, _, err := s.ProgressSvc.Enroll(ctx, alice, sql101)
	require.NoError(t, err)

	t.Run("by course, ordered by student username", func(t *testing.T) {
		entries, err := s.ProgressSvc.QueryByCourse(ctx, owner, go101.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "alice", entries[0].StudentUsername)
		assert.Equal(t, "zoe", entries[1].StudentUsername)

		_, err = s.ProgressSvc.QueryByCourse(ctx, other, go101.ID)
		assert.Equal(t, core.ErrNotAuthorized, errors.Cause(err))
	})

	t.Run("by student, latest first", func(t *testing.T) {
		entries, err := s.ProgressSvc.QueryByStudent(ctx, alice)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "SQL 101", entries[0].Label())
		assert.Equal(t, "Go 101", entries[1].Label())

		_, err = s.ProgressSvc.QueryByStudent(ctx, owner)
		assert.Equal(t, account.ErrNotAStudent, errors.Cause(err))
	})

	t.Run("custom ordering", func(t *testing.T) {
		entries, err := s.ProgressSvc.QueryByCourse(ctx, owner, go101.ID, core.DBOrdering{Field: "student_username"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "zoe", entries[0].StudentUsername)

		entries, err = s.ProgressSvc.QueryByStudent(ctx, alice, core.DBOrdering{Field: "course_name", Ascending: true})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Go 101", entries[0].CourseName)

		_, err = s.ProgressSvc.QueryByStudent(ctx, alice, core.DBOrdering{Field: "password"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, map[string]string{"ordering": `cannot order by "password"`}, vErr.FieldErrors())
	})

	t.Run("student entry", func(t *testing.T) {
		e, err := s.ProgressSvc.GetForStudent(ctx, zoe, go101.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, e.ProgressPercent)

		_, err = s.ProgressSvc.GetForStudent(ctx, zoe, sql101.ID)
		assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
	})
}

func TestEntry_Label(t *testing.T) {
	s := testutil.NewStore(t)
	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	crs := testutil.CreateCourse(t, s.CourseRepo, owner, "Go 101", true)

	linked := testutil.CreateEntry(t, s.ProgressRepo, alice, crs, 0)
	orphan := testutil.CreateEntry(t, s.ProgressRepo, alice, course.Course{Title: "Archived course"}, 0)

	assert.Equal(t, "Go 101", linked.Label())
	assert.Equal(t, "Archived course", orphan.Label())
}
