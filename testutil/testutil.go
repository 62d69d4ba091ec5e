package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
	dummydb "github.com/trezcool/classroom/storage/database/dummy"
)

// Password satisfies the password policy.
const Password = "Tr0ub4dor&3x"

// Store holds an in-memory database and the repositories and services built on it.
type Store struct {
	DB           *dummydb.DB
	AccountRepo  account.Repository
	CourseRepo   course.Repository
	ProgressRepo progress.Repository

	AccountSvc  *account.Service
	CourseSvc   *course.Service
	ProgressSvc *progress.Service

	Validate   *validator.Validate
	Translator ut.Translator
}

func NewStore(t *testing.T) *Store {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	s := &Store{
		DB:           db,
		AccountRepo:  dummydb.NewAccountRepository(db),
		CourseRepo:   dummydb.NewCourseRepository(db),
		ProgressRepo: dummydb.NewProgressRepository(db),
	}
	s.Validate, s.Translator = NewTranslatedValidate()
	s.AccountSvc = account.NewService(db, s.AccountRepo, s.ProgressRepo)
	s.CourseSvc = course.NewService(s.CourseRepo)
	s.ProgressSvc = progress.NewService(s.ProgressRepo, s.CourseSvc, s.AccountSvc)
	return s
}

// NewValidate returns a validator with the core and account validators registered.
func NewValidate() *validator.Validate {
	validate, _ := NewTranslatedValidate()
	return validate
}

// NewTranslatedValidate is NewValidate that also returns the translator of the validation messages.
func NewTranslatedValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

func createAccount(t *testing.T, repo account.Repository, uname string, isActive bool) account.Account {
	t.Helper()
	acc := account.Account{
		Username:   uname,
		Email:      uname + "@example.com",
		IsActive:   isActive,
		DateJoined: time.Now().UTC(),
	}
	if err := acc.SetPassword(Password); err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return acc
}

func CreateStudent(t *testing.T, repo account.Repository, uname string) account.Account {
	t.Helper()
	acc := createAccount(t, repo, uname, true)
	sp, err := repo.CreateStudentProfile(context.Background(), account.StudentProfile{AccountID: acc.ID})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	acc.AttachProfiles(&sp, nil)
	return acc
}

func CreateInstructor(t *testing.T, repo account.Repository, uname string) account.Account {
	t.Helper()
	acc := createAccount(t, repo, uname, true)
	ip, err := repo.CreateInstructorProfile(context.Background(), account.InstructorProfile{AccountID: acc.ID})
	if err != nil {
		t.Fatalf("CreateInstructor() failed: %v", err)
	}
	acc.AttachProfiles(nil, &ip)
	return acc
}

// CreateInactive creates a deactivated account without any profile.
func CreateInactive(t *testing.T, repo account.Repository, uname string) account.Account {
	t.Helper()
	return createAccount(t, repo, uname, false)
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	instructor account.Account,
	title string,
	published bool,
	createdAt ...time.Time,
) course.Course {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs := course.Course{
		InstructorID: instructor.Instructor.ID,
		Title:        title,
		IsPublished:  published,
		CreatedAt:    tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateEntry(t *testing.T, repo progress.Repository, student account.Account, crs course.Course, pct int) progress.Entry {
	t.Helper()
	e := progress.Entry{
		StudentID:       student.Student.ID,
		CourseID:        null.Int64From(crs.ID),
		CourseName:      crs.Title,
		ProgressPercent: pct,
		UpdatedAt:       time.Now().UTC(),
	}
	if crs.ID == 0 {
		e.CourseID = null.Int64{}
	}
	e, _, err := repo.GetOrCreateEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEntry() failed: %v", err)
	}
	return e
}

// Percent returns a progress update setting pct.
func Percent(pct int) progress.UpdateEntry {
	return progress.UpdateEntry{ProgressPercent: &pct}
}
