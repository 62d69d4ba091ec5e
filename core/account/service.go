package account

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

var (
	ErrNotFound             = errors.New("user not found")
	ErrNotAStudent          = errors.New("that user is not a student")
	ErrNotAnInstructor      = errors.New("that user is not an instructor")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrAuthenticationFailed = errors.New("please enter a correct username and password")
	ErrAccountDeactivated   = errors.New("this account is inactive")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists; emails are only checked when not empty.
		CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error
		CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		CreateStudentProfile(ctx context.Context, sp StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		CreateInstructorProfile(ctx context.Context, ip InstructorProfile, exec ...core.DBExecutor) (InstructorProfile, error)
		// GetAccount returns the account matching the first non-zero field of filter, with its profiles attached.
		GetAccount(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Account, error)
		UpdateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		GetStudentProfile(ctx context.Context, id int64, exec ...core.DBExecutor) (StudentProfile, error)
		DeleteStudentProfile(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// ProgressCleaner removes the progress entries of a student before their profile goes away.
	ProgressCleaner interface {
		DeleteByStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		progress ProgressCleaner
	}
)

func NewService(db core.DB, repo Repository, progress ProgressCleaner) *Service {
	return &Service{db: db, repo: repo, progress: progress}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Signup creates the account and its profile in a single transaction.
// na must have been validated.
func (svc *Service) Signup(ctx context.Context, na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acc := Account{
		Username:   na.Username,
		Email:      na.Email,
		FirstName:  na.FirstName,
		LastName:   na.LastName,
		IsActive:   true,
		DateJoined: now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "setting password")
	}

	err := svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if acc, err = svc.repo.CreateAccount(ctx, acc, exec); err != nil {
			return err
		}
		switch na.Role {
		case KindStudent:
			sp, err := svc.repo.CreateStudentProfile(ctx, StudentProfile{AccountID: acc.ID}, exec)
			if err != nil {
				return err
			}
			acc.AttachProfiles(&sp, nil)
		case KindInstructor:
			ip, err := svc.repo.CreateInstructorProfile(ctx, InstructorProfile{AccountID: acc.ID}, exec)
			if err != nil {
				return err
			}
			acc.AttachProfiles(nil, &ip)
		default:
			return core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Authenticate checks the credentials of an active account and records the login time.
// uname may be the username or the email of the account.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (Account, error) {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrAuthenticationFailed
		}
		return Account{}, err
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrAuthenticationFailed
	}
	if !acc.IsActive {
		return Account{}, ErrAccountDeactivated
	}

	acc.LastLogin = time.Now().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Username: core.CleanString(uname)})
}

// GetStudentByUsername returns the account of a student, or ErrNotAStudent.
func (svc *Service) GetStudentByUsername(ctx context.Context, uname string) (Account, error) {
	acc, err := svc.GetByUsername(ctx, uname)
	if err != nil {
		return Account{}, err
	}
	if !acc.IsStudent() {
		return Account{}, ErrNotAStudent
	}
	return acc, nil
}

// ResetPassword sets a new password on the account after checking it against the password policy.
func (svc *Service) ResetPassword(ctx context.Context, uname, pwd string) (Account, error) {
	acc, err := svc.GetByUsername(ctx, uname)
	if err != nil {
		return Account{}, err
	}
	if err = ValidatePassword(pwd, acc); err != nil {
		return Account{}, err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return Account{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.UpdateAccount(ctx, acc)
}

// DeleteStudentProfile removes the student profile and all of its progress entries atomically.
// The account survives without a profile.
func (svc *Service) DeleteStudentProfile(ctx context.Context, studentID int64) (deletedEntries int, err error) {
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetStudentProfile(ctx, studentID, exec); err != nil {
			return err
		}
		n, err := svc.progress.DeleteByStudent(ctx, studentID, exec)
		if err != nil {
			return errors.Wrap(err, "deleting progress entries")
		}
		deletedEntries = n
		return svc.repo.DeleteStudentProfile(ctx, studentID, exec)
	})
	if err != nil {
		return 0, err
	}
	return deletedEntries, nil
}

// DeleteStudentProfileByUsername is DeleteStudentProfile for the student with username uname.
func (svc *Service) DeleteStudentProfileByUsername(ctx context.Context, uname string) (int, error) {
	acc, err := svc.GetStudentByUsername(ctx, uname)
	if err != nil {
		return 0, err
	}
	return svc.DeleteStudentProfile(ctx, acc.Student.ID)
}
