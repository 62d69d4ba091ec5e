package dummydb

import (
	"context"
	"strings"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

// withProfiles must be called with the read lock held.
func (repo *accountRepository) withProfiles(acc account.Account) account.Account {
	var (
		sp *account.StudentProfile
		ip *account.InstructorProfile
	)
	for _, p := range repo.db.students {
		if p.AccountID == acc.ID {
			p := p
			sp = &p
			break
		}
	}
	for _, p := range repo.db.instructors {
		if p.AccountID == acc.ID {
			p := p
			ip = &p
			break
		}
	}
	acc.AttachProfiles(sp, ip)
	return acc
}

// checkUniqueness must be called with the read lock held.
func (repo *accountRepository) checkUniqueness(id int64, username, email string) error {
	for _, acc := range repo.db.accounts {
		if acc.ID != id && acc.Username == username {
			return account.ErrUsernameExists
		}
	}
	if email == "" {
		return nil
	}
	for _, acc := range repo.db.accounts {
		if acc.ID != id && strings.EqualFold(acc.Email, email) {
			return account.ErrEmailExists
		}
	}
	return nil
}

func uniqueErr(err error) error {
	field := "username"
	if err == account.ErrEmailExists {
		field = "email"
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (repo *accountRepository) CheckUniqueness(_ context.Context, username, email string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(0, username, email)
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkUniqueness(0, acc.Username, acc.Email); err != nil {
		return account.Account{}, uniqueErr(err)
	}
	acc.ID = repo.db.nextID("accounts")
	acc.AttachProfiles(nil, nil)
	repo.db.accounts[acc.ID] = acc
	return acc, nil
}

func (repo *accountRepository) CreateStudentProfile(_ context.Context, sp account.StudentProfile, _ ...core.DBExecutor) (account.StudentProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.accounts[sp.AccountID]; !ok {
		return account.StudentProfile{}, account.ErrNotFound
	}
	for _, p := range repo.db.students {
		if p.AccountID == sp.AccountID {
			return account.StudentProfile{}, core.NewValidationError(nil, core.FieldError{Field: "account_id", Error: "student profile already exists"})
		}
	}
	sp.ID = repo.db.nextID("student_profiles")
	repo.db.students[sp.ID] = sp
	return sp, nil
}

func (repo *accountRepository) CreateInstructorProfile(_ context.Context, ip account.InstructorProfile, _ ...core.DBExecutor) (account.InstructorProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.accounts[ip.AccountID]; !ok {
		return account.InstructorProfile{}, account.ErrNotFound
	}
	for _, p := range repo.db.instructors {
		if p.AccountID == ip.AccountID {
			return account.InstructorProfile{}, core.NewValidationError(nil, core.FieldError{Field: "account_id", Error: "instructor profile already exists"})
		}
	}
	ip.ID = repo.db.nextID("instructor_profiles")
	repo.db.instructors[ip.ID] = ip
	return ip, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != 0:
		if acc, ok := repo.db.accounts[filter.ID]; ok {
			return repo.withProfiles(acc), nil
		}
	case filter.Username != "":
		for _, acc := range repo.db.accounts {
			if acc.Username == filter.Username {
				return repo.withProfiles(acc), nil
			}
		}
	case filter.UsernameOrEmail != "":
		var byEmail *account.Account
		for _, acc := range repo.db.accounts {
			if acc.Username == filter.UsernameOrEmail {
				return repo.withProfiles(acc), nil
			}
			if acc.Email != "" && strings.EqualFold(acc.Email, filter.UsernameOrEmail) {
				acc := acc
				byEmail = &acc
			}
		}
		if byEmail != nil {
			return repo.withProfiles(*byEmail), nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.accounts[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if err := repo.checkUniqueness(acc.ID, acc.Username, acc.Email); err != nil {
		return account.Account{}, uniqueErr(err)
	}
	orig.Username = acc.Username
	orig.Email = acc.Email
	orig.FirstName = acc.FirstName
	orig.LastName = acc.LastName
	orig.PasswordHash = acc.PasswordHash
	orig.IsActive = acc.IsActive
	orig.LastLogin = acc.LastLogin
	repo.db.accounts[acc.ID] = orig
	return acc, nil
}

func (repo *accountRepository) GetStudentProfile(_ context.Context, id int64, _ ...core.DBExecutor) (account.StudentProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sp, ok := repo.db.students[id]; ok {
		return sp, nil
	}
	return account.StudentProfile{}, account.ErrNotFound
}

// DeleteStudentProfile also deletes the progress entries of the student, like the ON DELETE CASCADE of the schema.
func (repo *accountRepository) DeleteStudentProfile(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return account.ErrNotFound
	}
	for entryID, e := range repo.db.entries {
		if e.StudentID == id {
			delete(repo.db.entries, entryID)
		}
	}
	delete(repo.db.students, id)
	return nil
}
