package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/storage/database"
)

type accountRow struct {
	ID            int64       `db:"id"`
	Username      string      `db:"username"`
	Email         string      `db:"email"`
	FirstName     string      `db:"first_name"`
	LastName      string      `db:"last_name"`
	Password      []byte      `db:"password"`
	IsActive      bool        `db:"is_active"`
	DateJoined    time.Time   `db:"date_joined"`
	LastLogin     null.Time   `db:"last_login"`
	StudentID     null.Int64  `db:"student_id"`
	StudentBio    null.String `db:"student_bio"`
	InstructorID  null.Int64  `db:"instructor_id"`
	InstructorBio null.String `db:"instructor_bio"`
}

func (row accountRow) toAccount() account.Account {
	acc := account.Account{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		IsActive:     row.IsActive,
		PasswordHash: row.Password,
		DateJoined:   row.DateJoined.UTC(),
	}
	if row.LastLogin.Valid {
		acc.LastLogin = row.LastLogin.Time.UTC()
	}

	var (
		sp *account.StudentProfile
		ip *account.InstructorProfile
	)
	if row.StudentID.Valid {
		sp = &account.StudentProfile{ID: row.StudentID.Int64, AccountID: row.ID, Bio: row.StudentBio.String}
	}
	if row.InstructorID.Valid {
		ip = &account.InstructorProfile{ID: row.InstructorID.Int64, AccountID: row.ID, Bio: row.InstructorBio.String}
	}
	acc.AttachProfiles(sp, ip)
	return acc
}

type accountRepository struct {
	repository
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{repository{db: db}}
}

func (repo *accountRepository) selectAccounts() sq.SelectBuilder {
	return psql.
		Select(
			"a.id", "a.username", "a.email", "a.first_name", "a.last_name", "a.password", "a.is_active",
			"a.date_joined", "a.last_login",
			"sp.id AS student_id", "sp.bio AS student_bio",
			"ip.id AS instructor_id", "ip.bio AS instructor_bio",
		).
		From("accounts a").
		LeftJoin("student_profiles sp ON sp.account_id = a.id").
		LeftJoin("instructor_profiles ip ON ip.account_id = a.id")
}

// uniqueErr maps a unique violation on accounts to the matching account error.
func uniqueErr(err error) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case "accounts_username_key":
			return core.NewValidationError(
				account.ErrUsernameExists,
				core.FieldError{Field: "username", Error: account.ErrUsernameExists.Error()},
			)
		case "accounts_email_key":
			return core.NewValidationError(
				account.ErrEmailExists,
				core.FieldError{Field: "email", Error: account.ErrEmailExists.Error()},
			)
		}
		return core.NewValidationError(err)
	}
	return err
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error {
	cond := sq.Or{sq.Eq{"username": username}}
	if email != "" {
		cond = append(cond, sq.Expr("LOWER(email) = LOWER(?)", email))
	}
	q, args, err := psql.
		Select("username").
		From("accounts").
		Where(cond).
		OrderByClause("username = ? DESC", username).
		Limit(1).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var found []string
	if err = sqlx.SelectContext(ctx, repo.ext(exec...), &found, q, args...); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	if len(found) == 0 {
		return nil
	}
	if found[0] == username {
		return account.ErrUsernameExists
	}
	return account.ErrEmailExists
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	q, args, err := psql.
		Insert("accounts").
		Columns("username", "email", "first_name", "last_name", "password", "is_active", "date_joined", "last_login").
		Values(acc.Username, acc.Email, acc.FirstName, acc.LastName, acc.PasswordHash, acc.IsActive,
			acc.DateJoined, null.NewTime(acc.LastLogin, !acc.LastLogin.IsZero())).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &acc.ID, q, args...); err != nil {
		return account.Account{}, uniqueErr(err)
	}
	return acc, nil
}

func (repo *accountRepository) CreateStudentProfile(ctx context.Context, sp account.StudentProfile, exec ...core.DBExecutor) (account.StudentProfile, error) {
	q, args, err := psql.
		Insert("student_profiles").
		Columns("account_id", "bio").
		Values(sp.AccountID, sp.Bio).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return account.StudentProfile{}, errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &sp.ID, q, args...); err != nil {
		return account.StudentProfile{}, errors.Wrap(err, "creating student profile")
	}
	return sp, nil
}

func (repo *accountRepository) CreateInstructorProfile(ctx context.Context, ip account.InstructorProfile, exec ...core.DBExecutor) (account.InstructorProfile, error) {
	q, args, err := psql.
		Insert("instructor_profiles").
		Columns("account_id", "bio").
		Values(ip.AccountID, ip.Bio).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return account.InstructorProfile{}, errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &ip.ID, q, args...); err != nil {
		return account.InstructorProfile{}, errors.Wrap(err, "creating instructor profile")
	}
	return ip, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter account.GetFilter, exec ...core.DBExecutor) (account.Account, error) {
	sb := repo.selectAccounts().Limit(1)
	switch {
	case filter.ID != 0:
		sb = sb.Where(sq.Eq{"a.id": filter.ID})
	case filter.Username != "":
		sb = sb.Where(sq.Eq{"a.username": filter.Username})
	case filter.UsernameOrEmail != "":
		// an exact username match wins over an email match
		sb = sb.
			Where(sq.Or{
				sq.Eq{"a.username": filter.UsernameOrEmail},
				sq.Expr("(a.email <> '' AND LOWER(a.email) = LOWER(?))", filter.UsernameOrEmail),
			}).
			OrderByClause("a.username = ? DESC", filter.UsernameOrEmail)
	default:
		return account.Account{}, account.ErrNotFound
	}

	q, args, err := sb.ToSql()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "building query")
	}
	var row accountRow
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &row, q, args...); err != nil {
		return account.Account{}, notFound(err, account.ErrNotFound)
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	q, args, err := psql.
		Update("accounts").
		SetMap(map[string]interface{}{
			"username":   acc.Username,
			"email":      acc.Email,
			"first_name": acc.FirstName,
			"last_name":  acc.LastName,
			"password":   acc.PasswordHash,
			"is_active":  acc.IsActive,
			"last_login": null.NewTime(acc.LastLogin, !acc.LastLogin.IsZero()),
		}).
		Where(sq.Eq{"id": acc.ID}).
		ToSql()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return account.Account{}, uniqueErr(err)
	}
	if err = mustAffect(res, account.ErrNotFound); err != nil {
		return account.Account{}, err
	}
	return acc, nil
}

func (repo *accountRepository) GetStudentProfile(ctx context.Context, id int64, exec ...core.DBExecutor) (account.StudentProfile, error) {
	q, args, err := psql.
		Select("id", "account_id", "bio").
		From("student_profiles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return account.StudentProfile{}, errors.Wrap(err, "building query")
	}

	var row struct {
		ID        int64  `db:"id"`
		AccountID int64  `db:"account_id"`
		Bio       string `db:"bio"`
	}
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &row, q, args...); err != nil {
		return account.StudentProfile{}, notFound(err, account.ErrNotFound)
	}
	return account.StudentProfile{ID: row.ID, AccountID: row.AccountID, Bio: row.Bio}, nil
}

func (repo *accountRepository) DeleteStudentProfile(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	q, args, err := psql.Delete("student_profiles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "deleting student profile")
	}
	return mustAffect(res, account.ErrNotFound)
}
