package account

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classroom/core"
)

// Kind tells which profile is attached to an Account.
type Kind string

const (
	KindNone       Kind = ""
	KindStudent    Kind = "student"
	KindInstructor Kind = "instructor"
)

var Kinds = []Role{
	{Name: "Student", Value: KindStudent},
	{Name: "Instructor", Value: KindInstructor},
}

type Role struct {
	Name  string `json:"name"`
	Value Kind   `json:"value"`
}

type StudentProfile struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Bio       string `json:"bio"`
}

type InstructorProfile struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Bio       string `json:"bio"`
}

// Account is a signed up user.
// Kind is resolved once when the account is loaded: at most one of Student or Instructor is set.
type Account struct {
	ID           int64              `json:"id"`
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	FirstName    string             `json:"first_name"`
	LastName     string             `json:"last_name"`
	IsActive     bool               `json:"is_active"`
	PasswordHash []byte             `json:"-"`
	DateJoined   time.Time          `json:"date_joined"` // UTC
	LastLogin    time.Time          `json:"last_login"`  // UTC
	Kind         Kind               `json:"kind"`
	Student      *StudentProfile    `json:"student,omitempty"`
	Instructor   *InstructorProfile `json:"instructor,omitempty"`
}

// AttachProfiles sets the profiles found for the account and resolves its Kind.
func (a *Account) AttachProfiles(sp *StudentProfile, ip *InstructorProfile) {
	a.Student, a.Instructor, a.Kind = nil, nil, KindNone
	switch {
	case sp != nil:
		a.Student, a.Kind = sp, KindStudent
	case ip != nil:
		a.Instructor, a.Kind = ip, KindInstructor
	}
}

func (a Account) StudentProfile() (StudentProfile, bool) {
	if a.Kind != KindStudent || a.Student == nil {
		return StudentProfile{}, false
	}
	return *a.Student, true
}

func (a Account) InstructorProfile() (InstructorProfile, bool) {
	if a.Kind != KindInstructor || a.Instructor == nil {
		return InstructorProfile{}, false
	}
	return *a.Instructor, true
}

func (a Account) IsStudent() bool    { return a.Kind == KindStudent && a.Student != nil }
func (a Account) IsInstructor() bool { return a.Kind == KindInstructor && a.Instructor != nil }

func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// DisplayName is the full name if set, the username otherwise.
func (a Account) DisplayName() string {
	if name := a.FullName(); name != "" {
		return name
	}
	return a.Username
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// NewAccount contains information needed to sign up.
type NewAccount struct {
	Username        string `json:"username" form:"username" validate:"required,max=150,username"`
	FirstName       string `json:"first_name" form:"first_name" validate:"max=30"`
	LastName        string `json:"last_name" form:"last_name" validate:"max=30"`
	Email           string `json:"email" form:"email" validate:"omitempty,email"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	Role            Kind   `json:"role" form:"role" validate:"required,oneof=student instructor"`
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	na.Username = core.CleanString(na.Username)
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, na.Username, na.Email)
}

type GetFilter struct {
	ID              int64
	Username        string
	UsernameOrEmail string
}
