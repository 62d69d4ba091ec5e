package account_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/progress"
	"github.com/trezcool/classroom/testutil"
)

func TestNewAccount_Validate(t *testing.T) {
	s := testutil.NewStore(t)
	testutil.CreateStudent(t, s.AccountRepo, "taken")

	valid := func() account.NewAccount {
		return account.NewAccount{
			Username:        "newbie",
			FirstName:       "New",
			LastName:        "Bie",
			Email:           "newbie@example.com",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            account.KindStudent,
		}
	}

	tests := []struct {
		name      string
		modify    func(na *account.NewAccount)
		wantField string
		wantTag   string
	}{
		{name: "valid"},
		{name: "missing username", modify: func(na *account.NewAccount) { na.Username = "  " }, wantField: "username", wantTag: "required"},
		{name: "invalid username", modify: func(na *account.NewAccount) { na.Username = "new bie!" }, wantField: "username", wantTag: "username"},
		{name: "invalid email", modify: func(na *account.NewAccount) { na.Email = "newbie" }, wantField: "email", wantTag: "email"},
		{name: "invalid role", modify: func(na *account.NewAccount) { na.Role = "admin" }, wantField: "role", wantTag: "oneof"},
		{name: "missing role", modify: func(na *account.NewAccount) { na.Role = "" }, wantField: "role", wantTag: "required"},
		{
			name:      "passwords mismatch",
			modify:    func(na *account.NewAccount) { na.PasswordConfirm = "Tr0ub4dor&3y" },
			wantField: "password_confirm",
			wantTag:   "eqfield",
		},
		{name: "password too short", modify: setPassword("Ab1!"), wantField: "password", wantTag: "pwdminlen"},
		{name: "password with space", modify: setPassword("Ab1! cdefg"), wantField: "password", wantTag: "pwdnospace"},
		{name: "numeric password", modify: setPassword("1234567890"), wantField: "password", wantTag: "pwdnotallnum"},
		{name: "simple password", modify: setPassword("abcdefgh1"), wantField: "password", wantTag: "pwdcplx"},
		{name: "password like username", modify: setPassword("Newbie123!"), wantField: "password", wantTag: "pwdtoosim"},
		{name: "common password", modify: setPassword("P@ssw0rd1"), wantField: "password", wantTag: "pwdnocommon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := valid()
			if tt.modify != nil {
				tt.modify(&na)
			}
			err := na.Validate(context.Background(), s.Validate, s.AccountSvc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "err = %v", err)
			var found bool
			for _, fe := range vErrs {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
				}
			}
			assert.True(t, found, "want %s error on %s, got %v", tt.wantTag, tt.wantField, vErrs)
		})
	}

	t.Run("username taken", func(t *testing.T) {
		na := valid()
		na.Username = "taken"
		err := na.Validate(context.Background(), s.Validate, s.AccountSvc)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "err = %v", err)
		assert.Equal(t, map[string]string{"username": account.ErrUsernameExists.Error()}, vErr.FieldErrors())
	})

	t.Run("email taken", func(t *testing.T) {
		na := valid()
		na.Email = "TAKEN@example.com"
		err := na.Validate(context.Background(), s.Validate, s.AccountSvc)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "err = %v", err)
		assert.Equal(t, map[string]string{"email": account.ErrEmailExists.Error()}, vErr.FieldErrors())
	})
}

func setPassword(pwd string) func(na *account.NewAccount) {
	return func(na *account.NewAccount) {
		na.Password = pwd
		na.PasswordConfirm = pwd
	}
}

func TestService_Signup(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		role     account.Kind
		wantKind account.Kind
	}{
		{name: "student", role: account.KindStudent, wantKind: account.KindStudent},
		{name: "instructor", role: account.KindInstructor, wantKind: account.KindInstructor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := s.AccountSvc.Signup(ctx, account.NewAccount{
				Username: "signup-" + tt.name,
				Password: testutil.Password,
				Role:     tt.role,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, acc.Kind)
			assert.True(t, acc.IsActive)
			assert.NoError(t, acc.CheckPassword(testutil.Password))

			loaded, err := s.AccountSvc.GetByID(ctx, acc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, loaded.Kind)
			assert.Equal(t, tt.role == account.KindStudent, loaded.IsStudent())
			assert.Equal(t, tt.role == account.KindInstructor, loaded.IsInstructor())
		})
	}

	t.Run("invalid role rolls back", func(t *testing.T) {
		_, err := s.AccountSvc.Signup(ctx, account.NewAccount{Username: "nobody", Password: testutil.Password, Role: "admin"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))

		_, err = s.AccountSvc.GetByUsername(ctx, "nobody")
		assert.Equal(t, account.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Authenticate(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	testutil.CreateInactive(t, s.AccountRepo, "gone")

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "unknown user", username: "bob", password: testutil.Password, wantErr: account.ErrAuthenticationFailed},
		{name: "wrong password", username: "alice", password: "nope", wantErr: account.ErrAuthenticationFailed},
		{name: "inactive", username: "gone", password: testutil.Password, wantErr: account.ErrAccountDeactivated},
		{name: "username", username: "alice", password: testutil.Password},
		{name: "email", username: "ALICE@example.com", password: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := s.AccountSvc.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.ID, acc.ID)
			assert.False(t, acc.LastLogin.IsZero())
			assert.True(t, acc.IsStudent())
		})
	}
}

func TestService_ResetPassword(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")

	_, err := s.AccountSvc.ResetPassword(ctx, "nobody", "N3w-Secret!x")
	assert.Equal(t, account.ErrNotFound, errors.Cause(err))

	_, err = s.AccountSvc.ResetPassword(ctx, "alice", "short")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.FieldErrors(), "password")

	_, err = s.AccountSvc.ResetPassword(ctx, "alice", "N3w-Secret!x")
	require.NoError(t, err)
	_, err = s.AccountSvc.Authenticate(ctx, alice.Username, "N3w-Secret!x")
	assert.NoError(t, err)
	_, err = s.AccountSvc.Authenticate(ctx, alice.Username, testutil.Password)
	assert.Equal(t, account.ErrAuthenticationFailed, errors.Cause(err))
}

func TestService_DeleteStudentProfile(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	teacher := testutil.CreateInstructor(t, s.AccountRepo, "teacher")
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	bob := testutil.CreateStudent(t, s.AccountRepo, "bob")
	go101 := testutil.CreateCourse(t, s.CourseRepo, teacher, "Go 101", true)
	sql101 := testutil.CreateCourse(t, s.CourseRepo, teacher, "SQL 101", true)

	testutil.CreateEntry(t, s.ProgressRepo, alice, go101, 10)
	testutil.CreateEntry(t, s.ProgressRepo, alice, sql101, 20)
	bobs := testutil.CreateEntry(t, s.ProgressRepo, bob, go101, 30)

	n, err := s.AccountSvc.DeleteStudentProfile(ctx, alice.Student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// no entries left for alice, bob's untouched
	left, err := s.ProgressRepo.QueryEntries(ctx, progress.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, bobs.ID, left[0].ID)

	// the account survives without a profile
	acc, err := s.AccountSvc.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, account.KindNone, acc.Kind)
	assert.False(t, acc.IsStudent())

	_, err = s.AccountSvc.DeleteStudentProfile(ctx, alice.Student.ID)
	assert.Equal(t, account.ErrNotFound, errors.Cause(err))

	t.Run("by username", func(t *testing.T) {
		_, err := s.AccountSvc.DeleteStudentProfileByUsername(ctx, "teacher")
		assert.Equal(t, account.ErrNotAStudent, errors.Cause(err))

		n, err := s.AccountSvc.DeleteStudentProfileByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestAccount_AttachProfiles(t *testing.T) {
	var acc account.Account
	assert.Equal(t, account.KindNone, acc.Kind)

	acc.AttachProfiles(&account.StudentProfile{ID: 1}, nil)
	sp, ok := acc.StudentProfile()
	assert.True(t, ok)
	assert.Equal(t, int64(1), sp.ID)
	_, ok = acc.InstructorProfile()
	assert.False(t, ok)

	acc.AttachProfiles(nil, &account.InstructorProfile{ID: 2})
	assert.Equal(t, account.KindInstructor, acc.Kind)
	assert.Nil(t, acc.Student)
	ip, ok := acc.InstructorProfile()
	assert.True(t, ok)
	assert.Equal(t, int64(2), ip.ID)
}
