package echoapp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapp "github.com/trezcool/classroom/apps/server/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
	"github.com/trezcool/classroom/testutil"
)

func Test_accountApi_token(t *testing.T) {
	app, s := newTestServer(t)
	alice := testutil.CreateStudent(t, s.AccountRepo, "alice")
	testutil.CreateInactive(t, s.AccountRepo, "gone")

	login := func(uname, pwd string) []byte {
		return marshalObj(t, echoapp.LoginRequest{Username: uname, Password: pwd})
	}

	runHTTPTests(t, app, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/v1/token", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/v1/token", body: login("alice", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive", method: http.MethodPost, path: "/api/v1/token", body: login("gone", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "refresh requires a token", method: http.MethodPost, path: "/api/v1/token/refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "me requires a token", path: "/api/v1/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
	})

	token := getToken(t, app, "alice")
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, new(echoapp.Claims))
	require.NoError(t, err)
	claims := parsed.Claims.(*echoapp.Claims)
	assert.Equal(t, fmt.Sprint(alice.ID), claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, account.KindStudent, claims.Kind)
	assert.Equal(t, claims.IssuedAt, claims.OrigIssuedAt)

	t.Run("me", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/me", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var acc account.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
		assert.Equal(t, alice.ID, acc.ID)
		assert.Empty(t, acc.PasswordHash)
	})

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/token/refresh", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp echoapp.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("refresh expired", func(t *testing.T) {
		app, s := newTestServer(t, func(conf *core.Config) { conf.Server.JWTRefreshExpirationDelta = -time.Minute })
		testutil.CreateStudent(t, s.AccountRepo, "bob")
		token := getToken(t, app, "bob")

		req, rec := newAuthRequest(http.MethodPost, "/api/v1/token/refresh", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"})}, rec)
	})
}

func Test_courseApi(t *testing.T) {
	app, s := newTestServer(t)
	now := time.Now().UTC()
	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	testutil.CreateInstructor(t, s.AccountRepo, "other")
	testutil.CreateStudent(t, s.AccountRepo, "alice")
	old := testutil.CreateCourse(t, s.CourseRepo, owner, "Old", true, now.Add(-time.Hour))
	draft := testutil.CreateCourse(t, s.CourseRepo, owner, "Draft", false, now)

	ownerToken := getToken(t, app, "owner")
	otherToken := getToken(t, app, "other")
	aliceToken := getToken(t, app, "alice")
	draftPath := fmt.Sprintf("/api/v1/courses/%d", draft.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "published", path: "/api/v1/courses", wantCode: http.StatusOK, wantData: marshalList(t, old)},
		{name: "mine (auth required)", path: "/api/v1/courses/mine", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "mine (instructors only)", path: "/api/v1/courses/mine", token: aliceToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: core.ErrNotAuthorized.Error()}),
		},
		{name: "mine", path: "/api/v1/courses/mine", token: ownerToken, wantCode: http.StatusOK, wantData: marshalList(t, draft, old)},
		{name: "retrieve", path: draftPath, wantCode: http.StatusOK, wantData: marshalObj(t, draft)},
		{name: "retrieve (not found)", path: "/api/v1/courses/999", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"})},
		{name: "retrieve (bad id)", path: "/api/v1/courses/abc", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"})},
		{
			name: "create (students cannot)", method: http.MethodPost, path: "/api/v1/courses", token: aliceToken,
			body: []byte(`{"title": "Nope"}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: core.ErrNotAuthorized.Error()}),
		},
		{
			name: "create (invalid)", method: http.MethodPost, path: "/api/v1/courses", token: ownerToken,
			body: []byte(`{"title": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "update (not the owner)", method: http.MethodPut, path: draftPath, token: otherToken,
			body: []byte(`{"title": "Hijacked", "is_published": true}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: core.ErrNotAuthorized.Error()}),
		},
		{name: "update (auth required)", method: http.MethodPut, path: draftPath, body: []byte(`{"title": "X"}`), wantCode: http.StatusUnauthorized},
	})

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/courses", ownerToken, []byte(`{"title": " Go 101 ", "description": "Basics"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var crs course.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crs))
		assert.Equal(t, "Go 101", crs.Title)
		assert.False(t, crs.IsPublished)
		assert.Equal(t, owner.Instructor.ID, crs.InstructorID)
	})

	t.Run("publish", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, draftPath, ownerToken, []byte(`{"title": "Draft", "is_published": true}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		published, err := s.CourseSvc.QueryPublished(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, published, 2)
	})
}

func Test_progressApi(t *testing.T) {
	app, s := newTestServer(t)
	ctx := context.Background()
	owner := testutil.CreateInstructor(t, s.AccountRepo, "owner")
	testutil.CreateInstructor(t, s.AccountRepo, "other")
	testutil.CreateStudent(t, s.AccountRepo, "alice")
	testutil.CreateStudent(t, s.AccountRepo, "bob")
	crs := testutil.CreateCourse(t, s.CourseRepo, owner, "Go 101", true)

	ownerToken := getToken(t, app, "owner")
	otherToken := getToken(t, app, "other")
	aliceToken := getToken(t, app, "alice")
	enrollPath := fmt.Sprintf("/api/v1/courses/%d/enroll", crs.ID)
	progressPath := fmt.Sprintf("/api/v1/courses/%d/progress", crs.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "enroll (auth required)", method: http.MethodPost, path: enrollPath, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "enroll (students only)", method: http.MethodPost, path: enrollPath, token: ownerToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: account.ErrNotAStudent.Error()}),
		},
		{name: "enroll (not found)", method: http.MethodPost, path: "/api/v1/courses/999/enroll", token: aliceToken, wantCode: http.StatusNotFound},
		{name: "enroll", method: http.MethodPost, path: enrollPath, token: aliceToken, wantCode: http.StatusCreated},
		{name: "enroll (again)", method: http.MethodPost, path: enrollPath, token: aliceToken, wantCode: http.StatusOK},
		{
			name: "enroll student (not a student)", method: http.MethodPost, path: progressPath, token: ownerToken,
			body: []byte(`{"username": "other"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": account.ErrNotAStudent.Error()}),
		},
		{
			name: "enroll student (unknown)", method: http.MethodPost, path: progressPath, token: ownerToken,
			body: []byte(`{"username": "nobody"}`), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: account.ErrNotFound.Error()}),
		},
		{
			name: "enroll student (not the owner)", method: http.MethodPost, path: progressPath, token: otherToken,
			body: []byte(`{"username": "bob"}`), wantCode: http.StatusForbidden,
		},
		{name: "enroll student", method: http.MethodPost, path: progressPath, token: ownerToken, body: []byte(`{"username": "bob"}`), wantCode: http.StatusCreated},
		{name: "enroll student (again)", method: http.MethodPost, path: progressPath, token: ownerToken, body: []byte(`{"username": "bob"}`), wantCode: http.StatusOK},
		{name: "course progress (not the owner)", path: progressPath, token: otherToken, wantCode: http.StatusForbidden},
	})

	entries, err := s.ProgressSvc.QueryByCourse(ctx, owner, crs.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	aliceEntry := entries[0]
	require.Equal(t, "alice", aliceEntry.StudentUsername)
	entryPath := fmt.Sprintf("/api/v1/progress/%d", aliceEntry.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "course progress", path: progressPath, token: ownerToken, wantCode: http.StatusOK, wantData: marshalList(t, entries[0], entries[1])},
		{
			name: "course progress (ordering)", path: progressPath + "?ordering=-student_username", token: ownerToken,
			wantCode: http.StatusOK, wantData: marshalList(t, entries[1], entries[0]),
		},
		{
			name: "course progress (bad ordering)", path: progressPath + "?ordering=password", token: ownerToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"ordering": `cannot order by "password"`}),
		},
		{
			name: "update (not the owner)", method: http.MethodPut, path: entryPath, token: otherToken,
			body: []byte(`{"progress_percent": 50}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: core.ErrNotAuthorized.Error()}),
		},
		{
			name: "update (student)", method: http.MethodPut, path: entryPath, token: aliceToken,
			body: []byte(`{"progress_percent": 100}`), wantCode: http.StatusForbidden,
		},
		{name: "update (out of range)", method: http.MethodPut, path: entryPath, token: ownerToken, body: []byte(`{"progress_percent": 101}`), wantCode: http.StatusBadRequest},
		{name: "update (negative)", method: http.MethodPut, path: entryPath, token: ownerToken, body: []byte(`{"progress_percent": -5}`), wantCode: http.StatusBadRequest},
		{
			name: "update (missing percent)", method: http.MethodPut, path: entryPath, token: ownerToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"progress_percent": "this field is required"}),
		},
		{
			name: "update (null percent)", method: http.MethodPut, path: entryPath, token: ownerToken, body: []byte(`{"progress_percent": null}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"progress_percent": "this field is required"}),
		},
		{
			name: "update (not found)", method: http.MethodPut, path: "/api/v1/progress/999", token: ownerToken,
			body: []byte(`{"progress_percent": 50}`), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: progress.ErrNotFound.Error()}),
		},
		{name: "update", method: http.MethodPut, path: entryPath, token: ownerToken, body: []byte(`{"progress_percent": 50}`), wantCode: http.StatusOK},
		{name: "delete (not the owner)", method: http.MethodDelete, path: entryPath, token: otherToken, wantCode: http.StatusForbidden},
	})

	got, err := s.ProgressSvc.Get(ctx, aliceEntry.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.ProgressPercent)

	t.Run("my progress", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/progress", aliceToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalList(t, got)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/progress", ownerToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	runHTTPTests(t, app, []httpTest{
		{name: "delete", method: http.MethodDelete, path: entryPath, token: ownerToken, wantCode: http.StatusNoContent},
		{
			name: "delete (again)", method: http.MethodDelete, path: entryPath, token: ownerToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: progress.ErrNotFound.Error()}),
		},
	})

	_, err = s.ProgressSvc.Get(ctx, aliceEntry.ID)
	assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
}
