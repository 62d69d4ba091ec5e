package echoapp_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	echoapp "github.com/trezcool/classroom/apps/server/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	logsvc "github.com/trezcool/classroom/services/logger"
	"github.com/trezcool/classroom/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func testConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		AppName:   "Classroom",
		TestMode:  true,
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			SessionName:               "classroom_session",
			SessionMaxAge:             time.Hour,
			DisableCSRF:               true,
			DisableReqLogs:            true,
		},
	}
}

func newTestServer(t *testing.T, confs ...func(conf *core.Config)) (echoapp.Server, *testutil.Store) {
	t.Helper()
	s := testutil.NewStore(t)

	conf := testConfig()
	for _, fn := range confs {
		fn(conf)
	}
	logger := logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf)
	logger.Enable(false)

	app, err := echoapp.NewServer(echoapp.Deps{
		Conf:        conf,
		Logger:      logger,
		AccountSvc:  s.AccountSvc,
		CourseSvc:   s.CourseSvc,
		ProgressSvc: s.ProgressSvc,
		Validate:    s.Validate,
		Translator:  s.Translator,
	})
	require.NoError(t, err)
	return app, s
}

// JSON API helpers

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, app echoapp.Server, uname string) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/api/v1/token", marshalObj(t, echoapp.LoginRequest{
		Username: uname,
		Password: testutil.Password,
	}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "getToken(%s): %s", uname, rec.Body.String())

	var resp echoapp.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app echoapp.Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// browser keeps cookies between page requests.
type browser struct {
	t       *testing.T
	app     echoapp.Server
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, app echoapp.Server) *browser {
	return &browser{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// follow asserts rec is a redirect to location and loads the target page.
func (b *browser) follow(rec *httptest.ResponseRecorder, location string) *httptest.ResponseRecorder {
	b.t.Helper()
	require.Equal(b.t, http.StatusFound, rec.Code, "body: %s", rec.Body.String())
	require.Equal(b.t, location, rec.Header().Get("Location"))
	return b.get(location)
}

func (b *browser) login(acc account.Account) {
	b.t.Helper()
	rec := b.post("/login", url.Values{"username": {acc.Username}, "password": {testutil.Password}})
	require.Equal(b.t, http.StatusFound, rec.Code, "login(%s): %s", acc.Username, rec.Body.String())
}
