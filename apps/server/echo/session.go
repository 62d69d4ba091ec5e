package echoapp

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

const (
	contextSessionKey = "session"
	contextAccountKey = "account"
	sessionAccountKey = "account_id"

	flashSuccess = "success"
	flashInfo    = "info"
	flashError   = "error"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register(Flash{})
}

func newSessionStore(conf *core.Config) sessions.Store {
	store := sessions.NewCookieStore([]byte(conf.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(conf.Server.SessionMaxAge.Seconds()))
	return store
}

// sessionMiddleware loads the session and the account logged into it, if any.
func (s *server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if isAPIRequest(ctx) {
			return next(ctx)
		}

		// an undecodable cookie yields a fresh session
		sess, _ := s.store.Get(ctx.Request(), s.deps.Conf.Server.SessionName)
		ctx.Set(contextSessionKey, sess)

		if id, ok := sess.Values[sessionAccountKey].(int64); ok {
			acc, err := s.deps.AccountSvc.GetByID(ctx.Request().Context(), id)
			switch {
			case err == nil:
				if acc.IsActive {
					ctx.Set(contextAccountKey, acc)
				}
			case errors.Cause(err) != account.ErrNotFound:
				return errors.Wrap(err, "loading session account")
			}
		}
		return next(ctx)
	}
}

func getSession(ctx echo.Context) (*sessions.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*sessions.Session); ok {
		return sess, nil
	}
	return nil, errors.New("session not found in echo.Context")
}

func saveSession(ctx echo.Context, sess *sessions.Session) error {
	return sess.Save(ctx.Request(), ctx.Response())
}

// sessionAccount returns the logged in account.
func sessionAccount(ctx echo.Context) (account.Account, bool) {
	acc, ok := ctx.Get(contextAccountKey).(account.Account)
	return acc, ok
}

func login(ctx echo.Context, acc account.Account) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}
	sess.Values[sessionAccountKey] = acc.ID
	ctx.Set(contextAccountKey, acc)
	return saveSession(ctx, sess)
}

func logout(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}
	delete(sess.Values, sessionAccountKey)
	ctx.Set(contextAccountKey, nil)
	return saveSession(ctx, sess)
}

func addFlash(ctx echo.Context, level, msg string) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}
	sess.AddFlash(Flash{Level: level, Message: msg})
	return saveSession(ctx, sess)
}

func popFlashes(ctx echo.Context) ([]Flash, error) {
	sess, err := getSession(ctx)
	if err != nil {
		return nil, err
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	flashes := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if flash, ok := f.(Flash); ok {
			flashes = append(flashes, flash)
		}
	}
	return flashes, saveSession(ctx, sess)
}

// flashRedirect adds a flash message and redirects to url.
func flashRedirect(ctx echo.Context, level, msg, url string) error {
	if err := addFlash(ctx, level, msg); err != nil {
		return errors.Wrap(err, "adding flash message")
	}
	return ctx.Redirect(http.StatusFound, url)
}
