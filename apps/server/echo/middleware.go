package echoapp

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/account"
)

const loginURL = "/login"

// loginRequired redirects anonymous visitors to the login page.
func loginRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, ok := sessionAccount(ctx); !ok {
			q := url.Values{"next": {ctx.Request().URL.RequestURI()}}
			return ctx.Redirect(http.StatusFound, loginURL+"?"+q.Encode())
		}
		return next(ctx)
	}
}

// accountMiddleware loads the account the JWT was issued for.
func accountMiddleware(svc *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextAccount(ctx, svc); err != nil {
				return errors.Wrap(err, "getting context account")
			}
			return next(ctx)
		}
	}
}

// paramID parses the :id path param. Malformed ids are not found.
func paramID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// safeNext only allows local redirects.
func safeNext(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
