package echoapp

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func isNotFound(err error) bool {
	switch errors.Cause(err) {
	case account.ErrNotFound, course.ErrNotFound, progress.ErrNotFound:
		return true
	}
	return false
}

func isForbidden(err error) bool {
	switch errors.Cause(err) {
	case core.ErrNotAuthorized, account.ErrNotAStudent, account.ErrNotAnInstructor:
		return true
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// API requests get JSON, pages get the error page.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors, *core.ValidationError:
			code = http.StatusBadRequest
			message = core.FieldErrors(origErr, translator)
		default:
			switch {
			case isNotFound(origErr):
				code = http.StatusNotFound
				message = origErr.Error()
			case isForbidden(origErr):
				code = http.StatusForbidden
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				acc, ok := ctx.Get(contextAccountKey).(account.Account)
				if !ok {
					if claims, cErr := getContextClaims(ctx); cErr == nil {
						acc.Username = claims.Username
						acc.Email = claims.Email
					}
				}
				logger.Error(msg, errors.Wrap(err, msg), acc)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Response().Committed {
			return
		}
		if isAPIRequest(ctx) {
			err = sendJSONError(ctx, code, message, err)
		} else {
			err = renderErrorPage(ctx, code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func sendJSONError(ctx echo.Context, code int, message interface{}, err error) error {
	if ctx.Echo().Debug {
		message = err.Error()
	}
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}
	if ctx.Request().Method == http.MethodHead { // Issue #608
		return ctx.NoContent(code)
	}
	return ctx.JSON(code, message)
}

func renderErrorPage(ctx echo.Context, code int, message interface{}) error {
	if ctx.Request().Method == http.MethodHead {
		return ctx.NoContent(code)
	}
	msg, ok := message.(string)
	if !ok {
		msg = fmt.Sprint(message)
	}
	return render(ctx, code, "error", echo.Map{
		"code":    code,
		"status":  http.StatusText(code),
		"message": msg,
	})
}
