package echoapp

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

const (
	dashboardURL = "/dashboard"

	// number of published courses listed on the dashboard
	dashboardLatest = 10
)

type accountPages struct {
	deps Deps
}

func registerAccountPages(app *echo.Echo, deps Deps) {
	p := accountPages{deps: deps}

	app.GET("/", p.home)
	app.GET("/signup", p.signupForm)
	app.POST("/signup", p.signup)
	app.GET(loginURL, p.loginForm)
	app.POST(loginURL, p.login)
	app.POST("/logout", p.logout)
	app.GET(dashboardURL, p.dashboard, loginRequired)
}

func (p *accountPages) home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, dashboardURL)
}

func (p *accountPages) signupData(form account.NewAccount) echo.Map {
	form.Password, form.PasswordConfirm = "", ""
	return echo.Map{"form": form, "roles": account.Kinds}
}

func (p *accountPages) signupForm(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "signup", p.signupData(account.NewAccount{}))
}

func (p *accountPages) signup(ctx echo.Context) error {
	var form account.NewAccount
	if err := bindForm(ctx, &form, core.FieldError{Field: "__all__", Error: "invalid form data"}); err != nil {
		return renderForm(ctx, "signup", err, p.deps, p.signupData(form))
	}

	reqCtx := ctx.Request().Context()
	if err := form.Validate(reqCtx, p.deps.Validate, p.deps.AccountSvc); err != nil {
		return renderForm(ctx, "signup", err, p.deps, p.signupData(form))
	}

	acc, err := p.deps.AccountSvc.Signup(reqCtx, form)
	if err != nil {
		return renderForm(ctx, "signup", errors.Wrap(err, "signing up"), p.deps, p.signupData(form))
	}
	if err = login(ctx, acc); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return flashRedirect(ctx, flashSuccess, "Account created!", dashboardURL)
}

func (p *accountPages) loginForm(ctx echo.Context) error {
	if _, ok := sessionAccount(ctx); ok {
		return ctx.Redirect(http.StatusFound, dashboardURL)
	}
	return render(ctx, http.StatusOK, "login", echo.Map{
		"form": LoginRequest{},
		"next": safeNext(ctx.QueryParam("next"), ""),
	})
}

func (p *accountPages) login(ctx echo.Context) error {
	var form LoginRequest
	next := safeNext(ctx.FormValue("next"), "")
	data := func() echo.Map {
		return echo.Map{"form": LoginRequest{Username: form.Username}, "next": next}
	}
	if err := bindForm(ctx, &form, core.FieldError{Field: "__all__", Error: "invalid form data"}); err != nil {
		return renderForm(ctx, "login", err, p.deps, data())
	}

	if err := form.Validate(p.deps.Validate); err != nil {
		return renderForm(ctx, "login", err, p.deps, data())
	}

	acc, err := p.deps.AccountSvc.Authenticate(ctx.Request().Context(), form.Username, form.Password)
	if err != nil {
		switch cause := errors.Cause(err); cause {
		case account.ErrAuthenticationFailed, account.ErrAccountDeactivated:
			return renderForm(ctx, "login", core.NewValidationError(cause), p.deps, data())
		}
		return errors.Wrap(err, "authenticating")
	}
	if err = login(ctx, acc); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.Redirect(http.StatusFound, safeNext(next, dashboardURL))
}

func (p *accountPages) logout(ctx echo.Context) error {
	if err := logout(ctx); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return flashRedirect(ctx, flashInfo, "You have been logged out.", loginURL)
}

func (p *accountPages) dashboard(ctx echo.Context) error {
	acc, _ := sessionAccount(ctx)
	reqCtx := ctx.Request().Context()
	data := echo.Map{}

	if acc.IsStudent() {
		entries, err := p.deps.ProgressSvc.QueryByStudent(reqCtx, acc)
		if err != nil {
			return errors.Wrap(err, "querying student progress")
		}
		data["progress_items"] = entries
	}
	if acc.IsInstructor() {
		courses, err := p.deps.CourseSvc.QueryByInstructor(reqCtx, acc)
		if err != nil {
			return errors.Wrap(err, "querying instructor courses")
		}
		data["instructor_courses"] = courses
	}

	published, err := p.deps.CourseSvc.QueryPublished(reqCtx, dashboardLatest)
	if err != nil {
		return errors.Wrap(err, "querying published courses")
	}
	data["published_courses"] = published

	return render(ctx, http.StatusOK, "dashboard", data)
}

type (
	LoginRequest struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	return validate.Struct(lr)
}
