package echoapp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/progress"
)

type progressPages struct {
	deps Deps
}

func registerProgressPages(app *echo.Echo, deps Deps) {
	p := progressPages{deps: deps}

	pg := app.Group("/progress/:id", loginRequired)
	pg.GET("/edit", p.editForm)
	pg.POST("/edit", p.edit)
	pg.GET("/delete", p.deleteForm)
	pg.POST("/delete", p.delete)
}

// entryError redirects away from an entry the account cannot manage. action is "edit" or "delete".
func entryError(ctx echo.Context, err error, action string) error {
	switch errors.Cause(err) {
	case progress.ErrNotFound:
		return flashRedirect(ctx, flashError, "Progress entry not found.", myCoursesURL)
	case core.ErrNotAuthorized:
		return flashRedirect(ctx, flashError, "You do not have access to "+action+" this entry.", dashboardURL)
	}
	return err
}

func (p *progressPages) getOwnedEntry(ctx echo.Context) (account.Account, progress.Entry, error) {
	acc, _ := sessionAccount(ctx)
	id, err := paramID(ctx)
	if err != nil {
		return acc, progress.Entry{}, progress.ErrNotFound
	}
	e, err := p.deps.ProgressSvc.GetForOwner(ctx.Request().Context(), acc, id)
	return acc, e, err
}

func (p *progressPages) editForm(ctx echo.Context) error {
	_, e, err := p.getOwnedEntry(ctx)
	if err != nil {
		return entryError(ctx, err, "edit")
	}
	return render(ctx, http.StatusOK, "progress_form", echo.Map{"percent": strconv.Itoa(e.ProgressPercent), "prog": e})
}

func (p *progressPages) edit(ctx echo.Context) error {
	acc, e, err := p.getOwnedEntry(ctx)
	if err != nil {
		return entryError(ctx, err, "edit")
	}

	pct := strings.TrimSpace(ctx.FormValue("progress_percent"))
	data := echo.Map{"percent": pct, "prog": e}
	var form progress.UpdateEntry
	if err = bindForm(ctx, &form, core.FieldError{Field: "progress_percent", Error: "enter a whole number"}); err != nil {
		return renderForm(ctx, "progress_form", err, p.deps, data)
	}
	if pct == "" {
		form.ProgressPercent = nil // echo binds "" as 0
	}
	if err = form.Validate(p.deps.Validate); err != nil {
		return renderForm(ctx, "progress_form", err, p.deps, data)
	}

	if _, err = p.deps.ProgressSvc.Update(ctx.Request().Context(), acc, e.ID, form); err != nil {
		err = errors.Wrap(err, "updating progress")
		if fldErrs := core.FieldErrors(err, p.deps.Translator); fldErrs != nil {
			return renderForm(ctx, "progress_form", err, p.deps, data)
		}
		return entryError(ctx, err, "edit")
	}
	return flashRedirect(ctx, flashSuccess, "Progress updated.", manageCourseURL(e.CourseID.Int64))
}

func (p *progressPages) deleteForm(ctx echo.Context) error {
	_, e, err := p.getOwnedEntry(ctx)
	if err != nil {
		return entryError(ctx, err, "delete")
	}
	return render(ctx, http.StatusOK, "confirm_delete", echo.Map{"object": e, "type": "progress entry"})
}

func (p *progressPages) delete(ctx echo.Context) error {
	acc, e, err := p.getOwnedEntry(ctx)
	if err != nil {
		return entryError(ctx, err, "delete")
	}
	if err = p.deps.ProgressSvc.Delete(ctx.Request().Context(), acc, e.ID); err != nil {
		return entryError(ctx, errors.Wrap(err, "deleting progress"), "delete")
	}
	return flashRedirect(ctx, flashSuccess, "Progress removed.", manageCourseURL(e.CourseID.Int64))
}
