package echoapp

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
)

type progressApi struct {
	deps Deps
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := progressApi{deps: deps}

	// all endpoints are authed; group middlewares would add catch-all routes over /courses/:id
	authed := []echo.MiddlewareFunc{jwt, accountMiddleware(deps.AccountSvc)}

	g.GET("/progress", api.queryMine, authed...)
	g.PUT("/progress/:id", api.update, authed...)
	g.DELETE("/progress/:id", api.destroy, authed...)

	g.POST("/courses/:id/enroll", api.enroll, authed...)
	g.GET("/courses/:id/progress", api.queryByCourse, authed...)
	g.POST("/courses/:id/progress", api.enrollStudent, authed...)
}

// enrollResponse answers 201 when the entry was created, 200 when it already existed.
func enrollResponse(ctx echo.Context, e progress.Entry, created bool) error {
	if created {
		return ctx.JSON(http.StatusCreated, e)
	}
	return ctx.JSON(http.StatusOK, e)
}

// Handlers

func (api *progressApi) queryMine(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	entries, err := api.deps.ProgressSvc.QueryByStudent(ctx.Request().Context(), acc, bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying student progress")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *progressApi) enroll(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	crs, err := api.deps.CourseSvc.Get(reqCtx, id)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}
	e, created, err := api.deps.ProgressSvc.Enroll(reqCtx, acc, crs)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return enrollResponse(ctx, e, created)
}

func (api *progressApi) queryByCourse(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	entries, err := api.deps.ProgressSvc.QueryByCourse(ctx.Request().Context(), acc, id, bindOrdering(ctx)...)
	if err != nil {
		return errors.Wrap(err, "querying course progress")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *progressApi) enrollStudent(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data progress.EnrollStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollStudent")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	e, created, err := api.deps.ProgressSvc.EnrollByUsername(ctx.Request().Context(), acc, id, data.Username)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return enrollResponse(ctx, e, created)
}

func (api *progressApi) update(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data progress.UpdateEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	e, err := api.deps.ProgressSvc.Update(ctx.Request().Context(), acc, id, data)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *progressApi) destroy(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.deps.AccountSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.deps.ProgressSvc.Delete(ctx.Request().Context(), acc, id); err != nil {
		return errors.Wrap(err, "deleting progress")
	}
	return ctx.NoContent(http.StatusNoContent)
}
