package echoapp

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
)

const (
	coursesURL   = "/courses"
	myCoursesURL = "/courses/mine"
)

func courseURL(id int64) string       { return fmt.Sprintf("/courses/%d", id) }
func manageCourseURL(id int64) string { return fmt.Sprintf("/courses/%d/manage", id) }

type coursePages struct {
	deps Deps
}

func registerCoursePages(app *echo.Echo, deps Deps) {
	p := coursePages{deps: deps}

	cg := app.Group(coursesURL)
	cg.GET("", p.list)
	cg.GET("/mine", p.mine, loginRequired)
	cg.GET("/new", p.createForm, loginRequired)
	cg.POST("/new", p.create, loginRequired)

	// detail pages
	cg.GET("/:id", p.detail)
	cg.POST("/:id", p.enroll)
	cg.GET("/:id/edit", p.editForm, loginRequired)
	cg.POST("/:id/edit", p.edit, loginRequired)
	cg.GET("/:id/manage", p.manage, loginRequired)
	cg.POST("/:id/manage", p.enrollStudent, loginRequired)
}

// ownerError redirects away from the instructor pages of a course the account cannot manage.
// Other errors are returned as is.
func ownerError(ctx echo.Context, err error) error {
	switch errors.Cause(err) {
	case course.ErrNotFound:
		return flashRedirect(ctx, flashError, "Course not found.", myCoursesURL)
	case core.ErrNotAuthorized:
		return flashRedirect(ctx, flashError, "You do not have access to manage this course.", dashboardURL)
	}
	return err
}

func (p *coursePages) list(ctx echo.Context) error {
	courses, err := p.deps.CourseSvc.QueryPublished(ctx.Request().Context(), 0)
	if err != nil {
		return errors.Wrap(err, "querying published courses")
	}
	return render(ctx, http.StatusOK, "course_list", echo.Map{"courses": courses, "mine": false})
}

func (p *coursePages) mine(ctx echo.Context) error {
	acc, _ := sessionAccount(ctx)
	if !acc.IsInstructor() {
		return flashRedirect(ctx, flashError, "Only instructors can view this page.", dashboardURL)
	}

	courses, err := p.deps.CourseSvc.QueryByInstructor(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "querying instructor courses")
	}
	return render(ctx, http.StatusOK, "course_list", echo.Map{"courses": courses, "mine": true})
}

func (p *coursePages) createForm(ctx echo.Context) error {
	acc, _ := sessionAccount(ctx)
	if !acc.IsInstructor() {
		return flashRedirect(ctx, flashError, "Only instructors can add courses.", dashboardURL)
	}
	return render(ctx, http.StatusOK, "course_form", echo.Map{"form": course.NewCourse{}})
}

func (p *coursePages) create(ctx echo.Context) error {
	acc, _ := sessionAccount(ctx)
	if !acc.IsInstructor() {
		return flashRedirect(ctx, flashError, "Only instructors can add courses.", dashboardURL)
	}

	var form course.NewCourse
	if err := bindForm(ctx, &form, core.FieldError{Field: "is_published", Error: "must be true or false"}); err != nil {
		return renderForm(ctx, "course_form", err, p.deps, echo.Map{"form": form})
	}
	if err := form.Validate(p.deps.Validate); err != nil {
		return renderForm(ctx, "course_form", err, p.deps, echo.Map{"form": form})
	}

	if _, err := p.deps.CourseSvc.Create(ctx.Request().Context(), acc, form); err != nil {
		return errors.Wrap(err, "creating course")
	}
	return flashRedirect(ctx, flashSuccess, "Course created.", myCoursesURL)
}

func (p *coursePages) getCourse(ctx echo.Context) (course.Course, error) {
	id, err := paramID(ctx)
	if err != nil {
		return course.Course{}, course.ErrNotFound
	}
	return p.deps.CourseSvc.Get(ctx.Request().Context(), id)
}

func (p *coursePages) detail(ctx echo.Context) error {
	crs, err := p.getCourse(ctx)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return flashRedirect(ctx, flashError, "Course not found.", coursesURL)
		}
		return errors.Wrap(err, "getting course")
	}

	data := echo.Map{"course": crs}
	if acc, ok := sessionAccount(ctx); ok {
		data["is_owner"] = course.IsOwner(acc, crs)
		if acc.IsStudent() {
			entry, err := p.deps.ProgressSvc.GetForStudent(ctx.Request().Context(), acc, crs.ID)
			switch {
			case err == nil:
				data["enrolled_progress"] = entry
			case errors.Cause(err) != progress.ErrNotFound:
				return errors.Wrap(err, "getting student progress")
			}
		}
	}
	return render(ctx, http.StatusOK, "course_detail", data)
}

// enroll lets students enroll themselves. Anyone else is sent back to the course.
func (p *coursePages) enroll(ctx echo.Context) error {
	crs, err := p.getCourse(ctx)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return flashRedirect(ctx, flashError, "Course not found.", coursesURL)
		}
		return errors.Wrap(err, "getting course")
	}

	acc, ok := sessionAccount(ctx)
	if !ok || !acc.IsStudent() {
		return ctx.Redirect(http.StatusFound, courseURL(crs.ID))
	}

	_, created, err := p.deps.ProgressSvc.Enroll(ctx.Request().Context(), acc, crs)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	if created {
		return flashRedirect(ctx, flashSuccess, "You are enrolled in this course.", courseURL(crs.ID))
	}
	return flashRedirect(ctx, flashInfo, "You are already enrolled.", courseURL(crs.ID))
}

func (p *coursePages) getOwnedCourse(ctx echo.Context) (account.Account, course.Course, error) {
	acc, _ := sessionAccount(ctx)
	id, err := paramID(ctx)
	if err != nil {
		return acc, course.Course{}, course.ErrNotFound
	}
	crs, err := p.deps.CourseSvc.GetForOwner(ctx.Request().Context(), acc, id)
	return acc, crs, err
}

func (p *coursePages) editForm(ctx echo.Context) error {
	_, crs, err := p.getOwnedCourse(ctx)
	if err != nil {
		return ownerError(ctx, err)
	}
	form := course.UpdateCourse{Title: crs.Title, Description: crs.Description, IsPublished: crs.IsPublished}
	return render(ctx, http.StatusOK, "course_form", echo.Map{"form": form, "course": crs})
}

func (p *coursePages) edit(ctx echo.Context) error {
	acc, crs, err := p.getOwnedCourse(ctx)
	if err != nil {
		return ownerError(ctx, err)
	}

	var form course.UpdateCourse
	if err = bindForm(ctx, &form, core.FieldError{Field: "is_published", Error: "must be true or false"}); err != nil {
		return renderForm(ctx, "course_form", err, p.deps, echo.Map{"form": form, "course": crs})
	}
	if err = form.Validate(p.deps.Validate); err != nil {
		return renderForm(ctx, "course_form", err, p.deps, echo.Map{"form": form, "course": crs})
	}

	if _, err = p.deps.CourseSvc.Update(ctx.Request().Context(), acc, crs.ID, form); err != nil {
		return ownerError(ctx, errors.Wrap(err, "updating course"))
	}
	return flashRedirect(ctx, flashSuccess, "Course updated.", manageCourseURL(crs.ID))
}

func (p *coursePages) manageData(ctx echo.Context, acc account.Account, crs course.Course, form progress.EnrollStudent) (echo.Map, error) {
	entries, err := p.deps.ProgressSvc.QueryByCourse(ctx.Request().Context(), acc, crs.ID)
	if err != nil {
		return nil, err
	}
	return echo.Map{"course": crs, "progress_list": entries, "enroll_form": form}, nil
}

func (p *coursePages) manage(ctx echo.Context) error {
	acc, crs, err := p.getOwnedCourse(ctx)
	if err != nil {
		return ownerError(ctx, err)
	}
	data, err := p.manageData(ctx, acc, crs, progress.EnrollStudent{})
	if err != nil {
		return ownerError(ctx, errors.Wrap(err, "querying course progress"))
	}
	return render(ctx, http.StatusOK, "course_progress", data)
}

func (p *coursePages) enrollStudent(ctx echo.Context) error {
	acc, crs, err := p.getOwnedCourse(ctx)
	if err != nil {
		return ownerError(ctx, err)
	}

	var form progress.EnrollStudent
	err = bindForm(ctx, &form, core.FieldError{Field: "username", Error: "enter a valid username"})
	if err == nil {
		err = form.Validate(p.deps.Validate)
	}
	if err != nil {
		data, qErr := p.manageData(ctx, acc, crs, form)
		if qErr != nil {
			return ownerError(ctx, errors.Wrap(qErr, "querying course progress"))
		}
		return renderForm(ctx, "course_progress", err, p.deps, data)
	}

	_, created, err := p.deps.ProgressSvc.EnrollByUsername(ctx.Request().Context(), acc, crs.ID, form.Username)
	if err != nil {
		var vErr *core.ValidationError
		switch {
		case errors.Cause(err) == account.ErrNotFound:
			return flashRedirect(ctx, flashError, "User not found.", manageCourseURL(crs.ID))
		case errors.As(err, &vErr):
			return flashRedirect(ctx, flashError, "That user is not a student.", manageCourseURL(crs.ID))
		}
		return ownerError(ctx, errors.Wrap(err, "enrolling student"))
	}
	if created {
		return flashRedirect(ctx, flashSuccess, fmt.Sprintf("Enrolled %s.", form.Username), manageCourseURL(crs.ID))
	}
	return flashRedirect(ctx, flashInfo, fmt.Sprintf("%s is already enrolled.", form.Username), manageCourseURL(crs.ID))
}
