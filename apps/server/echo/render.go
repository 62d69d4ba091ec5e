package echoapp

import (
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	appfs "github.com/trezcool/classroom/fs"
)

const (
	csrfContextKey = "csrf"
	csrfFormField  = "csrf_token"
	layoutPrefix   = "_"
	baseTemplate   = "base"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
}

// templateRenderer renders the pages embedded under fs/templates.
// Every page is parsed together with the layouts (files starting with "_") and executed from "base".
type templateRenderer struct {
	templates map[string]*template.Template
}

var _ echo.Renderer = (*templateRenderer)(nil) // interface compliance check

func newTemplateRenderer(fsys fs.FS) (*templateRenderer, error) {
	files, err := fs.Glob(fsys, path.Join(appfs.TemplatesDir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}

	var layouts, pages []string
	for _, file := range files {
		if strings.HasPrefix(path.Base(file), layoutPrefix) {
			layouts = append(layouts, file)
		} else {
			pages = append(pages, file)
		}
	}

	r := &templateRenderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		base := path.Base(page)
		tmpl, err := template.New(base).Funcs(templateFuncs).ParseFS(fsys, append([]string{page}, layouts...)...)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", base)
		}
		r.templates[strings.TrimSuffix(base, ".gohtml")] = tmpl
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, baseTemplate, data)
}

// render adds the logged in account, the pending flashes and the csrf token to data before rendering the page.
func render(ctx echo.Context, code int, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	if _, ok := data["errors"]; !ok {
		data["errors"] = map[string]string{}
	}
	if acc, ok := sessionAccount(ctx); ok {
		data["account"] = acc
	}
	if _, err := getSession(ctx); err == nil {
		flashes, err := popFlashes(ctx)
		if err != nil {
			return errors.Wrap(err, "popping flashes")
		}
		data["flashes"] = flashes
	}
	token, _ := ctx.Get(csrfContextKey).(string)
	data["csrf"] = token
	data["csrf_field"] = csrfFormField
	return ctx.Render(code, name, data)
}

// renderForm re-renders a form with the field errors of err.
// err is returned untouched when it is not a validation error.
func renderForm(ctx echo.Context, name string, err error, d Deps, data echo.Map) error {
	fldErrs := core.FieldErrors(err, d.Translator)
	if fldErrs == nil {
		return err
	}
	data["errors"] = fldErrs
	return render(ctx, http.StatusOK, name, data)
}
