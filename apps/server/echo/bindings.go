package echoapp

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/classroom/core"
)

const orderingParam = "ordering"

// bindForm binds the request into form. A value echo cannot convert becomes
// a validation error on fld so the page can redisplay the form.
func bindForm(ctx echo.Context, form interface{}, fld core.FieldError) error {
	if err := ctx.Bind(form); err != nil {
		return core.NewValidationError(err, fld)
	}
	return nil
}

// bindOrdering reads ?ordering=field,-other into DB orderings; a leading "-" sorts descending.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	val := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if val == "" {
		return nil
	}

	var orderings []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
