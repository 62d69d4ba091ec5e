package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	db *sqlx.DB
}

// ext returns the transaction passed by the caller, if any, or the database.
func (repo repository) ext(exec ...core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if ext, ok := exec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

// notFound turns sql.ErrNoRows into errNotFound.
func notFound(err error, errNotFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return errNotFound
	}
	return err
}

// mustAffect returns errNotFound if res affected no rows.
func mustAffect(res sql.Result, errNotFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}
