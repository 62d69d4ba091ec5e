package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/progress"
	"github.com/trezcool/classroom/storage/database"
)

// entryOrderColumns maps the orderable progress.Entry fields to their column.
var entryOrderColumns = map[string]string{
	"id":               "pe.id",
	"updated_at":       "pe.updated_at",
	"student_username": "a.username",
	"course_name":      "pe.course_name",
}

type entryRow struct {
	ID                 int64       `db:"id"`
	StudentID          int64       `db:"student_id"`
	CourseID           null.Int64  `db:"course_id"`
	CourseName         string      `db:"course_name"`
	ProgressPercent    int         `db:"progress_percent"`
	UpdatedAt          time.Time   `db:"updated_at"`
	StudentUsername    string      `db:"student_username"`
	CourseTitle        null.String `db:"course_title"`
	CourseInstructorID null.Int64  `db:"course_instructor_id"`
}

func (row entryRow) toEntry() progress.Entry {
	return progress.Entry{
		ID:                 row.ID,
		StudentID:          row.StudentID,
		CourseID:           row.CourseID,
		CourseName:         row.CourseName,
		ProgressPercent:    row.ProgressPercent,
		UpdatedAt:          row.UpdatedAt.UTC(),
		StudentUsername:    row.StudentUsername,
		CourseTitle:        row.CourseTitle,
		CourseInstructorID: row.CourseInstructorID,
	}
}

type progressRepository struct {
	repository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{repository{db: db}}
}

func (repo *progressRepository) selectEntries() sq.SelectBuilder {
	return psql.
		Select(
			"pe.id", "pe.student_id", "pe.course_id", "pe.course_name", "pe.progress_percent", "pe.updated_at",
			"a.username AS student_username",
			"c.title AS course_title",
			"c.instructor_id AS course_instructor_id",
		).
		From("progress_entries pe").
		Join("student_profiles sp ON sp.id = pe.student_id").
		Join("accounts a ON a.id = sp.account_id").
		LeftJoin("courses c ON c.id = pe.course_id")
}

func (repo *progressRepository) getEntry(ctx context.Context, pred interface{}, exec ...core.DBExecutor) (progress.Entry, error) {
	q, args, err := repo.selectEntries().Where(pred).ToSql()
	if err != nil {
		return progress.Entry{}, errors.Wrap(err, "building query")
	}
	var row entryRow
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &row, q, args...); err != nil {
		return progress.Entry{}, notFound(err, progress.ErrNotFound)
	}
	return row.toEntry(), nil
}

// GetOrCreateEntry relies on the (student_id, course_id) unique constraint:
// a concurrent enrollment makes the insert a no-op and the existing row is returned instead.
func (repo *progressRepository) GetOrCreateEntry(ctx context.Context, e progress.Entry, exec ...core.DBExecutor) (progress.Entry, bool, error) {
	q, args, err := psql.
		Insert("progress_entries").
		Columns("student_id", "course_id", "course_name", "progress_percent", "updated_at").
		Values(e.StudentID, e.CourseID, e.CourseName, e.ProgressPercent, e.UpdatedAt).
		Suffix("ON CONFLICT (student_id, course_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return progress.Entry{}, false, errors.Wrap(err, "building query")
	}

	var id int64
	err = sqlx.GetContext(ctx, repo.ext(exec...), &id, q, args...)
	switch {
	case err == nil:
		entry, err := repo.getEntry(ctx, sq.Eq{"pe.id": id}, exec...)
		return entry, true, err
	case errors.Cause(err) == sql.ErrNoRows:
		entry, err := repo.getEntry(ctx, sq.Eq{"pe.student_id": e.StudentID, "pe.course_id": e.CourseID}, exec...)
		return entry, false, err
	default:
		if _, ok := database.UniqueViolation(err); ok {
			return progress.Entry{}, false, core.NewValidationError(err)
		}
		return progress.Entry{}, false, errors.Wrap(err, "creating progress entry")
	}
}

func (repo *progressRepository) GetEntry(ctx context.Context, id int64, exec ...core.DBExecutor) (progress.Entry, error) {
	return repo.getEntry(ctx, sq.Eq{"pe.id": id}, exec...)
}

func (repo *progressRepository) GetStudentEntry(ctx context.Context, studentID, courseID int64, exec ...core.DBExecutor) (progress.Entry, error) {
	return repo.getEntry(ctx, sq.Eq{"pe.student_id": studentID, "pe.course_id": courseID}, exec...)
}

func (repo *progressRepository) QueryEntries(ctx context.Context, filter progress.QueryFilter, exec ...core.DBExecutor) ([]progress.Entry, error) {
	sb := repo.selectEntries()
	if filter.StudentID != 0 {
		sb = sb.Where(sq.Eq{"pe.student_id": filter.StudentID})
	}
	if filter.CourseID != 0 {
		sb = sb.Where(sq.Eq{"pe.course_id": filter.CourseID})
	}
	for _, ord := range filter.OrderBy {
		col, ok := entryOrderColumns[ord.Field]
		if !ok {
			return nil, errors.Errorf("cannot order progress entries by %q", ord.Field)
		}
		ord.Field = col
		sb = sb.OrderBy(ord.String())
	}

	q, args, err := sb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []entryRow
	if err = sqlx.SelectContext(ctx, repo.ext(exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying progress entries")
	}

	entries := make([]progress.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

func (repo *progressRepository) UpdateEntry(ctx context.Context, e progress.Entry, exec ...core.DBExecutor) (progress.Entry, error) {
	q, args, err := psql.
		Update("progress_entries").
		Set("progress_percent", e.ProgressPercent).
		Set("updated_at", e.UpdatedAt).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return progress.Entry{}, errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return progress.Entry{}, errors.Wrap(err, "updating progress entry")
	}
	if err = mustAffect(res, progress.ErrNotFound); err != nil {
		return progress.Entry{}, err
	}
	return e, nil
}

func (repo *progressRepository) DeleteEntry(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	q, args, err := psql.Delete("progress_entries").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "deleting progress entry")
	}
	return mustAffect(res, progress.ErrNotFound)
}

func (repo *progressRepository) DeleteByStudent(ctx context.Context, studentID int64, exec ...core.DBExecutor) (int, error) {
	q, args, err := psql.Delete("progress_entries").Where(sq.Eq{"student_id": studentID}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting progress entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted progress entries")
	}
	return int(n), nil
}
