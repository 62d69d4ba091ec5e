package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/course"
)

type courseRow struct {
	ID                 int64     `db:"id"`
	InstructorID       int64     `db:"instructor_id"`
	Title              string    `db:"title"`
	Description        string    `db:"description"`
	IsPublished        bool      `db:"is_published"`
	CreatedAt          time.Time `db:"created_at"`
	InstructorUsername string    `db:"instructor_username"`
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:                 row.ID,
		InstructorID:       row.InstructorID,
		Title:              row.Title,
		Description:        row.Description,
		IsPublished:        row.IsPublished,
		CreatedAt:          row.CreatedAt.UTC(),
		InstructorUsername: row.InstructorUsername,
	}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func (repo *courseRepository) selectCourses() sq.SelectBuilder {
	return psql.
		Select(
			"c.id", "c.instructor_id", "c.title", "c.description", "c.is_published", "c.created_at",
			"a.username AS instructor_username",
		).
		From("courses c").
		Join("instructor_profiles ip ON ip.id = c.instructor_id").
		Join("accounts a ON a.id = ip.account_id")
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q, args, err := psql.
		Insert("courses").
		Columns("instructor_id", "title", "description", "is_published", "created_at").
		Values(crs.InstructorID, crs.Title, crs.Description, crs.IsPublished, crs.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &crs.ID, q, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Course, error) {
	q, args, err := repo.selectCourses().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	var row courseRow
	if err = sqlx.GetContext(ctx, repo.ext(exec...), &row, q, args...); err != nil {
		return course.Course{}, notFound(err, course.ErrNotFound)
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	sb := repo.selectCourses().OrderBy(
		core.DBOrdering{Field: "c.created_at"}.String(),
		core.DBOrdering{Field: "c.id"}.String(),
	)
	if filter.PublishedOnly {
		sb = sb.Where(sq.Eq{"c.is_published": true})
	}
	if filter.InstructorID != 0 {
		sb = sb.Where(sq.Eq{"c.instructor_id": filter.InstructorID})
	}
	if filter.Limit > 0 {
		sb = sb.Limit(filter.Limit)
	}

	q, args, err := sb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, repo.ext(exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q, args, err := psql.
		Update("courses").
		Set("title", crs.Title).
		Set("description", crs.Description).
		Set("is_published", crs.IsPublished).
		Where(sq.Eq{"id": crs.ID}).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	res, err := repo.ext(exec...).ExecContext(ctx, q, args...)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = mustAffect(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}
