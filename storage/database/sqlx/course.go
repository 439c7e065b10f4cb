package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
)

const (
	courseColumns     = `id, code, name, description, professor_id, is_published, created_at, updated_at`
	assignmentColumns = `id, course_id, name, description, due_date, max_submissions, allow_late_submissions, points, rubric, is_published, created_at, updated_at`
)

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return getExec(repo.exec, svcExec)
}

func (repo courseRepository) scanCourse(row rowScanner) (course.Course, error) {
	var (
		crs         course.Course
		description null.String
	)
	err := row.Scan(&crs.ID, &crs.Code, &crs.Name, &description, &crs.ProfessorID, &crs.IsPublished, &crs.CreatedAt, &crs.UpdatedAt)
	if err != nil {
		return course.Course{}, err
	}
	crs.Description = description.String
	return crs, nil
}

func (repo courseRepository) scanAssignment(row rowScanner) (course.Assignment, error) {
	var (
		asg         course.Assignment
		description null.String
		rubric      course.Rubric
	)
	err := row.Scan(&asg.ID, &asg.CourseID, &asg.Name, &description, &asg.DueDate, &asg.MaxSubmissions,
		&asg.AllowLateSubmissions, &asg.Points, &rubric, &asg.IsPublished, &asg.CreatedAt, &asg.UpdatedAt)
	if err != nil {
		return course.Assignment{}, err
	}
	asg.Description = description.String
	asg.Rubric = rubric
	return asg, nil
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM course WHERE code = $1`
	args := []interface{}{code}
	if len(excludedCourses) > 0 {
		ids := make([]string, 0, len(excludedCourses))
		for _, c := range excludedCourses {
			ids = append(ids, c.ID)
		}
		q += ` AND id != ALL($2)`
		args = append(args, pq.Array(ids))
	}
	q += `)`

	var exists bool
	if err := repo.getExec(exec).QueryRowContext(ctx, q, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO course (` + courseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		crs.ID,
		crs.Code,
		crs.Name,
		null.NewString(crs.Description, crs.Description != ""),
		crs.ProfessorID,
		crs.IsPublished,
		crs.CreatedAt.UTC(),
		crs.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "course_code_key") {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	q := `SELECT ` + courseColumns + ` FROM course WHERE `

	var row *sql.Row
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return course.Course{}, course.ErrNotFound
		}
		row = exe.QueryRowContext(ctx, q+`id = $1`, filter.ID)
	case filter.Code != "":
		row = exe.QueryRowContext(ctx, q+`code = $1`, filter.Code)
	default:
		return course.Course{}, course.ErrNotFound
	}

	crs, err := repo.scanCourse(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// courses with Code or Name matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, fmt.Sprintf("(code ILIKE %s OR name ILIKE %s)", arg(val), arg(val)))
		}
		if filter.ProfessorID != "" {
			where = append(where, "professor_id = "+arg(filter.ProfessorID))
		}
		if filter.IsPublished != nil {
			where = append(where, "is_published = "+arg(*filter.IsPublished))
		}
	}

	q := `SELECT ` + courseColumns + ` FROM course`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	defer func() { _ = rows.Close() }()

	var courses []course.Course
	for rows.Next() {
		crs, err := repo.scanCourse(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning course")
		}
		courses = append(courses, crs)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `UPDATE course SET name = $1, description = $2, is_published = $3, updated_at = $4 WHERE id = $5 RETURNING ` + courseColumns
	row := repo.getExec(exec).QueryRowContext(ctx, q,
		crs.Name,
		null.NewString(crs.Description, crs.Description != ""),
		crs.IsPublished,
		crs.UpdatedAt.UTC(),
		crs.ID,
	)
	updated, err := repo.scanCourse(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return updated, nil
}

func (repo courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	asg.ID = uuid.New().String()
	q := `INSERT INTO assignment (` + assignmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		asg.ID,
		asg.CourseID,
		asg.Name,
		null.NewString(asg.Description, asg.Description != ""),
		asg.DueDate.UTC(),
		asg.MaxSubmissions,
		asg.AllowLateSubmissions,
		asg.Points,
		asg.Rubric,
		asg.IsPublished,
		asg.CreatedAt.UTC(),
		asg.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo courseRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Assignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE id = $1`
	asg, err := repo.scanAssignment(repo.getExec(exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Assignment{}, course.ErrAssignmentNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return asg, nil
}

func (repo courseRepository) QueryAssignments(ctx context.Context, courseID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Assignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE course_id = $1`
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	defer func() { _ = rows.Close() }()

	var asgs []course.Assignment
	for rows.Next() {
		asg, err := repo.scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning assignment")
		}
		asgs = append(asgs, asg)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return asgs, nil
}

func (repo courseRepository) UpdateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	q := `UPDATE assignment
		SET name = $1, description = $2, due_date = $3, max_submissions = $4, allow_late_submissions = $5,
			points = $6, rubric = $7, is_published = $8, updated_at = $9
		WHERE id = $10 RETURNING ` + assignmentColumns
	row := repo.getExec(exec).QueryRowContext(ctx, q,
		asg.Name,
		null.NewString(asg.Description, asg.Description != ""),
		asg.DueDate.UTC(),
		asg.MaxSubmissions,
		asg.AllowLateSubmissions,
		asg.Points,
		asg.Rubric,
		asg.IsPublished,
		asg.UpdatedAt.UTC(),
		asg.ID,
	)
	updated, err := repo.scanAssignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Assignment{}, course.ErrAssignmentNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return updated, nil
}
