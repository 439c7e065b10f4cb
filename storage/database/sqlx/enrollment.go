package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/enrollment"
)

const (
	enrollmentColumns = `id, student_id, course_id, created_at`
	requestColumns    = `id, student_id, course_id, status, message, decided_by, created_at, updated_at`
)

type enrollmentRepository struct {
	exec core.DBExecutor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{exec: exec}
}

func (repo enrollmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return getExec(repo.exec, svcExec)
}

func (repo enrollmentRepository) scanRequest(row rowScanner) (enrollment.EnrollmentRequest, error) {
	var (
		req       enrollment.EnrollmentRequest
		message   null.String
		decidedBy null.String
	)
	err := row.Scan(&req.ID, &req.StudentID, &req.CourseID, &req.Status, &message, &decidedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return enrollment.EnrollmentRequest{}, err
	}
	req.Message = message.String
	req.DecidedBy = decidedBy.String
	return req, nil
}

func (repo enrollmentRepository) CreateRequest(ctx context.Context, req enrollment.EnrollmentRequest, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	req.ID = uuid.New().String()
	q := `INSERT INTO enrollment_request (` + requestColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		req.ID,
		req.StudentID,
		req.CourseID,
		req.Status,
		null.NewString(req.Message, req.Message != ""),
		null.NewString(req.DecidedBy, req.DecidedBy != ""),
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "enrollment_request_pending_key") {
			return enrollment.EnrollmentRequest{}, enrollment.ErrRequestPending
		}
		return enrollment.EnrollmentRequest{}, errors.Wrap(err, "inserting enrollment request")
	}
	return req, nil
}

func (repo enrollmentRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enrollment.EnrollmentRequest{}, enrollment.ErrRequestNotFound
	}
	q := `SELECT ` + requestColumns + ` FROM enrollment_request WHERE id = $1`
	req, err := repo.scanRequest(repo.getExec(exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return enrollment.EnrollmentRequest{}, enrollment.ErrRequestNotFound
		}
		return enrollment.EnrollmentRequest{}, errors.Wrap(err, "finding enrollment request")
	}
	return req, nil
}

func (repo enrollmentRepository) UpdateRequest(ctx context.Context, req enrollment.EnrollmentRequest, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	q := `UPDATE enrollment_request SET status = $1, decided_by = $2, updated_at = $3 WHERE id = $4 RETURNING ` + requestColumns
	row := repo.getExec(exec).QueryRowContext(ctx, q,
		req.Status,
		null.NewString(req.DecidedBy, req.DecidedBy != ""),
		req.UpdatedAt.UTC(),
		req.ID,
	)
	updated, err := repo.scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return enrollment.EnrollmentRequest{}, enrollment.ErrRequestNotFound
		}
		return enrollment.EnrollmentRequest{}, errors.Wrap(err, "updating enrollment request")
	}
	return updated, nil
}

func (repo enrollmentRepository) QueryRequests(ctx context.Context, filter enrollment.RequestFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.EnrollmentRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CourseID != "" {
		where = append(where, "course_id = "+arg(filter.CourseID))
	}
	if filter.StudentID != "" {
		where = append(where, "student_id = "+arg(filter.StudentID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}

	q := `SELECT ` + requestColumns + ` FROM enrollment_request`
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
		return nil, errors.Wrap(err, "querying enrollment requests")
	}
	defer func() { _ = rows.Close() }()

	var reqs []enrollment.EnrollmentRequest
	for rows.Next() {
		req, err := repo.scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning enrollment request")
		}
		reqs = append(reqs, req)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying enrollment requests")
	}
	return reqs, nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	// DO NOTHING instead of raising 23505: a unique violation would put an
	// enclosing transaction in the aborted state and the approve path must
	// keep going after observing the conflict
	q := `INSERT INTO enrollment (` + enrollmentColumns + `) VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT enrollment_student_course_key DO NOTHING`
	res, err := repo.getExec(exec).ExecContext(ctx, q, enr.ID, enr.StudentID, enr.CourseID, enr.CreatedAt.UTC())
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	if inserted == 0 {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	return enr, nil
}

func (repo enrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM enrollment WHERE student_id = $1 AND course_id = $2)`
	var enrolled bool
	if err := repo.getExec(exec).QueryRowContext(ctx, q, studentID, courseID).Scan(&enrolled); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollment WHERE course_id = $1 ORDER BY created_at ASC`
	rows, err := repo.getExec(exec).QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	defer func() { _ = rows.Close() }()

	var enrs []enrollment.Enrollment
	for rows.Next() {
		var enr enrollment.Enrollment
		if err = rows.Scan(&enr.ID, &enr.StudentID, &enr.CourseID, &enr.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning enrollment")
		}
		enrs = append(enrs, enr)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrs, nil
}
