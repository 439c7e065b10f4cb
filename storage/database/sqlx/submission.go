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
	"github.com/tchimanga/darasa/core/submission"
)

const submissionColumns = `id, assignment_id, student_id, repo_url, attempt_number, status, is_late, grade, grader_output, submitted_at, updated_at`

type submissionRepository struct {
	exec core.DBExecutor
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{exec: exec}
}

func (repo submissionRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return getExec(repo.exec, svcExec)
}

func (repo submissionRepository) scanSubmission(row rowScanner) (submission.Submission, error) {
	var (
		sub          submission.Submission
		grade        null.Float64
		graderOutput null.String
	)
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.RepoURL, &sub.AttemptNumber,
		&sub.Status, &sub.IsLate, &grade, &graderOutput, &sub.SubmittedAt, &sub.UpdatedAt)
	if err != nil {
		return submission.Submission{}, err
	}
	sub.Grade = grade.Ptr()
	sub.GraderOutput = graderOutput.String
	return sub, nil
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	sub.ID = uuid.New().String()
	q := `INSERT INTO submission (` + submissionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		sub.ID,
		sub.AssignmentID,
		sub.StudentID,
		sub.RepoURL,
		sub.AttemptNumber,
		sub.Status,
		sub.IsLate,
		null.Float64FromPtr(sub.Grade),
		null.NewString(sub.GraderOutput, sub.GraderOutput != ""),
		sub.SubmittedAt.UTC(),
		sub.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "submission_attempt_key") {
			return submission.Submission{}, submission.ErrAttemptExists
		}
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return submission.Submission{}, submission.ErrNotFound
	}
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE id = $1`
	sub, err := repo.scanSubmission(repo.getExec(exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "finding submission")
	}
	return sub, nil
}

func (repo submissionRepository) CountSubmissions(ctx context.Context, studentID, assignmentID string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COUNT(*) FROM submission WHERE student_id = $1 AND assignment_id = $2`
	var count int
	if err := repo.getExec(exec).QueryRowContext(ctx, q, studentID, assignmentID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return count, nil
}

func (repo submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]submission.Submission, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AssignmentID != "" {
		where = append(where, "assignment_id = "+arg(filter.AssignmentID))
	}
	if filter.StudentID != "" {
		where = append(where, "student_id = "+arg(filter.StudentID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}

	q := `SELECT ` + submissionColumns + ` FROM submission`
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
		return nil, errors.Wrap(err, "querying submissions")
	}
	defer func() { _ = rows.Close() }()

	var subs []submission.Submission
	for rows.Next() {
		sub, err := repo.scanSubmission(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning submission")
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (repo submissionRepository) UpdateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	q := `UPDATE submission SET status = $1, grade = $2, grader_output = $3, updated_at = $4 WHERE id = $5 RETURNING ` + submissionColumns
	row := repo.getExec(exec).QueryRowContext(ctx, q,
		sub.Status,
		null.Float64FromPtr(sub.Grade),
		null.NewString(sub.GraderOutput, sub.GraderOutput != ""),
		sub.UpdatedAt.UTC(),
		sub.ID,
	)
	updated, err := repo.scanSubmission(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "updating submission")
	}
	return updated, nil
}
