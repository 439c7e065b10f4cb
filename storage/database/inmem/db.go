package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/tchimanga/darasa/core"

	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/enrollment"
	"github.com/tchimanga/darasa/core/submission"
	"github.com/tchimanga/darasa/core/user"
)

type (
	DB struct {
		executor

		user       *userTable
		course     *courseTable
		assignment *assignmentTable
		enrollment *enrollmentTable
		request    *requestTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*course.Assignment
	}

	enrollmentTable struct {
		sync.RWMutex
		table map[string]*enrollment.Enrollment
	}

	requestTable struct {
		sync.RWMutex
		table map[string]*enrollment.EnrollmentRequest
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*submission.Submission
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		course:     &courseTable{table: make(map[string]*course.Course)},
		assignment: &assignmentTable{table: make(map[string]*course.Assignment)},
		enrollment: &enrollmentTable{table: make(map[string]*enrollment.Enrollment)},
		request:    &requestTable{table: make(map[string]*enrollment.EnrollmentRequest)},
		submission: &submissionTable{table: make(map[string]*submission.Submission)},
	}
	return db, nil
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return tx{}, nil
}

// executor stubs out the SQL surface of core.DBExecutor;
// the repositories here never touch it.
type executor struct{}

func (executor) Exec(query string, args ...interface{}) (sql.Result, error) { return nil, nil }
func (executor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (executor) Query(query string, args ...interface{}) (*sql.Rows, error) { return nil, nil }
func (executor) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (executor) QueryRow(query string, args ...interface{}) *sql.Row { return nil }
func (executor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

type tx struct {
	executor
}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }
