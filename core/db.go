package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// RunInTx runs fn within a transaction, committing on success and rolling
// back on failure. A failed Begin/Commit (storage transient) is retried
// exactly once; fn errors are surfaced as-is and never retried.
func RunInTx(ctx context.Context, db DB, fn func(tx DBTransactor) error) error {
	run := func() (error, bool) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "beginning transaction"), true
		}
		if err = fn(tx); err != nil {
			_ = tx.Rollback()
			return err, false
		}
		if err = tx.Commit(); err != nil {
			return errors.Wrap(err, "committing transaction"), true
		}
		return nil, false
	}

	err, retriable := run()
	if err != nil && retriable {
		err, _ = run()
	}
	return err
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
