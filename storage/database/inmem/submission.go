package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db.submission}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.AssignmentID == sub.AssignmentID &&
			existing.StudentID == sub.StudentID &&
			existing.AttemptNumber == sub.AttemptNumber {
			return submission.Submission{}, submission.ErrAttemptExists
		}
	}

	sub.ID = uuid.New().String()
	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) CountSubmissions(ctx context.Context, studentID, assignmentID string, exec ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, sub := range repo.db.table {
		if sub.StudentID == studentID && sub.AssignmentID == assignmentID {
			count++
		}
	}
	return count, nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []submission.Submission
	for _, sub := range repo.db.table {
		if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		subs = append(subs, *sub)
	}

	if len(ordering) > 0 && ordering[0].Field == "submitted_at" {
		asc := ordering[0].Ascending
		sort.Slice(subs, func(i, j int) bool {
			if asc {
				return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
			}
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		})
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[sub.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	orig.Status = sub.Status
	orig.Grade = sub.Grade
	orig.GraderOutput = sub.GraderOutput
	orig.UpdatedAt = sub.UpdatedAt

	repo.db.table[sub.ID] = orig
	return *orig, nil
}
