package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/enrollment"
)

type enrollmentRepository struct {
	db  *enrollmentTable
	rdb *requestTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db.enrollment, rdb: db.request}
}

func (repo *enrollmentRepository) CreateRequest(ctx context.Context, req enrollment.EnrollmentRequest, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	repo.rdb.Lock()
	defer repo.rdb.Unlock()

	// at most one PENDING request per (student, course)
	if req.Status == enrollment.StatusPending {
		for _, existing := range repo.rdb.table {
			if existing.StudentID == req.StudentID && existing.CourseID == req.CourseID && existing.IsPending() {
				return enrollment.EnrollmentRequest{}, enrollment.ErrRequestPending
			}
		}
	}

	req.ID = uuid.New().String()
	repo.rdb.table[req.ID] = &req
	return req, nil
}

func (repo *enrollmentRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	repo.rdb.RLock()
	defer repo.rdb.RUnlock()

	if req, ok := repo.rdb.table[id]; ok {
		return *req, nil
	}
	return enrollment.EnrollmentRequest{}, enrollment.ErrRequestNotFound
}

func (repo *enrollmentRepository) UpdateRequest(ctx context.Context, req enrollment.EnrollmentRequest, exec ...core.DBExecutor) (enrollment.EnrollmentRequest, error) {
	repo.rdb.Lock()
	defer repo.rdb.Unlock()

	orig, ok := repo.rdb.table[req.ID]
	if !ok {
		return enrollment.EnrollmentRequest{}, enrollment.ErrRequestNotFound
	}
	orig.Status = req.Status
	orig.DecidedBy = req.DecidedBy
	orig.UpdatedAt = req.UpdatedAt

	repo.rdb.table[req.ID] = orig
	return *orig, nil
}

func (repo *enrollmentRepository) QueryRequests(ctx context.Context, filter enrollment.RequestFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.EnrollmentRequest, error) {
	repo.rdb.RLock()
	defer repo.rdb.RUnlock()

	var reqs []enrollment.EnrollmentRequest
	for _, req := range repo.rdb.table {
		if filter.CourseID != "" && req.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		reqs = append(reqs, *req)
	}

	if len(ordering) > 0 && ordering[0].Field == "created_at" {
		asc := ordering[0].Ascending
		sort.Slice(reqs, func(i, j int) bool {
			if asc {
				return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
			}
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		})
	}
	return reqs, nil
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.StudentID == enr.StudentID && existing.CourseID == enr.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	repo.db.table[enr.ID] = &enr
	return enr, nil
}

func (repo *enrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.table {
		if enr.StudentID == studentID && enr.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []enrollment.Enrollment
	for _, enr := range repo.db.table {
		if enr.CourseID == courseID {
			enrs = append(enrs, *enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].CreatedAt.Before(enrs[j].CreatedAt) })
	return enrs, nil
}
