package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/user"
)

var (
	// errors
	ErrRequestNotFound  = errors.New("enrollment request not found")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled in this course")
	ErrRequestPending   = errors.New("an enrollment request for this course is already pending")
	ErrAlreadyProcessed = errors.New("enrollment request has already been processed")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, req EnrollmentRequest, exec ...core.DBExecutor) (EnrollmentRequest, error)
		GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (EnrollmentRequest, error)
		UpdateRequest(ctx context.Context, req EnrollmentRequest, exec ...core.DBExecutor) (EnrollmentRequest, error)
		// QueryRequests applies AND operation on set RequestFilter fields.
		QueryRequests(ctx context.Context, filter RequestFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]EnrollmentRequest, error)

		// CreateEnrollment returns ErrAlreadyEnrolled when the (student, course)
		// uniqueness constraint is violated.
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		IsEnrolled(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error)
		QueryEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	Service interface {
		Request(studentID string, nr NewEnrollmentRequest) (EnrollmentRequest, error)
		Approve(requestID, professorID string) (EnrollmentRequest, error)
		Reject(requestID, professorID string) (EnrollmentRequest, error)
		ListPending(courseID, professorID string) ([]EnrollmentRequest, error)
		Enroll(studentID, courseID string) (Enrollment, error)
		IsEnrolled(studentID, courseID string) (bool, error)
		ListEnrollments(courseID, professorID string) ([]Enrollment, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc course.Service
		usrSvc    user.Service
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	courseSvc course.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

// Request creates a PENDING enrollment request for the acting student.
// At most one PENDING request may exist per (student, course) pair and a
// request may not be filed when the student is already enrolled.
func (svc *service) Request(studentID string, nr NewEnrollmentRequest) (EnrollmentRequest, error) {
	ctx := context.Background()

	crs, err := svc.courseSvc.GetByID(nr.CourseID)
	if err != nil {
		return EnrollmentRequest{}, err
	}

	enrolled, err := svc.repo.IsEnrolled(ctx, studentID, crs.ID)
	if err != nil {
		return EnrollmentRequest{}, errors.Wrap(err, "checking enrollment")
	}
	if enrolled {
		return EnrollmentRequest{}, ErrAlreadyEnrolled
	}

	pending, err := svc.repo.QueryRequests(ctx, RequestFilter{
		CourseID:  crs.ID,
		StudentID: studentID,
		Status:    StatusPending,
	}, nil)
	if err != nil {
		return EnrollmentRequest{}, errors.Wrap(err, "checking pending requests")
	}
	if len(pending) > 0 {
		return EnrollmentRequest{}, ErrRequestPending
	}

	now := time.Now().UTC()
	req := EnrollmentRequest{
		StudentID: studentID,
		CourseID:  crs.ID,
		Status:    StatusPending,
		Message:   nr.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// the partial uniqueness constraint on PENDING requests backstops a
	// concurrent duplicate; the repo maps that violation to ErrRequestPending
	req, err = svc.repo.CreateRequest(ctx, req)
	if err != nil {
		return EnrollmentRequest{}, err
	}

	go svc.sendRequestCreatedMail(crs, req)
	return req, nil
}

// Approve enrolls the requesting student and marks the request APPROVED in a
// single transaction. When an Enrollment for the pair already exists (direct
// enrollment raced the approval), the request is still marked APPROVED and no
// duplicate Enrollment is created.
func (svc *service) Approve(requestID, professorID string) (EnrollmentRequest, error) {
	ctx := context.Background()

	req, err := svc.repo.GetRequest(ctx, requestID)
	if err != nil {
		return EnrollmentRequest{}, err
	}
	crs, err := svc.courseSvc.GetOwned(req.CourseID, professorID)
	if err != nil {
		return EnrollmentRequest{}, err
	}
	if !req.IsPending() {
		return EnrollmentRequest{}, ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	req.Status = StatusApproved
	req.DecidedBy = professorID
	req.UpdatedAt = now

	enrolled, err := svc.repo.IsEnrolled(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return EnrollmentRequest{}, errors.Wrap(err, "checking enrollment")
	}

	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		if !enrolled {
			_, txErr := svc.repo.CreateEnrollment(ctx, Enrollment{
				StudentID: req.StudentID,
				CourseID:  req.CourseID,
				CreatedAt: now,
			}, tx)
			// a concurrent enrollment beat us to the insert; treat as enrolled
			if txErr != nil && errors.Cause(txErr) != ErrAlreadyEnrolled {
				return txErr
			}
		}
		var txErr error
		req, txErr = svc.repo.UpdateRequest(ctx, req, tx)
		return txErr
	})
	if err != nil {
		return EnrollmentRequest{}, err
	}

	go svc.sendRequestDecidedMail(crs, req)
	return req, nil
}

// Reject marks the request REJECTED. No Enrollment side effect.
func (svc *service) Reject(requestID, professorID string) (EnrollmentRequest, error) {
	ctx := context.Background()

	req, err := svc.repo.GetRequest(ctx, requestID)
	if err != nil {
		return EnrollmentRequest{}, err
	}
	crs, err := svc.courseSvc.GetOwned(req.CourseID, professorID)
	if err != nil {
		return EnrollmentRequest{}, err
	}
	if !req.IsPending() {
		return EnrollmentRequest{}, ErrAlreadyProcessed
	}

	req.Status = StatusRejected
	req.DecidedBy = professorID
	req.UpdatedAt = time.Now().UTC()
	req, err = svc.repo.UpdateRequest(ctx, req)
	if err != nil {
		return EnrollmentRequest{}, err
	}

	go svc.sendRequestDecidedMail(crs, req)
	return req, nil
}

// ListPending returns the course's PENDING requests, most recent first.
func (svc *service) ListPending(courseID, professorID string) ([]EnrollmentRequest, error) {
	if err := svc.courseSvc.AssertOwner(courseID, professorID); err != nil {
		return nil, err
	}
	ordering := []core.DBOrdering{{Field: "created_at"}} // DESC
	return svc.repo.QueryRequests(context.Background(), RequestFilter{
		CourseID: courseID,
		Status:   StatusPending,
	}, ordering)
}

// Enroll adds the student to the course directly, bypassing arbitration.
// Used by professor/admin rosters.
func (svc *service) Enroll(studentID, courseID string) (Enrollment, error) {
	ctx := context.Background()

	crs, err := svc.courseSvc.GetByID(courseID)
	if err != nil {
		return Enrollment{}, err
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID: studentID,
		CourseID:  crs.ID,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) IsEnrolled(studentID, courseID string) (bool, error) {
	return svc.repo.IsEnrolled(context.Background(), studentID, courseID)
}

func (svc *service) ListEnrollments(courseID, professorID string) ([]Enrollment, error) {
	if err := svc.courseSvc.AssertOwner(courseID, professorID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(context.Background(), courseID)
}

// Mails

func (svc *service) sendRequestCreatedMail(crs course.Course, req EnrollmentRequest) {
	prof, err := svc.usrSvc.GetByID(crs.ProfessorID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: prof.Name, Address: prof.Email}},
		Subject:      "New enrollment request for " + crs.Name,
		TemplateName: "enrollment-request-created",
		TemplateData: struct {
			Course  course.Course
			Request EnrollmentRequest
		}{crs, req},
	})
}

func (svc *service) sendRequestDecidedMail(crs course.Course, req EnrollmentRequest) {
	student, err := svc.usrSvc.GetByID(req.StudentID)
	if err != nil {
		return
	}
	subject := "Your enrollment request for " + crs.Name + " was approved"
	if req.Status == StatusRejected {
		subject = "Your enrollment request for " + crs.Name + " was rejected"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      subject,
		TemplateName: "enrollment-request-decided",
		TemplateData: struct {
			Course  course.Course
			Request EnrollmentRequest
		}{crs, req},
	})
}
