package submission

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/enrollment"
	"github.com/tchimanga/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("submission not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNotEnrolled        = errors.New("student is not enrolled in the assignment's course")
	ErrLimitExceeded      = errors.New("submission limit reached for this assignment")
	ErrDeadlinePassed     = errors.New("the assignment deadline has passed")
	ErrInvalidTransition  = errors.New("invalid submission status transition")
	ErrAttemptExists      = errors.New("a submission with this attempt number already exists")
)

type (
	Repository interface {
		// CreateSubmission returns ErrAttemptExists when the
		// (assignment, student, attempt_number) uniqueness constraint is violated.
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		CountSubmissions(ctx context.Context, studentID, assignmentID string, exec ...core.DBExecutor) (int, error)
		// QuerySubmissions applies AND operation on set QueryFilter fields.
		QuerySubmissions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
	}

	Service interface {
		Create(studentID string, ns NewSubmission) (Submission, error)
		GetByID(id string) (Submission, error)
		UpdateStatus(id string, su StatusUpdate) (Submission, error)
		QueryByAssignment(assignmentID, professorID string) ([]Submission, error)
		QueryByStudent(studentID, assignmentID string) ([]Submission, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc course.Service
		enrollSvc enrollment.Service
		usrSvc    user.Service
		mailSvc   core.EmailService
		queueSvc  core.QueueService
		conf      *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	courseSvc course.Service,
	enrollSvc enrollment.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	queueSvc core.QueueService,
	conf *core.Config,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		enrollSvc: enrollSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		queueSvc:  queueSvc,
		conf:      conf,
	}
}

// Create accepts a new submission attempt. Preconditions are checked in
// order, first failure wins: published assignment, enrollment, attempt
// ceiling, deadline. The attempt count and insert run in one transaction so
// concurrent attempts from the same student cannot share an attempt number;
// the uniqueness constraint on (assignment, student, attempt) backstops the
// race and the losing transaction is re-run once against the fresh count.
func (svc *service) Create(studentID string, ns NewSubmission) (Submission, error) {
	ctx := context.Background()

	asg, err := svc.courseSvc.GetAssignment(ns.AssignmentID)
	if err != nil {
		if errors.Cause(err) == course.ErrAssignmentNotFound {
			return Submission{}, ErrAssignmentNotFound
		}
		return Submission{}, err
	}
	if !asg.IsPublished {
		return Submission{}, ErrAssignmentNotFound
	}

	enrolled, err := svc.enrollSvc.IsEnrolled(studentID, asg.CourseID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Submission{}, ErrNotEnrolled
	}

	now := time.Now().UTC()
	isLate := now.After(asg.DueDate)

	var sub Submission
	attempt := func() error {
		return core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
			count, txErr := svc.repo.CountSubmissions(ctx, studentID, asg.ID, tx)
			if txErr != nil {
				return txErr
			}
			if count >= asg.MaxSubmissions {
				return ErrLimitExceeded
			}
			if isLate && !asg.AllowLateSubmissions {
				return ErrDeadlinePassed
			}

			sub, txErr = svc.repo.CreateSubmission(ctx, Submission{
				AssignmentID:  asg.ID,
				StudentID:     studentID,
				RepoURL:       ns.RepoURL,
				AttemptNumber: count + 1,
				Status:        StatusPending,
				IsLate:        isLate,
				SubmittedAt:   now,
				UpdatedAt:     now,
			}, tx)
			return txErr
		})
	}

	if err = attempt(); err != nil {
		if errors.Cause(err) == ErrAttemptExists {
			err = attempt()
		}
		if err != nil {
			return Submission{}, err
		}
	}

	svc.queueSvc.PublishSubmissionCreated(core.SubmissionEvent{
		SubmissionID:  sub.ID,
		AssignmentID:  asg.ID,
		CourseID:      asg.CourseID,
		StudentID:     studentID,
		RepoURL:       sub.RepoURL,
		AttemptNumber: sub.AttemptNumber,
		IsLate:        sub.IsLate,
		SubmittedAt:   sub.SubmittedAt,
	})
	go svc.sendSubmissionReceivedMail(asg, sub)
	return sub, nil
}

func (svc *service) GetByID(id string) (Submission, error) {
	return svc.repo.GetSubmission(context.Background(), id)
}

// UpdateStatus validates and persists a grading-pipeline transition request.
func (svc *service) UpdateStatus(id string, su StatusUpdate) (Submission, error) {
	ctx := context.Background()

	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if !sub.Status.CanTransitionTo(su.Status) {
		return Submission{}, ErrInvalidTransition
	}

	sub.Status = su.Status
	if su.Status == StatusCompleted {
		sub.Grade = su.Grade
	}
	if su.GraderOutput != "" {
		sub.GraderOutput = su.GraderOutput
	}
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubmission(ctx, sub)
}

// QueryByAssignment returns an assignment's submissions, newest first.
// Professor-scoped: the acting professor must own the assignment's course.
func (svc *service) QueryByAssignment(assignmentID, professorID string) ([]Submission, error) {
	asg, err := svc.courseSvc.GetAssignment(assignmentID)
	if err != nil {
		if errors.Cause(err) == course.ErrAssignmentNotFound {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if err = svc.courseSvc.AssertOwner(asg.CourseID, professorID); err != nil {
		return nil, err
	}

	ordering := []core.DBOrdering{{Field: "submitted_at"}} // DESC
	return svc.repo.QuerySubmissions(context.Background(), QueryFilter{AssignmentID: assignmentID}, ordering)
}

// QueryByStudent returns the student's own submissions for an assignment, newest first.
func (svc *service) QueryByStudent(studentID, assignmentID string) ([]Submission, error) {
	ordering := []core.DBOrdering{{Field: "submitted_at"}} // DESC
	return svc.repo.QuerySubmissions(context.Background(), QueryFilter{
		AssignmentID: assignmentID,
		StudentID:    studentID,
	}, ordering)
}

func (svc *service) sendSubmissionReceivedMail(asg course.Assignment, sub Submission) {
	student, err := svc.usrSvc.GetByID(sub.StudentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Submission received for " + asg.Name,
		TemplateName: "submission-received",
		TemplateData: struct {
			Assignment course.Assignment
			Submission Submission
		}{asg, sub},
	})
}
