package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tchimanga/darasa/core"
)

// Status is the grading state of a Submission. The allowed transitions are
// PENDING -> GRADING -> {COMPLETED, FAILED}; terminal states have no exits.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusGrading   Status = "GRADING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusGrading},
	StatusGrading: {StatusCompleted, StatusFailed},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusGrading, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Submission is one attempt by a student at an assignment. AttemptNumber is
// 1-based and dense per (student, assignment); it never exceeds the
// assignment's MaxSubmissions.
type Submission struct {
	ID            string     `json:"id"`
	AssignmentID  string     `json:"assignment_id"`
	StudentID     string     `json:"student_id"`
	RepoURL       string     `json:"repo_url"`
	AttemptNumber int        `json:"attempt_number"`
	Status        Status     `json:"status"`
	IsLate        bool       `json:"is_late"`
	Grade         *float64   `json:"grade,omitempty"`
	GraderOutput  string     `json:"grader_output,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"`   // UTC
}

// NewSubmission contains information needed to submit an assignment attempt.
type NewSubmission struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid4"`
	RepoURL      string `json:"repo_url" validate:"required,repourl"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.AssignmentID = core.CleanString(ns.AssignmentID, true /* lower */)
	ns.RepoURL = core.CleanString(ns.RepoURL)
	return validate.Struct(ns)
}

// StatusUpdate is a grading-pipeline-driven transition request.
type StatusUpdate struct {
	Status       Status   `json:"status" validate:"required"`
	Grade        *float64 `json:"grade" validate:"omitempty,min=0,max=100"`
	GraderOutput string   `json:"grader_output"`
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	if err := validate.Struct(su); err != nil {
		return err
	}
	if !su.Status.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}
	return nil
}

// QueryFilter narrows a submission query; zero-valued fields are ignored.
type QueryFilter struct {
	AssignmentID string
	StudentID    string
	Status       Status
}
