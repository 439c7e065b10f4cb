package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tchimanga/darasa/core"
)

// RequestStatus is the arbitration state of an EnrollmentRequest.
// PENDING is the only non-terminal state.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// Enrollment is a confirmed student membership in a course.
// At most one row exists per (student, course) pair.
type Enrollment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// EnrollmentRequest is a student-initiated, professor-arbitrated proposal
// to join a course. Requests are never deleted; once decided they are terminal.
type EnrollmentRequest struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	CourseID  string        `json:"course_id"`
	Status    RequestStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	DecidedBy string        `json:"decided_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

func (r *EnrollmentRequest) IsPending() bool { return r.Status == StatusPending }

// NewEnrollmentRequest contains information needed to request enrollment in a course.
type NewEnrollmentRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid4"`
	Message  string `json:"message" validate:"omitempty,max=500"`
}

func (nr *NewEnrollmentRequest) Validate(validate *validator.Validate) error {
	nr.CourseID = core.CleanString(nr.CourseID, true /* lower */)
	nr.Message = core.CleanString(nr.Message)
	return validate.Struct(nr)
}

// RequestFilter narrows a request query; zero-valued fields are ignored.
type RequestFilter struct {
	CourseID  string
	StudentID string
	Status    RequestStatus
}
