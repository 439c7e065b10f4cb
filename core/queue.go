package core

import "time"

// SubmissionEvent is the fact published to the grading pipeline
// when a student submission has been accepted.
type SubmissionEvent struct {
	SubmissionID  string    `json:"submission_id"`
	AssignmentID  string    `json:"assignment_id"`
	CourseID      string    `json:"course_id"`
	StudentID     string    `json:"student_id"`
	RepoURL       string    `json:"repo_url"`
	AttemptNumber int       `json:"attempt_number"`
	IsLate        bool      `json:"is_late"`
	SubmittedAt   time.Time `json:"submitted_at"` // UTC
}

// QueueService is any service that can hand accepted submissions off to the
// grading pipeline. Publishing is fire-and-forget: failures are logged by
// implementations and never propagated back to the caller's transaction.
type QueueService interface {
	PublishSubmissionCreated(event SubmissionEvent)
}
