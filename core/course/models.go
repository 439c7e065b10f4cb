package course

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
)

type Course struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ProfessorID string    `json:"professor_id"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Assignment struct {
	ID                   string    `json:"id"`
	CourseID             string    `json:"course_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	DueDate              time.Time `json:"due_date"` // UTC
	MaxSubmissions       int       `json:"max_submissions"`
	AllowLateSubmissions bool      `json:"allow_late_submissions"`
	Points               int       `json:"points"`
	Rubric               Rubric    `json:"rubric"`
	IsPublished          bool      `json:"is_published"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
}

type (
	// RubricLevel is one achievable grade level of a rubric criterion.
	RubricLevel struct {
		Label  string `json:"label" validate:"required"`
		Points int    `json:"points" validate:"min=0"`
	}

	// RubricCriterion is one graded dimension of an assignment.
	RubricCriterion struct {
		Title  string        `json:"title" validate:"required"`
		Weight int           `json:"weight" validate:"min=1,max=100"`
		Levels []RubricLevel `json:"levels" validate:"omitempty,dive"`
	}

	// Rubric is the full grading rubric of an assignment,
	// persisted as a JSONB column.
	Rubric []RubricCriterion
)

func (r Rubric) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *Rubric) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return errors.Errorf("unsupported rubric type %T", src)
	}
	return json.Unmarshal(data, r)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code        string `json:"code" validate:"required,min=2,max=16,alphanum_"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc Service) error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(nc.Code)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublished *bool  `json:"is_published"`
}

func (uc *UpdateCourse) Validate(origCrs Course, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origCrs.Name
	}
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Name                 string    `json:"name" validate:"required"`
	Description          string    `json:"description"`
	DueDate              time.Time `json:"due_date" validate:"required"`
	MaxSubmissions       int       `json:"max_submissions" validate:"required,min=1,max=100"`
	AllowLateSubmissions bool      `json:"allow_late_submissions"`
	Points               int       `json:"points" validate:"min=0,max=100"`
	Rubric               Rubric    `json:"rubric" validate:"omitempty,dive"`
	IsPublished          bool      `json:"is_published"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
type UpdateAssignment struct {
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	DueDate              *time.Time `json:"due_date"`
	MaxSubmissions       *int       `json:"max_submissions" validate:"omitempty,min=1,max=100"`
	AllowLateSubmissions *bool      `json:"allow_late_submissions"`
	Points               *int       `json:"points" validate:"omitempty,min=0,max=100"`
	Rubric               Rubric     `json:"rubric" validate:"omitempty,dive"`
	IsPublished          *bool      `json:"is_published"`
}

func (ua *UpdateAssignment) Validate(origAsg Assignment, validate *validator.Validate) error {
	name := core.CleanString(ua.Name)
	if name != "" {
		ua.Name = name
	} else {
		ua.Name = origAsg.Name
	}
	ua.Description = core.CleanString(ua.Description)
	return validate.Struct(ua)
}

type QueryFilter struct {
	Search      string `query:"search"`
	ProfessorID string `query:"professor_id"`
	IsPublished *bool  `query:"is_published"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ProfessorID == "" && qf.IsPublished == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single Course by one of its unique attributes.
type GetFilter struct {
	ID   string
	Code string
}
