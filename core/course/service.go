package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNotOwner           = errors.New("only the course professor may perform this action")
	ErrCodeExists         = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)

		CreateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, courseID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
	}

	Service interface {
		CheckCodeUniqueness(code string, exclCourses ...Course) error
		Create(professorID string, nc NewCourse) (Course, error)
		GetByID(id string) (Course, error)
		GetByCode(code string) (Course, error)
		// GetOwned returns the course only if it is owned by the acting professor;
		// ErrNotFound if absent, ErrNotOwner otherwise.
		GetOwned(id, professorID string) (Course, error)
		AssertOwner(id, professorID string) error
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(id, professorID string, uc UpdateCourse) (Course, error)

		CreateAssignment(courseID, professorID string, na NewAssignment) (Assignment, error)
		GetAssignment(id string) (Assignment, error)
		QueryAssignments(courseID string) ([]Assignment, error)
		UpdateAssignment(id, professorID string, ua UpdateAssignment) (Assignment, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (svc *service) CheckCodeUniqueness(code string, exclCourses ...Course) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code, exclCourses); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(professorID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		ProfessorID: professorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(context.Background(), crs)
}

func (svc *service) GetByID(id string) (Course, error) {
	return svc.repo.GetCourse(context.Background(), GetFilter{ID: id})
}

func (svc *service) GetByCode(code string) (Course, error) {
	return svc.repo.GetCourse(context.Background(), GetFilter{Code: core.CleanString(code, true /* lower */)})
}

func (svc *service) GetOwned(id, professorID string) (Course, error) {
	crs, err := svc.GetByID(id)
	if err != nil {
		return Course{}, err
	}
	if crs.ProfessorID != professorID {
		return Course{}, ErrNotOwner
	}
	return crs, nil
}

func (svc *service) AssertOwner(id, professorID string) error {
	_, err := svc.GetOwned(id, professorID)
	return err
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryCourses(context.Background(), filter, ordering)
}

func (svc *service) Update(id, professorID string, uc UpdateCourse) (Course, error) {
	crs, err := svc.GetOwned(id, professorID)
	if err != nil {
		return Course{}, err
	}

	crs.Name = uc.Name
	crs.Description = uc.Description
	if uc.IsPublished != nil {
		crs.IsPublished = *uc.IsPublished
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(context.Background(), crs)
}

func (svc *service) CreateAssignment(courseID, professorID string, na NewAssignment) (Assignment, error) {
	crs, err := svc.GetOwned(courseID, professorID)
	if err != nil {
		return Assignment{}, err
	}

	now := time.Now().UTC()
	asg := Assignment{
		CourseID:             crs.ID,
		Name:                 na.Name,
		Description:          na.Description,
		DueDate:              na.DueDate.UTC(),
		MaxSubmissions:       na.MaxSubmissions,
		AllowLateSubmissions: na.AllowLateSubmissions,
		Points:               na.Points,
		Rubric:               na.Rubric,
		IsPublished:          na.IsPublished,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return svc.repo.CreateAssignment(context.Background(), asg)
}

func (svc *service) GetAssignment(id string) (Assignment, error) {
	return svc.repo.GetAssignment(context.Background(), id)
}

func (svc *service) QueryAssignments(courseID string) ([]Assignment, error) {
	ordering := []core.DBOrdering{{Field: "due_date", Ascending: true}}
	return svc.repo.QueryAssignments(context.Background(), courseID, ordering)
}

func (svc *service) UpdateAssignment(id, professorID string, ua UpdateAssignment) (Assignment, error) {
	asg, err := svc.GetAssignment(id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.AssertOwner(asg.CourseID, professorID); err != nil {
		return Assignment{}, err
	}

	asg.Name = ua.Name
	asg.Description = ua.Description
	if ua.DueDate != nil {
		asg.DueDate = ua.DueDate.UTC()
	}
	if ua.MaxSubmissions != nil {
		asg.MaxSubmissions = *ua.MaxSubmissions
	}
	if ua.AllowLateSubmissions != nil {
		asg.AllowLateSubmissions = *ua.AllowLateSubmissions
	}
	if ua.Points != nil {
		asg.Points = *ua.Points
	}
	if ua.Rubric != nil {
		asg.Rubric = ua.Rubric
	}
	if ua.IsPublished != nil {
		asg.IsPublished = *ua.IsPublished
	}
	asg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(context.Background(), asg)
}
