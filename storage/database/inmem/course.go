package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
)

type courseRepository struct {
	db  *courseTable
	adb *assignmentTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course, adb: db.assignment}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		courses = append(courses, *c)
	}
	return courses
}

func (repo *courseRepository) queryAssignments() []course.Assignment {
	asgs := make([]course.Assignment, 0, len(repo.adb.table))
	for _, a := range repo.adb.table {
		asgs = append(asgs, *a)
	}
	return asgs
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedCourses))
	for _, c := range excludedCourses {
		excluded[c.ID] = struct{}{}
	}

	for _, crs := range repo.query() {
		if _, ok := excluded[crs.ID]; ok {
			continue
		}
		if crs.Code == code {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.query() {
		if existing.Code == crs.Code {
			return course.Course{}, course.ErrCodeExists
		}
	}

	crs.ID = uuid.New().String()
	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if crs, ok := repo.db.table[filter.ID]; ok {
			return *crs, nil
		}
		return course.Course{}, course.ErrNotFound
	}
	if filter.Code != "" {
		for _, crs := range repo.query() {
			if crs.Code == filter.Code {
				return crs, nil
			}
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := repo.query()
	if filter != nil {
		if filter.Search != "" {
			var filtered []course.Course
			for _, c := range courses {
				if strings.Contains(strings.ToLower(c.Code), strings.ToLower(filter.Search)) ||
					strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
					filtered = append(filtered, c)
				}
			}
			courses = filtered
		}
		if courses != nil && filter.ProfessorID != "" {
			var filtered []course.Course
			for _, c := range courses {
				if c.ProfessorID == filter.ProfessorID {
					filtered = append(filtered, c)
				}
			}
			courses = filtered
		}
		if courses != nil && filter.IsPublished != nil {
			var filtered []course.Course
			for _, c := range courses {
				if c.IsPublished == *filter.IsPublished {
					filtered = append(filtered, c)
				}
			}
			courses = filtered
		}
	}

	if len(ordering) > 0 && ordering[0].Field == "created_at" {
		asc := ordering[0].Ascending
		sort.Slice(courses, func(i, j int) bool {
			if asc {
				return courses[i].CreatedAt.Before(courses[j].CreatedAt)
			}
			return courses[i].CreatedAt.After(courses[j].CreatedAt)
		})
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Name = crs.Name
	orig.Description = crs.Description
	orig.IsPublished = crs.IsPublished
	orig.UpdatedAt = crs.UpdatedAt

	repo.db.table[crs.ID] = orig
	return *orig, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	repo.adb.Lock()
	defer repo.adb.Unlock()

	asg.ID = uuid.New().String()
	repo.adb.table[asg.ID] = &asg
	return asg, nil
}

func (repo *courseRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Assignment, error) {
	repo.adb.RLock()
	defer repo.adb.RUnlock()

	if asg, ok := repo.adb.table[id]; ok {
		return *asg, nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, courseID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Assignment, error) {
	repo.adb.RLock()
	defer repo.adb.RUnlock()

	var asgs []course.Assignment
	for _, asg := range repo.queryAssignments() {
		if asg.CourseID == courseID {
			asgs = append(asgs, asg)
		}
	}

	if len(ordering) > 0 && ordering[0].Field == "due_date" {
		asc := ordering[0].Ascending
		sort.Slice(asgs, func(i, j int) bool {
			if asc {
				return asgs[i].DueDate.Before(asgs[j].DueDate)
			}
			return asgs[i].DueDate.After(asgs[j].DueDate)
		})
	}
	return asgs, nil
}

func (repo *courseRepository) UpdateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	repo.adb.Lock()
	defer repo.adb.Unlock()

	orig, ok := repo.adb.table[asg.ID]
	if !ok {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	orig.Name = asg.Name
	orig.Description = asg.Description
	orig.DueDate = asg.DueDate
	orig.MaxSubmissions = asg.MaxSubmissions
	orig.AllowLateSubmissions = asg.AllowLateSubmissions
	orig.Points = asg.Points
	orig.Rubric = asg.Rubric
	orig.IsPublished = asg.IsPublished
	orig.UpdatedAt = asg.UpdatedAt

	repo.adb.table[asg.ID] = orig
	return *orig, nil
}
