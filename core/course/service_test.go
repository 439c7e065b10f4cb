package course_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	inmemdb "github.com/tchimanga/darasa/storage/database/inmem"
)

func setup(t *testing.T) course.Service {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	return course.NewService(db, inmemdb.NewCourseRepository(db))
}

func createCourse(t *testing.T, svc course.Service, professorID, code string) course.Course {
	t.Helper()

	crs, err := svc.Create(professorID, course.NewCourse{Code: code, Name: "Course " + code})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return crs
}

func Test_service_Create(t *testing.T) {
	svc := setup(t)

	crs := createCourse(t, svc, "prof-1", "go101")
	if crs.ID == "" {
		t.Error("Create() did not set ID")
	}
	if crs.IsPublished {
		t.Error("Create() must default to unpublished")
	}
	if crs.ProfessorID != "prof-1" {
		t.Errorf("Create() professorID = %s, want prof-1", crs.ProfessorID)
	}

	if err := svc.CheckCodeUniqueness("go101"); err == nil {
		t.Error("CheckCodeUniqueness() passed for a taken code")
	} else if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("CheckCodeUniqueness() error = %v, want *core.ValidationError", err)
	}
}

func Test_service_Update(t *testing.T) {
	svc := setup(t)

	crs := createCourse(t, svc, "prof-1", "go101")

	t.Run("only the owner may update", func(t *testing.T) {
		_, err := svc.Update(crs.ID, "prof-2", course.UpdateCourse{Name: "Hijacked"})
		if errors.Cause(err) != course.ErrNotOwner {
			t.Errorf("Update() error = %v, want %v", err, course.ErrNotOwner)
		}
	})

	t.Run("ok", func(t *testing.T) {
		published := true
		updated, err := svc.Update(crs.ID, "prof-1", course.UpdateCourse{
			Name:        "Intro to Go",
			Description: "From zero to gopher",
			IsPublished: &published,
		})
		if err != nil {
			t.Fatalf("Update() failed, %v", err)
		}
		if updated.Name != "Intro to Go" {
			t.Errorf("Update() name = %s", updated.Name)
		}
		if !updated.IsPublished {
			t.Error("Update() did not publish the course")
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Update("60a8dca6-9e6f-4541-a9ce-21b1a2e5b5a2", "prof-1", course.UpdateCourse{Name: "Ghost"})
		if errors.Cause(err) != course.ErrNotFound {
			t.Errorf("Update() error = %v, want %v", err, course.ErrNotFound)
		}
	})
}

func Test_service_Query(t *testing.T) {
	svc := setup(t)

	createCourse(t, svc, "prof-1", "go101")
	createCourse(t, svc, "prof-1", "go201")
	crs := createCourse(t, svc, "prof-2", "rust101")

	published := true
	if _, err := svc.Update(crs.ID, "prof-2", course.UpdateCourse{Name: crs.Name, IsPublished: &published}); err != nil {
		t.Fatalf("Update() failed, %v", err)
	}

	tests := []struct {
		name   string
		filter *course.QueryFilter
		want   int
	}{
		{name: "all", filter: &course.QueryFilter{}, want: 3},
		{name: "by professor", filter: &course.QueryFilter{ProfessorID: "prof-1"}, want: 2},
		{name: "published only", filter: &course.QueryFilter{IsPublished: &published}, want: 1},
		{name: "by search", filter: &course.QueryFilter{Search: "rust"}, want: 1},
		{name: "no match", filter: &course.QueryFilter{Search: "cobol"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := svc.Query(tt.filter, nil)
			if err != nil {
				t.Fatalf("Query() failed, %v", err)
			}
			if len(courses) != tt.want {
				t.Errorf("Query() returned %d courses, want %d", len(courses), tt.want)
			}
		})
	}
}

func Test_service_Assignments(t *testing.T) {
	svc := setup(t)

	crs := createCourse(t, svc, "prof-1", "go101")
	due := time.Now().UTC().Add(24 * time.Hour)

	t.Run("only the owner may create", func(t *testing.T) {
		_, err := svc.CreateAssignment(crs.ID, "prof-2", course.NewAssignment{
			Name:           "HW1",
			DueDate:        due,
			MaxSubmissions: 3,
		})
		if errors.Cause(err) != course.ErrNotOwner {
			t.Errorf("CreateAssignment() error = %v, want %v", err, course.ErrNotOwner)
		}
	})

	asg, err := svc.CreateAssignment(crs.ID, "prof-1", course.NewAssignment{
		Name:           "HW1",
		DueDate:        due,
		MaxSubmissions: 3,
		Points:         20,
		Rubric: course.Rubric{
			{Title: "Correctness", Weight: 70},
			{Title: "Style", Weight: 30},
		},
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed, %v", err)
	}
	if asg.ID == "" {
		t.Error("CreateAssignment() did not set ID")
	}
	if len(asg.Rubric) != 2 {
		t.Errorf("CreateAssignment() rubric has %d criteria, want 2", len(asg.Rubric))
	}

	t.Run("update", func(t *testing.T) {
		maxSubs := 5
		published := true
		updated, err := svc.UpdateAssignment(asg.ID, "prof-1", course.UpdateAssignment{
			Name:           asg.Name,
			MaxSubmissions: &maxSubs,
			IsPublished:    &published,
		})
		if err != nil {
			t.Fatalf("UpdateAssignment() failed, %v", err)
		}
		if updated.MaxSubmissions != maxSubs {
			t.Errorf("UpdateAssignment() maxSubmissions = %d, want %d", updated.MaxSubmissions, maxSubs)
		}
		if !updated.IsPublished {
			t.Error("UpdateAssignment() did not publish the assignment")
		}

		if _, err = svc.UpdateAssignment(asg.ID, "prof-2", course.UpdateAssignment{Name: asg.Name}); errors.Cause(err) != course.ErrNotOwner {
			t.Errorf("UpdateAssignment() error = %v, want %v", err, course.ErrNotOwner)
		}
	})

	t.Run("query ordered by due date", func(t *testing.T) {
		later, err := svc.CreateAssignment(crs.ID, "prof-1", course.NewAssignment{
			Name:           "HW2",
			DueDate:        due.Add(48 * time.Hour),
			MaxSubmissions: 3,
		})
		if err != nil {
			t.Fatalf("CreateAssignment() failed, %v", err)
		}

		assignments, err := svc.QueryAssignments(crs.ID)
		if err != nil {
			t.Fatalf("QueryAssignments() failed, %v", err)
		}
		if len(assignments) != 2 {
			t.Fatalf("QueryAssignments() returned %d assignments, want 2", len(assignments))
		}
		if assignments[0].ID != asg.ID || assignments[1].ID != later.ID {
			t.Error("QueryAssignments() is not ordered by due date")
		}
	})
}
