package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/enrollment"
	"github.com/tchimanga/darasa/core/submission"
	"github.com/tchimanga/darasa/core/user"
	emailsvc "github.com/tchimanga/darasa/services/email"
	queuesvc "github.com/tchimanga/darasa/services/queue"
	inmemdb "github.com/tchimanga/darasa/storage/database/inmem"
)

type testEnv struct {
	usrSvc    user.Service
	courseSvc course.Service
	enrollSvc enrollment.Service
	subSvc    submission.Service
	queueSvc  *queuesvc.ServiceMock
}

func setup(t *testing.T, wrapRepo ...func(submission.Repository) submission.Repository) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}

	conf := &core.Config{
		AppName:                   "Darasa",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmailAddr:      "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	queueSvc := queuesvc.NewServiceMock()
	usrSvc := user.NewServiceMock(db, inmemdb.NewUserRepository(db), mailSvc, conf)
	courseSvc := course.NewService(db, inmemdb.NewCourseRepository(db))
	enrollSvc := enrollment.NewService(db, inmemdb.NewEnrollmentRepository(db), courseSvc, usrSvc, mailSvc, conf)

	var repo submission.Repository = inmemdb.NewSubmissionRepository(db)
	for _, wrap := range wrapRepo {
		repo = wrap(repo)
	}
	subSvc := submission.NewService(db, repo, courseSvc, enrollSvc, usrSvc, mailSvc, queueSvc, conf)

	return &testEnv{
		usrSvc:    usrSvc,
		courseSvc: courseSvc,
		enrollSvc: enrollSvc,
		subSvc:    subSvc,
		queueSvc:  queueSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, name, uname string, roles []string) user.User {
	t.Helper()

	usr, err := env.usrSvc.Create(user.NewUser{
		Name:     name,
		Username: uname,
		Email:    uname + "@test.cd",
		Password: "!ComplicatedPwd8",
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return usr
}

func (env *testEnv) createCourse(t *testing.T, professorID, code string) course.Course {
	t.Helper()

	crs, err := env.courseSvc.Create(professorID, course.NewCourse{Code: code, Name: "Course " + code})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	published := true
	crs, err = env.courseSvc.Update(crs.ID, professorID, course.UpdateCourse{Name: crs.Name, IsPublished: &published})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	return crs
}

func (env *testEnv) createAssignment(t *testing.T, crs course.Course, na course.NewAssignment) course.Assignment {
	t.Helper()

	if na.Name == "" {
		na.Name = "Assignment"
	}
	if na.DueDate.IsZero() {
		na.DueDate = time.Now().UTC().Add(24 * time.Hour)
	}
	if na.MaxSubmissions == 0 {
		na.MaxSubmissions = 3
	}
	na.IsPublished = true

	asg, err := env.courseSvc.CreateAssignment(crs.ID, crs.ProfessorID, na)
	if err != nil {
		t.Fatalf("CreateAssignment() failed, %v", err)
	}
	return asg
}

func (env *testEnv) enroll(t *testing.T, studentID, courseID string) {
	t.Helper()

	if _, err := env.enrollSvc.Enroll(studentID, courseID); err != nil {
		t.Fatalf("Enroll() failed, %v", err)
	}
}

func Test_service_Create(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)
	outsider := env.createUser(t, "Outsider", "outsider", user.StudentRoles)
	crs := env.createCourse(t, prof.ID, "go101")
	asg := env.createAssignment(t, crs, course.NewAssignment{MaxSubmissions: 2})
	env.enroll(t, student.ID, crs.ID)

	t.Run("assignment not found", func(t *testing.T) {
		_, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: "60a8dca6-9e6f-4541-a9ce-21b1a2e5b5a2",
			RepoURL:      "https://github.com/student/sol",
		})
		if errors.Cause(err) != submission.ErrAssignmentNotFound {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrAssignmentNotFound)
		}
	})

	t.Run("unpublished assignment is invisible", func(t *testing.T) {
		hidden, err := env.courseSvc.CreateAssignment(crs.ID, prof.ID, course.NewAssignment{
			Name:           "Hidden",
			DueDate:        time.Now().UTC().Add(24 * time.Hour),
			MaxSubmissions: 1,
		})
		if err != nil {
			t.Fatalf("CreateAssignment() failed, %v", err)
		}

		_, err = env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: hidden.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if errors.Cause(err) != submission.ErrAssignmentNotFound {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrAssignmentNotFound)
		}
	})

	t.Run("not enrolled", func(t *testing.T) {
		_, err := env.subSvc.Create(outsider.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/outsider/sol",
		})
		if errors.Cause(err) != submission.ErrNotEnrolled {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrNotEnrolled)
		}
	})

	t.Run("attempts are dense and capped", func(t *testing.T) {
		sub1, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		if sub1.AttemptNumber != 1 {
			t.Errorf("Create() attempt = %d, want 1", sub1.AttemptNumber)
		}
		if sub1.Status != submission.StatusPending {
			t.Errorf("Create() status = %s, want %s", sub1.Status, submission.StatusPending)
		}
		if sub1.IsLate {
			t.Error("Create() flagged an on-time submission late")
		}

		sub2, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		if sub2.AttemptNumber != 2 {
			t.Errorf("Create() attempt = %d, want 2", sub2.AttemptNumber)
		}

		_, err = env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if errors.Cause(err) != submission.ErrLimitExceeded {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrLimitExceeded)
		}

		events := env.queueSvc.Events()
		if len(events) != 2 {
			t.Fatalf("published %d grading events, want 2", len(events))
		}
		if events[0].SubmissionID != sub1.ID || events[1].SubmissionID != sub2.ID {
			t.Error("grading events do not match the accepted submissions")
		}
	})
}

// racingSubmissionRepo makes the first CreateSubmission lose an attempt-number
// race: it persists the winning row, then reports the uniqueness conflict.
// Later calls go straight through.
type racingSubmissionRepo struct {
	submission.Repository
	raced bool
}

func (repo *racingSubmissionRepo) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	if !repo.raced {
		repo.raced = true
		if _, err := repo.Repository.CreateSubmission(ctx, sub, exec...); err != nil {
			return submission.Submission{}, err
		}
		return submission.Submission{}, submission.ErrAttemptExists
	}
	return repo.Repository.CreateSubmission(ctx, sub, exec...)
}

// conflictSubmissionRepo reports the uniqueness conflict from every
// CreateSubmission call.
type conflictSubmissionRepo struct {
	submission.Repository
	calls int
}

func (repo *conflictSubmissionRepo) CreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.calls++
	return submission.Submission{}, submission.ErrAttemptExists
}

func Test_service_Create_attemptRace(t *testing.T) {
	t.Run("lost race is retried with a fresh count", func(t *testing.T) {
		repo := &racingSubmissionRepo{}
		env := setup(t, func(inner submission.Repository) submission.Repository {
			repo.Repository = inner
			return repo
		})

		prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
		student := env.createUser(t, "Student", "student", user.StudentRoles)
		crs := env.createCourse(t, prof.ID, "go101")
		asg := env.createAssignment(t, crs, course.NewAssignment{MaxSubmissions: 3})
		env.enroll(t, student.ID, crs.ID)

		sub, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		// the racer took attempt 1, the retried insert must recount
		if sub.AttemptNumber != 2 {
			t.Errorf("Create() attempt = %d, want 2", sub.AttemptNumber)
		}

		subs, err := env.subSvc.QueryByStudent(student.ID, asg.ID)
		if err != nil {
			t.Fatalf("QueryByStudent() failed, %v", err)
		}
		if len(subs) != 2 {
			t.Fatalf("got %d submissions, want 2", len(subs))
		}
	})

	t.Run("a second consecutive conflict is surfaced", func(t *testing.T) {
		repo := &conflictSubmissionRepo{}
		env := setup(t, func(inner submission.Repository) submission.Repository {
			repo.Repository = inner
			return repo
		})

		prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
		student := env.createUser(t, "Student", "student", user.StudentRoles)
		crs := env.createCourse(t, prof.ID, "go101")
		asg := env.createAssignment(t, crs, course.NewAssignment{MaxSubmissions: 3})
		env.enroll(t, student.ID, crs.ID)

		_, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if errors.Cause(err) != submission.ErrAttemptExists {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrAttemptExists)
		}
		if repo.calls != 2 {
			t.Errorf("CreateSubmission() called %d times, want 2", repo.calls)
		}
		if events := env.queueSvc.Events(); len(events) != 0 {
			t.Errorf("published %d grading events, want 0", len(events))
		}
	})
}

func Test_service_Create_deadline(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)
	crs := env.createCourse(t, prof.ID, "go101")
	env.enroll(t, student.ID, crs.ID)

	pastDue := time.Now().UTC().Add(-time.Hour)

	t.Run("late submissions denied", func(t *testing.T) {
		asg := env.createAssignment(t, crs, course.NewAssignment{Name: "Strict", DueDate: pastDue})

		_, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if errors.Cause(err) != submission.ErrDeadlinePassed {
			t.Errorf("Create() error = %v, want %v", err, submission.ErrDeadlinePassed)
		}
	})

	t.Run("late submissions allowed and flagged", func(t *testing.T) {
		asg := env.createAssignment(t, crs, course.NewAssignment{
			Name:                 "Lenient",
			DueDate:              pastDue,
			AllowLateSubmissions: true,
		})

		sub, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		if !sub.IsLate {
			t.Error("Create() did not flag a late submission")
		}
	})
}

func Test_service_UpdateStatus(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)
	crs := env.createCourse(t, prof.ID, "go101")
	asg := env.createAssignment(t, crs, course.NewAssignment{})
	env.enroll(t, student.ID, crs.ID)

	sub, err := env.subSvc.Create(student.ID, submission.NewSubmission{
		AssignmentID: asg.ID,
		RepoURL:      "https://github.com/student/sol",
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	grade := 85.5

	t.Run("pending cannot complete directly", func(t *testing.T) {
		_, err := env.subSvc.UpdateStatus(sub.ID, submission.StatusUpdate{Status: submission.StatusCompleted, Grade: &grade})
		if errors.Cause(err) != submission.ErrInvalidTransition {
			t.Errorf("UpdateStatus() error = %v, want %v", err, submission.ErrInvalidTransition)
		}
	})

	t.Run("pending to grading", func(t *testing.T) {
		updated, err := env.subSvc.UpdateStatus(sub.ID, submission.StatusUpdate{Status: submission.StatusGrading})
		if err != nil {
			t.Fatalf("UpdateStatus() failed, %v", err)
		}
		if updated.Status != submission.StatusGrading {
			t.Errorf("UpdateStatus() status = %s, want %s", updated.Status, submission.StatusGrading)
		}
	})

	t.Run("grading to completed records the grade", func(t *testing.T) {
		updated, err := env.subSvc.UpdateStatus(sub.ID, submission.StatusUpdate{
			Status:       submission.StatusCompleted,
			Grade:        &grade,
			GraderOutput: "all tests passed",
		})
		if err != nil {
			t.Fatalf("UpdateStatus() failed, %v", err)
		}
		if updated.Grade == nil || *updated.Grade != grade {
			t.Errorf("UpdateStatus() grade = %v, want %v", updated.Grade, grade)
		}
		if updated.GraderOutput != "all tests passed" {
			t.Errorf("UpdateStatus() graderOutput = %q", updated.GraderOutput)
		}
	})

	t.Run("completed is terminal", func(t *testing.T) {
		_, err := env.subSvc.UpdateStatus(sub.ID, submission.StatusUpdate{Status: submission.StatusGrading})
		if errors.Cause(err) != submission.ErrInvalidTransition {
			t.Errorf("UpdateStatus() error = %v, want %v", err, submission.ErrInvalidTransition)
		}
	})

	t.Run("grading to failed", func(t *testing.T) {
		failing, err := env.subSvc.Create(student.ID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		if _, err = env.subSvc.UpdateStatus(failing.ID, submission.StatusUpdate{Status: submission.StatusGrading}); err != nil {
			t.Fatalf("UpdateStatus() failed, %v", err)
		}

		updated, err := env.subSvc.UpdateStatus(failing.ID, submission.StatusUpdate{
			Status:       submission.StatusFailed,
			GraderOutput: "build failed",
		})
		if err != nil {
			t.Fatalf("UpdateStatus() failed, %v", err)
		}
		if updated.Status != submission.StatusFailed {
			t.Errorf("UpdateStatus() status = %s, want %s", updated.Status, submission.StatusFailed)
		}
		if updated.Grade != nil {
			t.Errorf("UpdateStatus() grade = %v, want nil", updated.Grade)
		}
	})
}

func Test_service_Query(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "prof", user.ProfessorRoles)
	otherProf := env.createUser(t, "Other", "other", user.ProfessorRoles)
	st1 := env.createUser(t, "Student 1", "student1", user.StudentRoles)
	st2 := env.createUser(t, "Student 2", "student2", user.StudentRoles)
	crs := env.createCourse(t, prof.ID, "go101")
	asg := env.createAssignment(t, crs, course.NewAssignment{})
	env.enroll(t, st1.ID, crs.ID)
	env.enroll(t, st2.ID, crs.ID)

	for _, studentID := range []string{st1.ID, st2.ID, st1.ID} {
		if _, err := env.subSvc.Create(studentID, submission.NewSubmission{
			AssignmentID: asg.ID,
			RepoURL:      "https://github.com/student/sol",
		}); err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
	}

	t.Run("by assignment is owner scoped", func(t *testing.T) {
		if _, err := env.subSvc.QueryByAssignment(asg.ID, otherProf.ID); errors.Cause(err) != course.ErrNotOwner {
			t.Errorf("QueryByAssignment() error = %v, want %v", err, course.ErrNotOwner)
		}

		subs, err := env.subSvc.QueryByAssignment(asg.ID, prof.ID)
		if err != nil {
			t.Fatalf("QueryByAssignment() failed, %v", err)
		}
		if len(subs) != 3 {
			t.Errorf("QueryByAssignment() returned %d submissions, want 3", len(subs))
		}
	})

	t.Run("by student returns own attempts only", func(t *testing.T) {
		subs, err := env.subSvc.QueryByStudent(st1.ID, asg.ID)
		if err != nil {
			t.Fatalf("QueryByStudent() failed, %v", err)
		}
		if len(subs) != 2 {
			t.Fatalf("QueryByStudent() returned %d submissions, want 2", len(subs))
		}
		for _, sub := range subs {
			if sub.StudentID != st1.ID {
				t.Errorf("QueryByStudent() leaked a submission of %s", sub.StudentID)
			}
		}
	})
}
