package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/user"
)

func Test_courseApi_create(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "professor", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)

	body := marshallObj(t, course.NewCourse{Code: "go101", Name: "Intro to Go"})

	tests := []httpTest{
		{name: "auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "professor only", body: body, token: getToken(t, student), wantCode: http.StatusForbidden},
		{name: "ok", body: body, token: getToken(t, prof), wantCode: http.StatusCreated},
		{name: "duplicate code", body: body, token: getToken(t, prof), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "professor", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)

	env.createCourse(t, prof.ID, "go101", true)
	env.createCourse(t, prof.ID, "go201", false) // draft

	list := func(t *testing.T, token string) []course.Course {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling courses: %v", err)
		}
		return courses
	}

	t.Run("students only see published courses", func(t *testing.T) {
		courses := list(t, getToken(t, student))
		if len(courses) != 1 {
			t.Fatalf("got %d courses, want 1", len(courses))
		}
		if courses[0].Code != "go101" {
			t.Errorf("got course %s, want go101", courses[0].Code)
		}
	})

	t.Run("professors see drafts", func(t *testing.T) {
		courses := list(t, getToken(t, prof))
		if len(courses) != 2 {
			t.Fatalf("got %d courses, want 2", len(courses))
		}
	})
}

func Test_courseApi_update(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "professor", user.ProfessorRoles)
	otherProf := env.createUser(t, "Other", "otherprof", user.ProfessorRoles)
	crs := env.createCourse(t, prof.ID, "go101", true)

	body := marshallObj(t, course.UpdateCourse{Name: "Advanced Go"})

	tests := []httpTest{
		{name: "only the owner may update", body: body, token: getToken(t, otherProf), wantCode: http.StatusForbidden},
		{name: "ok", body: body, token: getToken(t, prof), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, tt.token, tt.body)
			env.server.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, wantCode %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	updated, err := env.courseSvc.GetByID(crs.ID)
	if err != nil {
		t.Fatalf("GetByID() failed, %v", err)
	}
	if updated.Name != "Advanced Go" {
		t.Errorf("name = %s, want Advanced Go", updated.Name)
	}
}

func Test_courseApi_assignments(t *testing.T) {
	env := setup(t)

	prof := env.createUser(t, "Prof", "professor", user.ProfessorRoles)
	student := env.createUser(t, "Student", "student", user.StudentRoles)
	crs := env.createCourse(t, prof.ID, "go101", true)

	env.createAssignment(t, crs, 3, true)
	env.createAssignment(t, crs, 3, false) // draft

	list := func(t *testing.T, token string) []course.Assignment {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/assignments", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var assignments []course.Assignment
		if err := json.Unmarshal(rec.Body.Bytes(), &assignments); err != nil {
			t.Fatalf("unmarshalling assignments: %v", err)
		}
		return assignments
	}

	t.Run("students only see published assignments", func(t *testing.T) {
		if got := len(list(t, getToken(t, student))); got != 1 {
			t.Errorf("got %d assignments, want 1", got)
		}
	})

	t.Run("the owner sees drafts", func(t *testing.T) {
		if got := len(list(t, getToken(t, prof))); got != 2 {
			t.Errorf("got %d assignments, want 2", got)
		}
	})

	t.Run("students may not create", func(t *testing.T) {
		body := marshallObj(t, course.NewAssignment{Name: "HW3", MaxSubmissions: 1})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/assignments", getToken(t, student), body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})
}
