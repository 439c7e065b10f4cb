package echoapi_test

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/tchimanga/darasa/apps/api/echo"
	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/enrollment"
	"github.com/tchimanga/darasa/core/submission"
	"github.com/tchimanga/darasa/core/user"
	emailsvc "github.com/tchimanga/darasa/services/email"
	logsvc "github.com/tchimanga/darasa/services/logger"
	queuesvc "github.com/tchimanga/darasa/services/queue"
	inmemdb "github.com/tchimanga/darasa/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	server    echoapi.Server
	usrSvc    user.Service
	courseSvc course.Service
	enrollSvc enrollment.Service
	subSvc    submission.Service
	queueSvc  *queuesvc.ServiceMock
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}

	conf := &core.Config{
		AppName:                   "Darasa",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmailAddr:      "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Addr:                      ":0",
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	queueSvc := queuesvc.NewServiceMock()
	usrSvc := user.NewServiceMock(db, inmemdb.NewUserRepository(db), mailSvc, conf)
	courseSvc := course.NewService(db, inmemdb.NewCourseRepository(db))
	enrollSvc := enrollment.NewService(db, inmemdb.NewEnrollmentRepository(db), courseSvc, usrSvc, mailSvc, conf)
	subSvc := submission.NewService(
		db, inmemdb.NewSubmissionRepository(db), courseSvc, enrollSvc, usrSvc, mailSvc, queueSvc, conf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			CourseSvc:      courseSvc,
			EnrollSvc:      enrollSvc,
			SubmissionSvc:  subSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)

	return &testEnv{
		server:    server,
		usrSvc:    usrSvc,
		courseSvc: courseSvc,
		enrollSvc: enrollSvc,
		subSvc:    subSvc,
		queueSvc:  queueSvc,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
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

func (env *testEnv) createCourse(t *testing.T, professorID, code string, published bool) course.Course {
	t.Helper()

	crs, err := env.courseSvc.Create(professorID, course.NewCourse{Code: code, Name: "Course " + code})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if published {
		crs, err = env.courseSvc.Update(crs.ID, professorID, course.UpdateCourse{Name: crs.Name, IsPublished: &published})
		if err != nil {
			t.Fatalf("Update() failed, %v", err)
		}
	}
	return crs
}

func (env *testEnv) createAssignment(t *testing.T, crs course.Course, maxSubs int, published bool) course.Assignment {
	t.Helper()

	asg, err := env.courseSvc.CreateAssignment(crs.ID, crs.ProfessorID, course.NewAssignment{
		Name:           "HW",
		DueDate:        time.Now().UTC().Add(24 * time.Hour),
		MaxSubmissions: maxSubs,
		IsPublished:    published,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed, %v", err)
	}
	return asg
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
