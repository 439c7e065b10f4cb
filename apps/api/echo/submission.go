package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core/submission"
)

type submissionApi struct {
	deps ServerDeps
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{deps: deps}

	sg := g.Group("/submissions", jwt)
	sg.POST("", api.create, studentMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.PATCH("/:id/status", api.updateStatus, adminMiddleware())

	ag := g.Group("/assignments/:id/submissions", jwt)
	ag.GET("", api.queryByAssignment, professorMiddleware())
	ag.GET("/mine", api.queryMine, studentMiddleware())
}

// Handlers

func (api *submissionApi) create(ctx echo.Context) error {
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.deps.SubmissionSvc.Create(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

// retrieve returns the submission to its owning student, the professor owning
// the course, or an admin. Anyone else gets a 404 rather than a 403 so the
// submission's existence is not leaked.
func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, err := api.deps.SubmissionSvc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding submission by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin || sub.StudentID == claims.Subject {
		return ctx.JSON(http.StatusOK, sub)
	}
	if claims.IsProfessor {
		asg, err := api.deps.CourseSvc.GetAssignment(sub.AssignmentID)
		if err != nil {
			return errors.Wrap(err, "finding assignment by ID")
		}
		if err := api.deps.CourseSvc.AssertOwner(asg.CourseID, claims.Subject); err == nil {
			return ctx.JSON(http.StatusOK, sub)
		}
	}
	return errHttpNotFound
}

func (api *submissionApi) updateStatus(ctx echo.Context) error {
	var data submission.StatusUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sub, err := api.deps.SubmissionSvc.UpdateStatus(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating submission status")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) queryByAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.deps.SubmissionSvc.QueryByAssignment(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) queryMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.deps.SubmissionSvc.QueryByStudent(claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}
