package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core/enrollment"
)

type enrollmentApi struct {
	deps ServerDeps
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollmentApi{deps: deps}

	rg := g.Group("/enrollment-requests", jwt)
	rg.POST("", api.request, studentMiddleware())
	rg.POST("/:id/approve", api.approve, professorMiddleware())
	rg.POST("/:id/reject", api.reject, professorMiddleware())

	g.GET("/courses/:id/enrollment-requests", api.queryPending, jwt, professorMiddleware())
}

// Handlers

func (api *enrollmentApi) request(ctx echo.Context) error {
	var data enrollment.NewEnrollmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollmentRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	req, err := api.deps.EnrollSvc.Request(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "requesting enrollment")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *enrollmentApi) approve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	req, err := api.deps.EnrollSvc.Approve(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "approving enrollment request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	req, err := api.deps.EnrollSvc.Reject(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *enrollmentApi) queryPending(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reqs, err := api.deps.EnrollSvc.ListPending(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing pending requests")
	}
	if reqs == nil {
		reqs = []enrollment.EnrollmentRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}
