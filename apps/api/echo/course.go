package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core/course"
)

type courseApi struct {
	deps ServerDeps
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{deps: deps}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, professorMiddleware())
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, professorMiddleware())
	cg.POST("/:id/assignments", api.createAssignment, professorMiddleware())
	cg.GET("/:id/assignments", api.queryAssignments)
	cg.GET("/:id/enrollments", api.queryEnrollments, professorMiddleware())

	ag := g.Group("/assignments", jwt)
	ag.GET("/:id", api.retrieveAssignment)
	ag.PUT("/:id", api.updateAssignment, professorMiddleware())
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.deps.CourseSvc.Create(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// students only see published courses
	if !(claims.IsProfessor || claims.IsAdmin) {
		published := true
		filter.IsPublished = &published
	}

	courses, err := api.deps.CourseSvc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.deps.CourseSvc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !crs.IsPublished && !claims.IsAdmin && crs.ProfessorID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.deps.CourseSvc.GetOwned(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding owned course")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(crs, api.deps.Validate); err != nil {
		return err
	}

	crs, err = api.deps.CourseSvc.Update(crs.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asg, err := api.deps.CourseSvc.CreateAssignment(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *courseApi) queryAssignments(ctx echo.Context) error {
	crs, err := api.deps.CourseSvc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	isOwnerOrAdmin := claims.IsAdmin || crs.ProfessorID == claims.Subject
	if !crs.IsPublished && !isOwnerOrAdmin {
		return errHttpNotFound
	}

	assignments, err := api.deps.CourseSvc.QueryAssignments(crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	// students only see published assignments
	if !isOwnerOrAdmin {
		published := assignments[:0]
		for _, asg := range assignments {
			if asg.IsPublished {
				published = append(published, asg)
			}
		}
		assignments = published
	}
	if assignments == nil {
		assignments = []course.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enrollments, err := api.deps.EnrollSvc.ListEnrollments(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *courseApi) retrieveAssignment(ctx echo.Context) error {
	asg, err := api.deps.CourseSvc.GetAssignment(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !asg.IsPublished && !(claims.IsProfessor || claims.IsAdmin) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *courseApi) updateAssignment(ctx echo.Context) error {
	asg, err := api.deps.CourseSvc.GetAssignment(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}

	var data course.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(asg, api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	asg, err = api.deps.CourseSvc.UpdateAssignment(asg.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}
