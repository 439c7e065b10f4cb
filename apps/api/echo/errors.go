package echoapi

import (
	"net/http"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tchimanga/darasa/core"
	"github.com/tchimanga/darasa/core/course"
	"github.com/tchimanga/darasa/core/enrollment"
	"github.com/tchimanga/darasa/core/submission"
	"github.com/tchimanga/darasa/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrStatus maps known business errors to HTTP status codes.
// Conflicts with current state map to 409; requests that are well-formed
// but unprocessable under business rules map to 422.
var domainErrStatus = map[error]int{
	user.ErrNotFound:                 http.StatusNotFound,
	course.ErrNotFound:               http.StatusNotFound,
	course.ErrAssignmentNotFound:     http.StatusNotFound,
	enrollment.ErrRequestNotFound:    http.StatusNotFound,
	submission.ErrNotFound:           http.StatusNotFound,
	submission.ErrAssignmentNotFound: http.StatusNotFound,
	course.ErrNotOwner:               http.StatusForbidden,
	submission.ErrNotEnrolled:        http.StatusForbidden,
	enrollment.ErrAlreadyEnrolled:    http.StatusConflict,
	enrollment.ErrRequestPending:     http.StatusConflict,
	enrollment.ErrAlreadyProcessed:   http.StatusConflict,
	submission.ErrLimitExceeded:      http.StatusUnprocessableEntity,
	submission.ErrDeadlinePassed:     http.StatusUnprocessableEntity,
	submission.ErrInvalidTransition:  http.StatusUnprocessableEntity,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		var status int
		var known bool
		// Only comparable errors can be map keys; unhashable error types
		// (e.g. validator.ValidationErrors, a slice) would panic on lookup.
		if t := reflect.TypeOf(cause); t != nil && t.Comparable() {
			status, known = domainErrStatus[cause]
		}
		if known {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
