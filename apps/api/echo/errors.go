package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/user"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
		"message":        "No token provided. Authorization denied",
		"displayMessage": "Log in first",
	})
	errRefreshExpired  = echo.NewHTTPError(http.StatusUnauthorized, "refresh has expired")
	errUserNotFound    = echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": "User not found"})
	errInvalidBody     = echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Invalid request body"})
	errRestoNotFound   = echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": "Restaurant not found"})
	errPageNotFound    = echo.NewHTTPError(http.StatusNotFound, echo.Map{"message": "Page not found"})
	errAlreadyRated    = echo.NewHTTPError(http.StatusConflict, echo.Map{"message": "You have already submitted this rating"})
	errLoginFailed     = echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"message": "Invalid username or password", "error": "auth.login.wrong"})
	errUserExists      = echo.NewHTTPError(http.StatusConflict, echo.Map{"error": "auth.register.alreadyExist"})
	errIncorrectOldPwd = echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
		"message":        "Old password is not correct",
		"displayMessage": "auth.changeProfileSettings.incorrectOldPassword",
	})
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = errUnauthorized.Code
				message = errUnauthorized.Message
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
				usr.ID = claims.UserID
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
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
