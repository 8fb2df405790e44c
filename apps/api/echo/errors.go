package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
)

var (
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errCredentialsDelivery  = "credentials were saved but the email could not be delivered; use resend-credentials to retry"
	internalServerErrorText = http.StatusText(http.StatusInternalServerError)
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(deps ServerDeps, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
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
				fldErrs[vErr.Field()] = vErr.Translate(deps.Translator)
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
		case *core.ConflictError:
			code = http.StatusConflict
			if origErr.Field != "" {
				message = map[string]string{origErr.Field: origErr.Error()}
			} else {
				message = origErr.Error()
			}
		default:
			switch errors.Cause(err) {
			case franchise.ErrNotFound:
				code = errHTTPNotFound.Code
				message = errHTTPNotFound.Message
			case franchise.ErrEmailExists, franchise.ErrMobileExists:
				code = http.StatusConflict
				message = errors.Cause(err).Error()
			case franchise.ErrCredentialsEmailFailed:
				code = http.StatusInternalServerError
				message = errCredentialsDelivery
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = internalServerErrorText

				deps.Logger.Error(internalServerErrorText, errors.Wrap(err, internalServerErrorText))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
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
