package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ReadAndValidateRequest binds query and body into req, fills `default` tags
// and validates it. It returns nil or the list of field errors.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]ValidationError, 0, len(ves))
		for _, fe := range ves {
			out = append(out, fieldError(fe))
		}
		return out
	}
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

func fieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: fe.Field()}
	switch fe.Tag() {
	case "required":
		ve.Message = fe.Field() + " is required"
	case "oneof":
		opts := strings.Fields(fe.Param())
		ve.Message = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(opts, ", "))
		ve.Params = map[string]interface{}{"options": opts}
	case "min", "gte":
		ve.Message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		ve.Params = map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		ve.Message = fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
		ve.Params = map[string]interface{}{"max": fe.Param()}
	default:
		ve.Message = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return ve
}
