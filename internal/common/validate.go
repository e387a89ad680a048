package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance. Field names in errors use
// the json tag of the failing field.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs struct validation and converts the first failure into a
// VALIDATION_ERROR carrying every failing field.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewAppError(CodeValidation, "invalid payload", http.StatusBadRequest, err)
	}
	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, map[string]string{"field": fe.Namespace(), "rule": fe.Tag()})
	}
	first := verrs[0]
	return &AppError{
		Code:       CodeValidation,
		Message:    first.Field() + " is " + describeRule(first.Tag()),
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": first.Field(), "errors": fields},
	}
}

// Decode decodes the request body into dst without validating it.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return NewAppError(CodeBadRequest, "request body is required", http.StatusBadRequest, nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewAppError(CodeBadRequest, "invalid request payload", http.StatusBadRequest, err)
	}
	return nil
}

// DecodeJSON decodes the request body into dst and validates it.
func DecodeJSON(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return ValidateStruct(dst)
}

func describeRule(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "not an allowed value"
	default:
		return "invalid"
	}
}
