package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "storegate/pkg/domain-errors"
	s "storegate/pkg/string"
)

var (
	defaultValidator = newValidator()

	glnPattern    = regexp.MustCompile(`^[0-9]{13}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{4}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("gln", func(fl validator.FieldLevel) bool {
		return glnPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return postalPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate validates a struct using the default validator and returns a domain error
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeInvalidArgument, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a human-readable message
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request parameters"
	}

	fe := validationErrs[0]
	fieldName := fe.Field()
	if fieldName == "" {
		fieldName = fe.StructField()
	}
	field := s.ToSnakeCase(fieldName)

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "gln":
		return fmt.Sprintf("%s must be a 13 digit GLN", field)
	case "postalcode":
		return fmt.Sprintf("%s must be a 4 digit postal code", field)
	default:
		if field == "" {
			return "invalid request parameters"
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}
