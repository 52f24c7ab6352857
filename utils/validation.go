package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"example.com/backstage/services/saga/domain"
)

var (
	validate    *validator.Validate
	uuidPattern = regexp.MustCompile("^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$")
)

func init() {
	validate = validator.New()
	RegisterCustomValidations(validate)
}

// ValidateStruct validates a struct using validation tags. Failures come
// back as domain validation errors naming every offending field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return domain.Validation("%v", err)
	}

	problems := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		problems = append(problems, fieldProblem(fe))
	}
	return domain.Validation("%s", strings.Join(problems, "; "))
}

func fieldProblem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", fe.Field(), fe.Param())
	case "log_type":
		return fmt.Sprintf("%s %q is not a log type", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(uuid string) bool {
	return uuidPattern.MatchString(uuid)
}

// RegisterCustomValidations registers custom validation functions
func RegisterCustomValidations(v *validator.Validate) {
	v.RegisterValidation("log_type", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseLogType(fl.Field().String())
		return ok
	})
}
