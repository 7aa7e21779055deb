package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"reencode/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fields a job must carry before it is persisted.
func Validate(job *Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "queue", "validate", "job is nil", nil)
	}
	if err := validate.Struct(job); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, describeFieldError(fe))
			}
			return services.Wrap(services.ErrValidation, "queue", "validate", strings.Join(parts, "; "), nil)
		}
		return services.Wrap(services.ErrValidation, "queue", "validate", "", err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}
