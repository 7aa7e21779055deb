package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"reencode/internal/services"
)

// Criteria describes a rule to add to a series bucket.
type Criteria struct {
	Series        string `validate:"required"`
	OldSeason     *int   `validate:"omitempty,gte=0"`
	OldEpisode    *int   `validate:"omitempty,gte=0"`
	NewSeason     *int   `validate:"omitempty,gte=0"`
	NewEpisode    *int   `validate:"omitempty,gte=0"`
	NewSeriesName string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate trims the names and checks the numeric filters.
func (c *Criteria) Validate() error {
	c.Series = strings.TrimSpace(c.Series)
	c.NewSeriesName = strings.TrimSpace(c.NewSeriesName)
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				switch fe.Tag() {
				case "required":
					parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
				default:
					parts = append(parts, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
				}
			}
			return services.Wrap(services.ErrValidation, "rewrite", "validate criteria", strings.Join(parts, "; "), nil)
		}
		return services.Wrap(services.ErrValidation, "rewrite", "validate criteria", "", err)
	}
	return nil
}
