package commands

import (
	"github.com/go-playground/validator/v10"

	"github.com/surpluscoord/control-plane/internal/apierr"
)

// validate is shared across every command function, mirroring the
// teacher's middleware package's single package-level *validator.Validate.
var validate = validator.New()

// validateStruct runs struct-tag validation (envelope step 2) and
// translates any failure into a VALIDATION_ERROR with one detail entry per
// offending field.
func validateStruct(actor Actor, s any) error {
	if err := validate.Struct(s); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apierr.ValidationError(err.Error()).WithRequestID(actor.RequestID)
		}
		details := make([]map[string]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, map[string]string{
				"field": fe.Field(),
				"rule":  fe.Tag(),
			})
		}
		return apierr.ValidationErrorWithDetails("request failed validation", details).WithRequestID(actor.RequestID)
	}
	return nil
}
