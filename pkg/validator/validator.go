// Package validator wraps go-playground/validator with the custom rules
// the enrollment profile needs.
package validator

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		// Format validation errors
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for API responses
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "iso_country":
					msg = "Must be a two-letter ISO country code"
				case "past_date":
					msg = "Must be a date in the past"
				}
				errs[e.Field()] = msg
			}
		}
	}
	return errs
}

var isoCountryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

func (v *Validator) registerCustomValidations() {
	_ = v.validate.RegisterValidation("iso_country", func(fl validator.FieldLevel) bool {
		return isoCountryPattern.MatchString(fl.Field().String())
	})

	_ = v.validate.RegisterValidation("past_date", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return t.Before(time.Now())
	})
}
