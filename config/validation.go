package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under their config keys rather than Go names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct constraints. Every violation is
// reported as a *ConfigError; several are joined with errors.Join.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, toConfigError(fe))
	}
	return errors.Join(errs...)
}

func toConfigError(fe validator.FieldError) *ConfigError {
	// Namespace is "Config.network.timeout.read".
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "gte", "min":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "max":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()), nil)
	}
}
