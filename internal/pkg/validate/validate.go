package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-accounts-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Field names in reported errors
// come from the json tag so they match what the client sent.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

// Struct validates s using its validate tags. Only the first failing field is
// reported: a missing required field wraps domain.ErrMissingField, anything
// else wraps domain.ErrInvalidFormat.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	if fe.Tag() == "required" {
		return fmt.Errorf("%s is required: %w", fe.Field(), domain.ErrMissingField)
	}
	return fmt.Errorf("field '%s' failed '%s': %w", fe.Field(), fe.Tag(), domain.ErrInvalidFormat)
}

// Email checks a single address.
func Email(email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrMissingField)
	}
	if err := v.Var(email, "email"); err != nil {
		return fmt.Errorf("invalid email address: %w", domain.ErrInvalidFormat)
	}
	return nil
}
