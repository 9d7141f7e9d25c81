package auth

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/go-auth-service/internal/types"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// Validator enforces the input contracts of the auth endpoints.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// registration errors only happen on a bad tag name
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	return &Validator{v: v}
}

// ValidUsername reports whether s is 3-20 characters of [a-zA-Z0-9_-].
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

func passwordProblem(p string) string {
	if len(p) < minPasswordBytes {
		return fmt.Sprintf("must be at least %d characters", minPasswordBytes)
	}
	if len(p) > maxPasswordBytes {
		return fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "must contain an upper-case letter, a lower-case letter and a digit"
	}
	return ""
}

// Struct validates s and returns the first failure as a *types.ValidationError.
func (val *Validator) Struct(s any) error {
	return toValidationError(val.v.Struct(s), "")
}

// Var validates a single value under the given field name.
func (val *Validator) Var(field string, value any, tag string) error {
	return toValidationError(val.v.Var(value, tag), field)
}

func toValidationError(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &types.ValidationError{Field: field, Message: err.Error()}
	}
	fe := verrs[0]
	name := fe.Field()
	if name == "" {
		name = field
	}
	return &types.ValidationError{Field: name, Message: messageFor(fe)}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3-20 characters of letters, digits, '_' or '-'"
	case "password":
		if msg := passwordProblem(fmt.Sprint(fe.Value())); msg != "" {
			return msg
		}
		return "is not an acceptable password"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %q check", fe.Tag())
	}
}
