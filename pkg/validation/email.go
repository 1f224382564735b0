package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether s looks like local@domain.tld with a tld of at
// least two letters.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct runs the `validate` struct tags of v.
func Struct(v any) error {
	return validate.Struct(v)
}
