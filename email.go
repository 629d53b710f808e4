package emailauth

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

// normalizeEmail trims and lowercases the address, returning ErrInvalidEmail
// for anything that is not a plausible email. The lowercased form is the
// identity key everywhere in the package.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
