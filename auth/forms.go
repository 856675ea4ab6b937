package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/text/unicode/norm"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the form before any network call is made.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(1, 256)),
	)
}

// RegisterForm is the registration form.
type RegisterForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate checks the form before any network call is made.
func (f RegisterForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&f.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&f.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&f.Password, validation.Required, validation.Length(8, 256)),
	)
}

// NormalizeEmail folds compatibility characters and case so the same
// address typed two ways reaches the auth service identically.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(email)))
}

// ValidateEmail checks a single address, already normalized, with the
// rules the forms use.
func ValidateEmail(email string) error {
	return validation.Validate(email, validation.Required, validation.Length(3, 254), is.Email)
}
