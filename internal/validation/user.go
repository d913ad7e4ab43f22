package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

// NormalizeEmail trims and lower-cases an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address such as "reader@example.com".
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("This field is required.")
	}
	if len(email) > 254 {
		return errors.New("Ensure this field has no more than 254 characters.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return errors.New("Enter a valid email address.")
	}
	return nil
}

// ValidateUsername allows letters, digits and @/./+/-/_ up to 150 characters.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("This field is required.")
	}
	if len([]rune(username)) > 150 {
		return errors.New("Ensure this field has no more than 150 characters.")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	return nil
}
