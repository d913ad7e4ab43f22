package validation

import (
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"
)

var isbnRegex = regexp.MustCompile(`^\d{13}$`)

// ValidateISBN requires exactly 13 decimal digits.
func ValidateISBN(isbn string) error {
	if !isbnRegex.MatchString(isbn) {
		return fmt.Errorf("ISBN must contain exactly 13 digits.")
	}
	return nil
}

// ValidateAgeLimit accepts one of the allowed age ratings.
func ValidateAgeLimit(limit int, allowed []int) error {
	if !slices.Contains(allowed, limit) {
		return fmt.Errorf("%d is not a valid choice.", limit)
	}
	return nil
}

// ValidateRequiredText enforces a non-blank value of at most max characters.
func ValidateRequiredText(value string, max int) error {
	if value == "" {
		return fmt.Errorf("This field is required.")
	}
	return ValidateMaxLength(value, max)
}

// ValidateMaxLength enforces at most max characters; max <= 0 disables the check.
func ValidateMaxLength(value string, max int) error {
	if max > 0 && utf8.RuneCountInString(value) > max {
		return fmt.Errorf("Ensure this field has no more than %d characters.", max)
	}
	return nil
}
