// Package validation holds input rules shared by the API, the HTML forms and the CLI.
package validation

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password the default policy accepts.
const MinPasswordLength = 8

// UserAttributes are the account values a password must not resemble.
type UserAttributes struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// PasswordValidator checks one password rule.
type PasswordValidator interface {
	Validate(password string, attrs UserAttributes) error
}

// PasswordValidatorFunc adapts a function to PasswordValidator.
type PasswordValidatorFunc func(password string, attrs UserAttributes) error

func (f PasswordValidatorFunc) Validate(password string, attrs UserAttributes) error {
	return f(password, attrs)
}

// PasswordPolicy runs every validator and reports all failures.
type PasswordPolicy []PasswordValidator

// DefaultPasswordPolicy combines similarity, length, common-password and numeric checks.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		AttributeSimilarity(0.7),
		MinimumLength(MinPasswordLength),
		CommonPassword(),
		NumericPassword(),
	}
}

// Check returns one message per failed rule, or nil when the password passes.
func (p PasswordPolicy) Check(password string, attrs UserAttributes) []string {
	var problems []string
	for _, v := range p {
		if err := v.Validate(password, attrs); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// MinimumLength rejects passwords shorter than n runes.
func MinimumLength(n int) PasswordValidator {
	return PasswordValidatorFunc(func(password string, _ UserAttributes) error {
		if len([]rune(password)) < n {
			return fmt.Errorf("This password is too short. It must contain at least %d characters.", n)
		}
		return nil
	})
}

// NumericPassword rejects passwords made only of digits.
func NumericPassword() PasswordValidator {
	return PasswordValidatorFunc(func(password string, _ UserAttributes) error {
		if password == "" {
			return nil
		}
		for _, r := range password {
			if !unicode.IsDigit(r) {
				return nil
			}
		}
		return fmt.Errorf("This password is entirely numeric.")
	})
}

//go:embed common_passwords.txt
var commonPasswordsRaw string

var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(commonPasswordsRaw))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}()

// CommonPassword rejects passwords found in the embedded common-password list.
func CommonPassword() PasswordValidator {
	return PasswordValidatorFunc(func(password string, _ UserAttributes) error {
		if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
			return fmt.Errorf("This password is too common.")
		}
		return nil
	})
}

var nonWord = regexp.MustCompile(`\W+`)

// AttributeSimilarity rejects passwords whose similarity ratio to any user
// attribute (or a word of it) reaches maxSimilarity.
func AttributeSimilarity(maxSimilarity float64) PasswordValidator {
	return PasswordValidatorFunc(func(password string, attrs UserAttributes) error {
		pw := strings.ToLower(password)
		if pw == "" {
			return nil
		}
		fields := []struct{ name, value string }{
			{"username", attrs.Username},
			{"email address", attrs.Email},
			{"first name", attrs.FirstName},
			{"last name", attrs.LastName},
		}
		for _, f := range fields {
			value := strings.ToLower(f.value)
			if value == "" {
				continue
			}
			parts := append([]string{value}, nonWord.Split(value, -1)...)
			for _, part := range parts {
				if len(part) < 3 {
					continue
				}
				if similarity(pw, part) >= maxSimilarity {
					return fmt.Errorf("The password is too similar to the %s.", f.name)
				}
			}
		}
		return nil
	})
}

// similarity is 2*LCS/(len(a)+len(b)) over runes, in [0,1].
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}
