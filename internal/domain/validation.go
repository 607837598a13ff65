package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	dateOfBirthLayout = "2006-01-02"
	maxPhotoLength    = 2048
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,19}$`)
	namePattern     = regexp.MustCompile(`^.{1,50}$`)
	phonePattern    = regexp.MustCompile(`^\+79\d{9}$`)
)

func NormalizeUsername(v string) string {
	return strings.TrimSpace(v)
}

func NormalizePhone(v string) string {
	return strings.TrimSpace(v)
}

func ValidateUsername(v string) error {
	if !usernamePattern.MatchString(v) {
		return fmt.Errorf("%w: username must match ^[a-z][a-z0-9_]{2,19}$", ErrInvalidInput)
	}
	return nil
}

func ValidateName(v string) error {
	if !namePattern.MatchString(v) {
		return fmt.Errorf("%w: name must be 1-50 characters", ErrInvalidInput)
	}
	return nil
}

func ValidatePhone(v string) error {
	if !phonePattern.MatchString(v) {
		return fmt.Errorf("%w: phone must match ^\\+79\\d{9}$", ErrInvalidInput)
	}
	return nil
}

func ValidatePhoto(v string) error {
	if len(v) > maxPhotoLength {
		return fmt.Errorf("%w: photo reference must be <= %d bytes", ErrInvalidInput, maxPhotoLength)
	}
	return nil
}

// ParseDateOfBirth accepts YYYY-MM-DD. An empty value clears the date and
// returns nil.
func ParseDateOfBirth(v string, now time.Time) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateOfBirthLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidInput)
	}
	if parsed.After(now) {
		return nil, fmt.Errorf("%w: date_of_birth cannot be in the future", ErrInvalidInput)
	}
	return &parsed, nil
}

func FormatDateOfBirth(t time.Time) string {
	return t.Format(dateOfBirthLayout)
}
