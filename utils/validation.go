package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Email pattern used for registration and notifications
var EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationRules contains validation limits
type ValidationRules struct {
	MaxNameLength     int
	MinPasswordLength int
	MaxTextLength     int
}

// DefaultValidationRules provides default validation constraints
var DefaultValidationRules = ValidationRules{
	MaxNameLength:     100,
	MinPasswordLength: 8,
	MaxTextLength:     5000,
}

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateName checks if name meets requirements
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > DefaultValidationRules.MaxNameLength {
		return fmt.Errorf("name must be less than %d characters", DefaultValidationRules.MaxNameLength)
	}
	return nil
}

// ValidatePassword enforces the minimum length
func ValidatePassword(password string) error {
	if len(password) < DefaultValidationRules.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", DefaultValidationRules.MinPasswordLength)
	}
	return nil
}

// ValidateText bounds free-form fields such as descriptions and cover letters
func ValidateText(field, value string) error {
	if len(value) > DefaultValidationRules.MaxTextLength {
		return fmt.Errorf("%s must be less than %d characters", field, DefaultValidationRules.MaxTextLength)
	}
	return nil
}

// ValidateURL accepts empty values or absolute http(s) URLs
func ValidateURL(field, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	return nil
}
