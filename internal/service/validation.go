// Package service implements the account, order and catalog workflows
// behind the HTTP handlers.
package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tokenapi/tokenapi/internal/model"
)

// Field validation messages.
const (
	MsgRequired      = "This field is required."
	MsgBlank         = "This field may not be blank."
	MsgNull          = "This field may not be null."
	MsgInvalidEmail  = "Enter a valid email address."
	MsgInvalidInt    = "A valid integer is required."
	MsgInvalidNumber = "A valid number is required."
	MsgUsernameTaken = "A user with that username already exists."
	MsgBadUsername   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgBadLogin      = "Unable to log in with provided credentials."
	MsgTwoDecimals   = "Ensure that there are no more than 2 decimal places."
)

// MsgAmountTooLarge is reported when price times quantity cannot be stored.
var MsgAmountTooLarge = fmt.Sprintf("Ensure that price times quantity is no more than %s.", model.MaxAmount)

// NonFieldErrors is the key for errors not tied to a single field.
const NonFieldErrors = "non_field_errors"

// ValidationError maps field names to their error messages.
type ValidationError map[string][]string

// Error implements error.
func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg against field.
func (v ValidationError) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Has reports whether field already has an error.
func (v ValidationError) Has(field string) bool {
	return len(v[field]) > 0
}

// OrNil returns nil when no errors were recorded.
func (v ValidationError) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func maxLengthMsg(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}

func minValueMsg(n int) string {
	return fmt.Sprintf("Ensure this value is greater than or equal to %d.", n)
}

func maxValueMsg(n int) string {
	return fmt.Sprintf("Ensure this value is less than or equal to %d.", n)
}

func maxDigitsMsg(n int) string {
	return fmt.Sprintf("Ensure that there are no more than %d digits in total.", n)
}

func maxWholeDigitsMsg(n int) string {
	return fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", n)
}

func invalidPKMsg(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

// requireString validates a required string field that may not be blank.
// It returns the trimmed value.
func requireString(errs ValidationError, field string, value *string, maxLen int) string {
	if value == nil {
		errs.Add(field, MsgRequired)
		return ""
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		errs.Add(field, MsgBlank)
		return ""
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		errs.Add(field, maxLengthMsg(maxLen))
	}
	return s
}

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}
