// Package cpr holds helpers for Danish civil registration numbers.
package cpr

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var digitsOnly = regexp.MustCompile(`^\d{10}$`)

// Normalize strips an optional dash and validates that the result is ten
// digits.
func Normalize(cpr string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(cpr), "-", "")
	if !digitsOnly.MatchString(s) {
		return "", fmt.Errorf("invalid cpr %q", cpr)
	}
	return s, nil
}

// Format returns the number as ddmmyy-ssss.
func Format(cpr string) (string, error) {
	s, err := Normalize(cpr)
	if err != nil {
		return "", err
	}
	return s[:6] + "-" + s[6:], nil
}

// Birthdate derives the date of birth from the first six digits. The
// two-digit year is resolved against the current date: a date that would land
// in the future belongs to the previous century.
func Birthdate(cpr string) (time.Time, error) {
	s, err := Normalize(cpr)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("020106", s[:6])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid birthdate in cpr %q: %w", cpr, err)
	}
	if t.After(time.Now()) {
		t = t.AddDate(-100, 0, 0)
	}
	return t, nil
}
