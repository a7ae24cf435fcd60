// Package validator checks corpus uploads before they are stored. It
// enforces name and body constraints and returns per-field error details.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 64
	maxBodyLength = 16 << 20
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateCorpus checks the corpus name and text and returns a
// *ValidationError listing every failing field.
func ValidateCorpus(name, text string) error {
	errs := make(map[string]string)

	switch {
	case name == "":
		errs["name"] = "name is required"
	case len(name) > maxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	case !namePattern.MatchString(name):
		errs["name"] = "name may contain only letters, digits, '-' and '_'"
	}

	switch {
	case strings.TrimSpace(text) == "":
		errs["body"] = "body is required and must not be blank"
	case len(text) > maxBodyLength:
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	case !utf8.ValidString(text):
		errs["body"] = "body must be valid UTF-8"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
