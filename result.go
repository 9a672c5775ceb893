package parcel

import (
	"sort"
	"strings"
)

// ErrorKind classifies a field validation failure.
type ErrorKind string

// Validation error kinds.
const (
	KindRequired ErrorKind = "required"
	KindInvalid  ErrorKind = "invalid"
)

// Field names reported in FieldErrors.
const (
	FieldNameStorage  = "storage"
	FieldNameKey      = "key"
	FieldNameValue    = "value"
	FieldNameCompress = "compress"
)

// ValidationError describes one validation failure on a request field.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

// FieldErrors maps request field names to their validation failures.
type FieldErrors map[string][]ValidationError

// Add records a failure against field.
func (f FieldErrors) Add(field string, kind ErrorKind, message string) {
	f[field] = append(f[field], ValidationError{Kind: kind, Message: message})
}

// Messages returns the human messages recorded against field.
func (f FieldErrors) Messages(field string) []string {
	out := make([]string, 0, len(f[field]))
	for _, e := range f[field] {
		out = append(out, e.Message)
	}
	return out
}

// Error renders every failure as "field message", fields in sorted order.
// It returns an empty string when there are no failures.
func (f FieldErrors) Error() string {
	if len(f) == 0 {
		return ""
	}
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		for _, e := range f[field] {
			parts = append(parts, field+" "+e.Message)
		}
	}
	return "parcel: invalid request: " + strings.Join(parts, "; ")
}

// Published describes an object made externally available.
type Published struct {
	StoredFileName string `json:"stored_file_name"`
	FullPath       string `json:"full_path"`
	PublicURL      string `json:"public_url"`
}

// Result carries the outcome of Publish. Exactly one of Published and
// Errors is set.
type Result struct {
	Published *Published
	Errors    FieldErrors
}

// Valid reports whether the request passed validation.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}
