package profile

import (
	"errors"
	"os"
	"regexp"
)

// Validation reasons. Each structural failure has its own message.
const (
	ReasonNotFound        = "File not found"
	ReasonUnreadable      = "File is not readable"
	ReasonBadExtension    = "File must have .3mf extension"
	ReasonNotZip          = "Invalid .3mf file (not a valid ZIP archive)"
	ReasonNoContentTypes  = "Invalid .3mf file (missing [Content_Types].xml)"
	ReasonNoModelDocument = "Invalid .3mf file (missing .model file)"
)

var packageExtension = regexp.MustCompile(`(?i)\.3mf$`)

// Validation is the outcome of the pre-flight structural check.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Validate checks, in order and stopping at the first failure, that path is
// readable, ends in .3mf, opens as a ZIP archive, contains the content types
// manifest and contains at least one *.model entry. It does not run extraction.
func Validate(path string, opts ...Option) Validation {
	if _, err := os.Stat(path); err != nil {
		return Validation{Reason: ReasonNotFound}
	}
	if !readable(path) {
		return Validation{Reason: ReasonUnreadable}
	}
	if !packageExtension.MatchString(path) {
		return Validation{Reason: ReasonBadExtension}
	}

	pkg, err := Open(path, opts...)
	if err != nil {
		if errors.Is(err, ErrUnreadable) {
			return Validation{Reason: ReasonUnreadable}
		}
		return Validation{Reason: ReasonNotZip}
	}
	defer pkg.Close()

	return ValidatePackage(pkg)
}

// ValidatePackage runs the shape checks on an opened package.
func ValidatePackage(pkg *Package) Validation {
	if !pkg.Has(ContentTypesEntry) {
		return Validation{Reason: ReasonNoContentTypes}
	}
	for _, name := range pkg.names {
		if modelEntry.MatchString(name) {
			return Validation{Valid: true}
		}
	}
	return Validation{Reason: ReasonNoModelDocument}
}

// readable reports whether path is a regular file the process can open.
func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	return err == nil && st.Mode().IsRegular()
}
