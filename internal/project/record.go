// Package project owns the ordered list of registered repositories and its
// on-disk image.
//
// The list is persisted as a pretty-printed JSON array:
//
//	[
//	  {
//	    "path": "/src/alpha",
//	    "name": "alpha",
//	    "notes": "work project"
//	  }
//	]
//
// Insertion order is display order and sync order. Duplicate paths or names
// are allowed.
package project

import "fmt"

// Record is one registered repository.
type Record struct {
	// Path is the local working directory. Validated once, at registration.
	Path string `json:"path" yaml:"path" toml:"path"`

	// Name is the label shown to the user.
	Name string `json:"name" yaml:"name" toml:"name"`

	// Notes is free-form text.
	Notes string `json:"notes" yaml:"notes" toml:"notes"`

	// Branch overrides the configured sync branch for this project.
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty" toml:"branch,omitempty"`
}

// Validate checks the fields that must be present before the repository
// itself is inspected. Only empty strings are rejected; a name of spaces
// is a name.
func (r *Record) Validate() error {
	if r.Path == "" || r.Name == "" {
		return &RegistrationError{Kind: ErrEmptyField, Record: *r}
	}
	return nil
}

// BranchOr returns the record's branch, or fallback when none is set.
func (r Record) BranchOr(fallback string) string {
	if r.Branch != "" {
		return r.Branch
	}
	return fallback
}

// String formats the record for log lines.
func (r Record) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Path)
}

// Patch describes an edit to an existing record. Nil fields are left alone.
type Patch struct {
	Name   *string `json:"name,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Branch *string `json:"branch,omitempty"`
}

// Apply returns r with the patch applied.
func (p Patch) Apply(r Record) Record {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Branch != nil {
		r.Branch = *p.Branch
	}
	return r
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Notes == nil && p.Branch == nil
}
