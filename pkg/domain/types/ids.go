package types

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// CategoryID identifies a taxonomy category or subcategory
type CategoryID string

// DivisionID identifies an organizational division
type DivisionID string

var (
	idPattern   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// Validate checks if the CategoryID is valid
func (c CategoryID) Validate() error {
	if c == "" {
		return goerr.New("category ID cannot be empty")
	}
	if !idPattern.MatchString(string(c)) {
		return goerr.New("category ID must be lowercase alphanumeric with hyphens", goerr.V("id", c))
	}
	return nil
}

func (c CategoryID) String() string {
	return string(c)
}

// Validate checks if the DivisionID is valid
func (d DivisionID) Validate() error {
	if d == "" {
		return goerr.New("division ID cannot be empty")
	}
	if !idPattern.MatchString(string(d)) {
		return goerr.New("division ID must be lowercase alphanumeric with hyphens", goerr.V("id", d))
	}
	return nil
}

func (d DivisionID) String() string {
	return string(d)
}

// CodePart is one segment of an entity code prefix, such as a division
// code or the fixed literal used for controls.
type CodePart string

// Normalize upper-cases and trims the part
func (p CodePart) Normalize() CodePart {
	return CodePart(strings.ToUpper(strings.TrimSpace(string(p))))
}

// Validate checks that the normalized part is upper-case alphanumeric
func (p CodePart) Validate() error {
	n := p.Normalize()
	if n == "" {
		return goerr.New("code part cannot be empty")
	}
	if !codePattern.MatchString(string(n)) {
		return goerr.New("code part must be alphanumeric", goerr.V("part", string(p)))
	}
	return nil
}

func (p CodePart) String() string {
	return string(p)
}
