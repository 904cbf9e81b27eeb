package types

import (
	"fmt"
	"strings"
)

// Category defines the class of fault found in an error trace
type Category int

// Defines error categories, in classifier priority order
const (
	CategoryUnknown Category = iota
	CategorySyntax
	CategoryRuntime
	CategoryLogic
	CategoryTimeout
)

var categoryToString = []string{
	"UNKNOWN",
	"SYNTAX",
	"RUNTIME",
	"LOGIC",
	"TIMEOUT",
}

func (c Category) String() string {
	ci := int(c)
	if ci < 0 || ci >= len(categoryToString) {
		return categoryToString[0]
	}
	return categoryToString[ci]
}

// ParseCategory converts the upper case name back into Category
func ParseCategory(s string) (Category, error) {
	for i, v := range categoryToString {
		if strings.EqualFold(v, s) {
			return Category(i), nil
		}
	}
	return CategoryUnknown, fmt.Errorf("invalid category: %s", s)
}

// Signature identifies one fault: the exception class name and the final frame
type Signature struct {
	Exception string
	Frame     string
}

// Empty returns true when nothing was extracted from the trace
func (s Signature) Empty() bool {
	return s.Exception == "" && s.Frame == ""
}

func (s Signature) String() string {
	switch {
	case s.Exception != "" && s.Frame != "":
		return s.Exception + " @ " + s.Frame
	case s.Exception != "":
		return s.Exception
	default:
		return s.Frame
	}
}

// ErrorCategory is derived once per submission and never mutated
type ErrorCategory struct {
	Category  Category
	Signature Signature
}

func (e ErrorCategory) String() string {
	if e.Signature.Empty() {
		return e.Category.String()
	}
	return fmt.Sprintf("%s (%s)", e.Category, e.Signature)
}
