package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput means the raw dataset lacks a dimension, a category
	// mapping, or has positions that cannot address the value array. A
	// Processor cannot be built from it.
	ErrMalformedInput = errors.New("malformed dataset")

	// ErrUnknownCategory means a query named a code that its dimension does
	// not define.
	ErrUnknownCategory = errors.New("unknown category code")
)

// UnknownCategoryError names the dimension and code a query got wrong.
// errors.Is(err, ErrUnknownCategory) reports true for it.
type UnknownCategoryError struct {
	Dimension Dimension
	Code      string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s category code %q", e.Dimension, e.Code)
}

func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
