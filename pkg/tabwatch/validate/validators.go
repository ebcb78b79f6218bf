package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// CustomValidator is a caller-supplied per-cell check. Validate is called
// once per cell in the validator's column scope; returning a non-nil error
// records an error-severity finding. A panicking validator is downgraded
// to a warning and never aborts the run.
type CustomValidator struct {
	// Name identifies the validator in findings. Required, unique.
	Name string

	// Description is informational.
	Description string

	// Columns scopes the validator. Empty means every column.
	Columns []string

	// Validate inspects one cell. row maps header names to the row's values.
	Validate func(value string, row map[string]string, rowIndex int, column string) error
}

// appliesTo reports whether the validator covers the named column.
func (v *CustomValidator) appliesTo(column string) bool {
	if len(v.Columns) == 0 {
		return true
	}
	for _, c := range v.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// RangeValidator checks that a numeric column stays within [min, max].
// Empty cells pass; non-numeric cells fail.
func RangeValidator(name, column string, min, max float64) *CustomValidator {
	return &CustomValidator{
		Name:        name,
		Description: fmt.Sprintf("%s must be a number between %v and %v", column, min, max),
		Columns:     []string{column},
		Validate: func(value string, _ map[string]string, _ int, col string) error {
			v := strings.TrimSpace(value)
			if v == "" {
				return nil
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s %q is not a number", col, value)
			}
			if n < min || n > max {
				return fmt.Errorf("%s %v out of range [%v, %v]", col, n, min, max)
			}
			return nil
		},
	}
}

// LatitudeValidator checks the named column for valid latitudes.
func LatitudeValidator(column string) *CustomValidator {
	return RangeValidator("latitude-range", column, -90, 90)
}

// LongitudeValidator checks the named column for valid longitudes.
func LongitudeValidator(column string) *CustomValidator {
	return RangeValidator("longitude-range", column, -180, 180)
}

// RequiredValidator fails on blank cells in the given columns.
func RequiredValidator(columns ...string) *CustomValidator {
	return &CustomValidator{
		Name:        "required",
		Description: "cells in required columns must be non-empty",
		Columns:     columns,
		Validate: func(value string, _ map[string]string, _ int, col string) error {
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("%s must not be empty", col)
			}
			return nil
		},
	}
}
