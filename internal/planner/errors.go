/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"errors"
	"fmt"
)

// ErrInvalidTimeFormat matches every *InvalidTimeFormatError via errors.Is.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// InvalidTimeFormatError reports an anchor time that is not a valid HH:MM value.
type InvalidTimeFormatError struct {
	Field string
	Value string
}

func (e *InvalidTimeFormatError) Error() string {
	return fmt.Sprintf("invalid time format for %s: %q (expected HH:MM, hour 0-23, minute 00-59)", e.Field, e.Value)
}

// Is reports whether target is ErrInvalidTimeFormat.
func (e *InvalidTimeFormatError) Is(target error) bool {
	return target == ErrInvalidTimeFormat
}
