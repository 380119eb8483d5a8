// Tapdeck
// Copyright (c) 2026 The Tapdeck Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Tapdeck.
//
// Tapdeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapdeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.

package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error lists every field that failed validation.
type Error struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string
	Tag     string
	Value   any
	Message string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	var b strings.Builder
	for i, fe := range e.Fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Message)
	}
	return b.String()
}

func NewError(errs validator.ValidationErrors) *Error {
	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: formatValidationError(fe),
		})
	}
	return &Error{Fields: fields}
}

// paramMessages are formats taking the field name and the tag param.
var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gt":    "%s must be above %s",
	"gte":   "%s must be %s or more",
	"lt":    "%s must be below %s",
	"lte":   "%s must be %s or less",
}

func formatValidationError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	if format, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, field, fe.Param())
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "cardid":
		return fmt.Sprintf("%s %q is not a valid card id", field, fe.Value())
	case "dialect":
		return fmt.Sprintf("%s %q is not a known payload dialect", field, fe.Value())
	case "url":
		return field + " must be an absolute URL"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
