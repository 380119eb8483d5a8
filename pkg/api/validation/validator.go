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

// Package validation checks API request params with go-playground/validator.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/tapdeck/tapdeck/pkg/payload"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cardid", validateCardID)
	_ = v.RegisterValidation("dialect", validateDialect)
	return &Validator{validate: v}
}

var DefaultValidator = NewValidator()

func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return NewError(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAndUnmarshal decodes params into dest and validates the result.
// Empty params give ErrMissingParams and undecodable params give
// ErrInvalidParams.
func ValidateAndUnmarshal[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 {
		return ErrMissingParams
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return DefaultValidator.Validate(dest)
}

// validateCardID rejects ids that could not survive a round trip through
// a tag payload: surrounding whitespace, control characters and values
// that already carry the card:// scheme.
func validateCardID(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	if strings.TrimSpace(val) != val || strings.HasPrefix(val, payload.Scheme) {
		return false
	}
	return !strings.ContainsFunc(val, unicode.IsControl)
}

func validateDialect(fl validator.FieldLevel) bool {
	_, err := payload.ParseDialect(fl.Field().String())
	return err == nil
}
