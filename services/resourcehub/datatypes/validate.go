// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the ResourceHub entities and the request and
// response bodies of the REST API.
//
// Request types carry go-playground/validator tags and expose a Validate
// method. Handlers bind JSON first and then call Validate, so malformed JSON
// and semantic violations are reported separately.
package datatypes

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// validate is the validator instance for all request types.
// Initialized in init() with custom validators.
var validate *validator.Validate

// projectCodePattern matches codes like "PRJ-001" or "ALPHA".
var projectCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]{1,19}$`)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("project_code", func(fl validator.FieldLevel) bool {
		return projectCodePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	validate.RegisterStructValidation(dateRangeValidation,
		CreateProjectRequest{}, UpdateProjectRequest{},
		CreateResourceRequestBody{}, UpdateResourceRequestBody{},
	)
}

// dateRanged is implemented by request types with a start/end date pair.
type dateRanged interface {
	dateRange() (start, end *Date)
}

// dateRangeValidation rejects end dates before start dates when both are set.
func dateRangeValidation(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(dateRanged)
	if !ok {
		return
	}
	start, end := r.dateRange()
	if err := ValidateDateRange(start, end); err != nil {
		sl.ReportError(end, "end_date", "EndDate", "gtestart", "")
	}
}

// ErrInvalidDateRange is returned when an end date precedes its start date.
var ErrInvalidDateRange = errors.New("end_date must not be before start_date")

// ValidateDateRange checks end >= start when both dates are present.
//
// Handlers call this again after merging a partial update onto the stored
// entity, since a PATCH may move only one side of the range.
func ValidateDateRange(start, end *Date) error {
	if start == nil || end == nil || start.IsZero() || end.IsZero() {
		return nil
	}
	if end.Before(*start) {
		return ErrInvalidDateRange
	}
	return nil
}

// ValidationError is a client-facing description of failed field rules.
type ValidationError struct {
	Fields map[string]string
}

// Error joins the field messages in a stable order.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validateStruct runs the shared validator and converts failures into a
// *ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = describe(fe)
	}
	return out
}

// fieldPath strips the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "uuid4", "uuid":
		return "must be a UUID"
	case "project_code":
		return "must be 2-20 upper-case letters, digits or dashes, starting with a letter"
	case "gtestart":
		return ErrInvalidDateRange.Error()
	default:
		return "failed " + fe.Tag() + " rule"
	}
}
