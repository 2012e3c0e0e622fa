// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package validation wraps a shared go-playground/validator v10 instance and
// turns its field errors into messages keyed by configuration path.
//
// Field names are taken from the koanf tag, then the json tag, then the Go
// field name, so an error on a stream entry reads "streams[2].source is
// required" rather than "Source".
//
//	type EventsRequest struct {
//	    Limit int `json:"limit" validate:"gte=0"`
//	}
//
//	if errs := validation.ValidateStruct(&req); errs != nil {
//	    // errs.Error() is the joined message, errs.Details() the per-field detail
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed validation rule.
type FieldError struct {
	// Field is the dotted config path, e.g. "streams[0].retry.max_attempts".
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors is every rule that failed for one struct, in validator order.
type Errors []FieldError

// Error joins the individual messages with "; ".
func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e))
	for i, fe := range e {
		messages[i] = fe.Message
	}
	return strings.Join(messages, "; ")
}

// Details renders the errors for an API error body. A single error is
// flattened; several are listed under "fields".
func (e Errors) Details() map[string]interface{} {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return map[string]interface{}{
			"field": e[0].Field,
			"tag":   e[0].Tag,
			"value": e[0].Value,
		}
	}
	fields := make([]map[string]interface{}, len(e))
	for i, fe := range e {
		fields[i] = map[string]interface{}{
			"field":   fe.Field,
			"tag":     fe.Tag,
			"message": fe.Message,
		}
	}
	return map[string]interface{}{"fields": fields}
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(tagName)
	})
	return validate
}

// tagName reports the koanf or json key for a struct field.
func tagName(fld reflect.StructField) string {
	for _, key := range []string{"koanf", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// ValidateStruct validates s with the shared validator. It returns nil when
// every rule passes.
func ValidateStruct(s interface{}) Errors {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct.
		return Errors{{Field: "unknown", Tag: "unknown", Message: err.Error()}}
	}

	out := make(Errors, len(fieldErrs))
	for i, fe := range fieldErrs {
		path := fieldPath(fe)
		out[i] = FieldError{
			Field:   path,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: message(fe, path),
		}
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

// messages maps a tag to its template. Arguments are the field path, the
// tag parameter and a unit suffix for length rules.
var messages = map[string]string{
	"required": "%[1]s is required",
	"url":      "%[1]s must be a valid URL",
	"hostname": "%[1]s must be a valid hostname",
	"ip":       "%[1]s must be a valid IP address",
	"dive":     "%[1]s has an invalid entry",
	"oneof":    "%[1]s must be one of: %[2]s",
	"gte":      "%[1]s must be greater than or equal to %[2]s",
	"lte":      "%[1]s must be less than or equal to %[2]s",
	"gt":       "%[1]s must be greater than %[2]s",
	"lt":       "%[1]s must be less than %[2]s",
	"gtefield": "%[1]s must be greater than or equal to %[2]s",
	"unique":   "%[1]s must not repeat %[2]s",
	"min":      "%[1]s must be at least %[2]s%[3]s",
	"max":      "%[1]s must be at most %[2]s%[3]s",
}

func message(fe validator.FieldError, path string) string {
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}

	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Map:
		unit = " entries"
	}
	return fmt.Sprintf(tmpl, path, fe.Param(), unit)
}
