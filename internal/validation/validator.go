// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule.
type FieldError struct {
	// Field is the namespaced field, e.g. "Config.Server.Port".
	Field   string
	Rule    string
	Param   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Errors lists every failed rule of one struct.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// HasField reports whether field failed. field may be a namespace suffix.
func (e Errors) HasField(field string) bool {
	for _, fe := range e {
		if fe.Field == field || strings.HasSuffix(fe.Field, "."+field) {
			return true
		}
	}
	return false
}

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, r := range customRules {
		check := r.check
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		})
	}
	return v
})

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	return instance()
}

// ValidateStruct runs the validate tags of s. The error is nil or Errors.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{{Field: "unknown", Rule: "unknown", Message: err.Error()}}
	}

	out := make(Errors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Namespace(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Namespace() + " " + describe(fe),
		}
	}
	return out
}

// describe renders the predicate part of a message, after the field name.
func describe(fe validator.FieldError) string {
	if r, ok := customRules[fe.Tag()]; ok {
		return r.message
	}

	p := fe.Param()
	unit := ""
	if fe.Kind().String() == "string" {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	case "cidr":
		return "must be a CIDR range"
	case "ip":
		return "must be an IP address"
	case "cidr|ip":
		return "must be an IP address or CIDR range"
	case "oneof":
		return "must be one of: " + p
	case "min":
		return fmt.Sprintf("must be at least %s%s", p, unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", p, unit)
	case "gte":
		return "must be greater than or equal to " + p
	case "lte":
		return "must be less than or equal to " + p
	case "gt":
		return "must be greater than " + p
	case "lt":
		return "must be less than " + p
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
