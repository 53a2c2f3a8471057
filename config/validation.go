package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Storage drivers
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their koanf key
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags and returns the first
// violation as a *ConfigError.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	return toConfigError(fieldErrs[0])
}

func toConfigError(fe validator.FieldError) *ConfigError {
	key := fieldKey(fe.Namespace())

	switch fe.Tag() {
	case "required", "required_if":
		return NewMissingFieldError(key)
	case "oneof":
		return NewInvalidFieldError(key, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(key, "must be an absolute url", nil)
	case "gt":
		return NewInvalidFieldError(key, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(key, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "lte":
		return NewInvalidFieldError(key, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	case "gtefield", "ltefield":
		other := siblingKey(key, strings.ToLower(fe.Param()))
		op := "at least"
		if fe.Tag() == "ltefield" {
			op = "at most"
		}
		return NewInvalidFieldError(key, fmt.Sprintf("must be %s %s", op, other), nil)
	default:
		return NewInvalidFieldError(key, fmt.Sprintf("failed %s validation", fe.Tag()), nil)
	}
}

// fieldKey drops the root struct name from a validator namespace
func fieldKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func siblingKey(key, name string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i+1] + name
	}
	return name
}
