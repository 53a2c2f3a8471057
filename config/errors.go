package config

import (
	"fmt"
	"strings"
)

const (
	CategoryMissing = "missing"
	CategoryInvalid = "invalid"
)

// ConfigError describes a bad configuration key and what to do about it.
// Messages are lowercase so they read well after "Error: " in the CLI.
//
//nolint:revive // config.ConfigError reads better than config.Error at call sites
type ConfigError struct {
	Category string // CategoryMissing or CategoryInvalid
	Field    string // dotted key, e.g. "storage.dsn"
	Message  string
	Action   string // how to fix it
	Details  []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}

	if e.Category != "" {
		write("config_" + e.Category + ":")
	}
	write(e.Field)
	write(e.Message)
	write(e.Action)
	write(strings.Join(e.Details, "; "))
	return b.String()
}

// EnvVar returns the environment variable that sets key
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// NewMissingFieldError reports a required key with no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", EnvVar(field), field),
	}
}

// NewInvalidFieldError reports a key whose value was rejected. validOptions,
// when given, are listed in the action.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	e := &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
	if len(validOptions) > 0 {
		e.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return e
}
