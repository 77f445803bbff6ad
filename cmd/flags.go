package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// enumValue is a string flag restricted to a fixed set of values.
type enumValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*enumValue)(nil)

func newEnumValue(value string, allowed ...string) *enumValue {
	return &enumValue{value: value, allowed: allowed}
}

func (e *enumValue) String() string {
	return e.value
}

func (e *enumValue) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, allowed := range e.allowed {
		if value == allowed {
			e.value = value
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(e.allowed, ", "))
}

func (e *enumValue) Type() string {
	return "string"
}

// usage appends the allowed values to a flag description.
func (e *enumValue) usage(desc string) string {
	return fmt.Sprintf("%s (%s)", desc, strings.Join(e.allowed, "|"))
}
