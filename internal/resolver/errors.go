package resolver

import "fmt"

// ConfigurationError reports an environment fact the resolver cannot act
// on. It aborts the whole resolution pass.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: unsupported %s %q", e.Field, e.Value)
}

// InvalidAppNameError reports an app name that cannot be used as a single
// path component.
type InvalidAppNameError struct {
	Name   string
	Reason string
}

func (e *InvalidAppNameError) Error() string {
	return fmt.Sprintf("invalid app name %q: %s", e.Name, e.Reason)
}
