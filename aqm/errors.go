// SPDX-License-Identifier: GPL-3.0

package aqm

import "fmt"

// ConfigError reports a configuration error detected when a component is
// constructed. Unlike a capacity drop or a clamped invariant, it aborts
// construction rather than degrading at runtime.
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("aqm: %s: %s", e.Component, e.Reason)
}

func configErrorf(component, format string, a ...any) error {
	return &ConfigError{component, fmt.Sprintf(format, a...)}
}
