// Package env reads process environment variables with defaults, for the
// few settings that live outside the envconfig-managed configuration.
package env

import "os"

// Get reads the variable, falling back when it is unset or empty. An
// empty value is treated the same as an absent one so that exporting
// FOO= does not silently blank a setting.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
