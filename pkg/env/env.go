// Package env reads process environment with fallbacks, for the few knobs
// that sit outside the envconfig-managed configuration.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the environment variable, or fallback
// when it is unset or blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
