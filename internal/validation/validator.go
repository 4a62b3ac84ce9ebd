package validation

import (
	"fmt"
	"strings"
)

// PatternName trims name and checks that it can be used as a Fabric pattern
// identifier. It returns the trimmed name.
func PatternName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("is required and cannot be empty")
	}
	// Pattern names are used as URL path segments on the Fabric API
	if strings.ContainsAny(trimmed, `/\`) || strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("contains invalid characters: %q", trimmed)
	}
	return trimmed, nil
}

// Range checks that an optional value lies within [min, max].
// A nil value is always valid.
func Range(v *float64, min, max float64) error {
	if v == nil {
		return nil
	}
	if *v < min || *v > max {
		return fmt.Errorf("must be between %g and %g, got %g", min, max, *v)
	}
	return nil
}
