package services

import (
	"strings"

	"badge-draw-system/errs"
)

// DeriveDrawNumber derives the canonical draw number from a badge instance's
// origin token. Pure and deterministic: trims surrounding whitespace and
// lower-cases, so DeriveDrawNumber(" AbC ") == DeriveDrawNumber("abc").
func DeriveDrawNumber(origin string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(origin))
	if normalized == "" {
		return "", errs.Validationf("origin_blank", "origin must not be empty")
	}
	return normalized, nil
}
