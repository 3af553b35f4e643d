// Package utils holds request-parsing helpers shared by the handlers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Limit parses a page-size query value. Missing, malformed or non-positive
// values yield def; anything above ceiling is clamped to it.
func Limit(s string, def, ceiling int) int {
	n := AtoiDefault(strings.TrimSpace(s), def)
	switch {
	case n < 1:
		return def
	case n > ceiling:
		return ceiling
	}
	return n
}
