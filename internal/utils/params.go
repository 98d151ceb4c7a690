// Package utils holds small parsing helpers shared by handlers and services.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int after trimming spaces. Empty or invalid
// input yields def.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundedInt parses an optional query value. Absent or invalid input yields
// def; anything present is clamped to [lo, hi].
func BoundedInt(s string, def, lo, hi int) int {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if s == "" || err != nil {
		return def
	}
	return ClampInt(n, lo, hi)
}
