// Package util provides helpers for strings received from the host.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs unquotes and unescapes every host argument in place and returns
// the slice.
func CleanArgs(args []string) []string {
	for i, v := range args {
		args[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(v)))
	}
	return args
}

// ParseBool accepts the boolean spellings the host produces.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}
