package common

import (
	"fmt"
	"math"
	"strings"
)

// StringArg returns a trimmed string argument, or "" when absent.
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// RequiredStringArg returns a non-empty string argument.
func RequiredStringArg(args map[string]any, name string) (string, error) {
	s := StringArg(args, name)
	if s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

// BoolArg returns a boolean argument or def when absent.
func BoolArg(args map[string]any, name string, def bool) bool {
	switch v := args[name].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return def
}

// IntArg returns a numeric argument as an int, def when absent, clamped to
// max when max is positive.
func IntArg(args map[string]any, name string, def, max int) int {
	n := def
	switch v := args[name].(type) {
	case float64:
		n = int(math.Round(v))
	case float32:
		n = int(math.Round(float64(v)))
	case int:
		n = v
	case int64:
		n = int(v)
	}
	if n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
