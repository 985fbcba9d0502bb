package job

import (
	"fmt"
	"strconv"
	"strings"
)

// Params carries the arguments of a single job run. Values come from command
// line flags or the schedule file, so they may arrive as strings even for
// numeric parameters.
type Params map[string]any

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q is %T, want string", key, v)
	}
	return s, nil
}

// StringOr returns a string parameter or the default when absent.
func (p Params) StringOr(key, def string) string {
	if s, err := p.String(key); err == nil {
		return s
	}
	return def
}

// Int returns a required integer parameter. String values are converted.
func (p Params) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %q is %T, want int", key, v)
	}
}

// IntOr returns an integer parameter or the default when absent.
func (p Params) IntOr(key string, def int) (int, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.Int(key)
}

// Bool returns a boolean parameter, false when absent. String values are
// converted.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("parameter %q: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("parameter %q is %T, want bool", key, v)
	}
}

// ParseArgs builds Params from "key=value" command line arguments.
func ParseArgs(args []string) (Params, error) {
	params := make(Params, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}
