package algorithm

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrBadParam is returned when a parameter has the wrong type or an invalid value.
var ErrBadParam = errors.New("invalid algorithm parameter")

// Params carries per-instance configuration. Values usually come from YAML,
// so numbers may arrive as int or float64.
type Params map[string]any

// Float returns the numeric parameter key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a number", ErrBadParam, key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrBadParam, key, v)
	}
}

// Int returns the integer parameter key, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s=%v is not an integer", ErrBadParam, key, f)
	}
	return int(f), nil
}

// String returns the string parameter key, or def when absent.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s has type %T", ErrBadParam, key, v)
	}
	return s, nil
}

// Key renders the parameters in a stable order for use in cache keys.
func (p Params) Key() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s=%v", k, p[k])
	}
	return b.String()
}
