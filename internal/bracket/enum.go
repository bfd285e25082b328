package bracket

import "fmt"

// scanEnum reads a string column into a closed string enum, rejecting values
// the enum does not know about.
func scanEnum[T ~string](src any, dst *T, valid func(T) bool, kind string) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, kind)
	}
	val := T(raw)
	if !valid(val) {
		return fmt.Errorf("unknown %s %q", kind, raw)
	}
	*dst = val
	return nil
}

func canTransition[T comparable](table map[T][]T, from, to T) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}
