package filter

import (
	"strconv"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

// listValues returns the values of a parameter given once (a=x) or as a list (a[]=x).
// Keyed values (a[k]=x) are not a list and yield nil.
func listValues(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case map[string]interface{}:
		return nil
	default:
		return []interface{}{v}
	}
}

// number converts a numeric value or numeric string to int64 or float64
func number(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return nil, false
}

func isInteger(v interface{}) bool {
	switch t := v.(type) {
	case int, int32, int64:
		return true
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return err == nil
	}
	return false
}

// descriptionType maps a field type to the type documented for its parameter
func descriptionType(t mapping.FieldType) string {
	switch t {
	case mapping.TypeJSON:
		return TypeArray
	case mapping.TypeInt:
		return TypeInt
	case mapping.TypeBool:
		return TypeBool
	case mapping.TypeDateTime:
		return TypeDateTime
	case mapping.TypeDouble:
		return TypeFloat
	default:
		return TypeString
	}
}
