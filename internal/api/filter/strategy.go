package filter

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/google/uuid"
)

// Search strategies. Prefixing a strategy with "i" makes it case-insensitive.
const (
	StrategyExact     = "exact"
	StrategyPartial   = "partial"
	StrategyStart     = "start"
	StrategyEnd       = "end"
	StrategyWordStart = "word_start"
)

// normalizeStrategy returns a known strategy, exact otherwise
func normalizeStrategy(v interface{}) string {
	s, _ := v.(string)
	switch strings.TrimPrefix(s, "i") {
	case StrategyExact, StrategyPartial, StrategyStart, StrategyEnd, StrategyWordStart:
		return s
	}
	return StrategyExact
}

// splitStrategy separates the case-insensitive prefix from a normalized strategy
func splitStrategy(strategy string) (string, bool) {
	if strings.HasPrefix(strategy, "i") {
		return strategy[1:], false
	}
	return strategy, true
}

func wrapCase(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return "LOWER(" + expr + ")"
}

func lowerValue(v interface{}, caseSensitive bool) interface{} {
	if s, ok := v.(string); ok && !caseSensitive {
		return strings.ToLower(s)
	}
	return v
}

// likeCondition binds value as a LIKE pattern under param and returns the condition
func likeCondition(qb *query.SelectBuilder, strategy, field, param string, value interface{}, caseSensitive bool) (string, error) {
	s := fmt.Sprint(lowerValue(value, caseSensitive))
	column := wrapCase(field, caseSensitive)
	placeholder := wrapCase(":"+param, caseSensitive)

	switch strategy {
	case StrategyPartial:
		qb.BindValue(param, "%"+s+"%")
	case StrategyStart:
		qb.BindValue(param, s+"%")
	case StrategyEnd:
		qb.BindValue(param, "%"+s)
	case StrategyWordStart:
		qb.BindValue(param, s+"%")
		qb.BindValue(param+"_w", "% "+s+"%")
		return fmt.Sprintf("(%s LIKE %s OR %s LIKE %s)", column, placeholder, column, wrapCase(":"+param+"_w", caseSensitive)), nil
	default:
		return "", fmt.Errorf("strategy %s does not exist", strategy)
	}
	return fmt.Sprintf("%s LIKE %s", column, placeholder), nil
}

// validValues checks values against the type of the field they are compared with
func validValues(values []interface{}, t mapping.FieldType) bool {
	for _, v := range values {
		switch t {
		case mapping.TypeInt:
			if !isInteger(v) {
				return false
			}
		case mapping.TypeUUID:
			s, ok := v.(string)
			if !ok {
				return false
			}
			if _, err := uuid.Parse(s); err != nil {
				return false
			}
		}
	}
	return true
}

// searchValues keeps the string and integer values of a parameter
func searchValues(value interface{}) []interface{} {
	var out []interface{}
	for _, v := range listValues(value) {
		switch v.(type) {
		case string, int, int32, int64:
			out = append(out, v)
		}
	}
	return out
}

// inCondition binds one parameter per value as prefix_<index> and returns "expr IN (...)"
func inCondition(qb *query.SelectBuilder, expr string, values []interface{}, prefix string) string {
	params := make([]string, len(values))
	for i, v := range values {
		name := fmt.Sprintf("%s_%d", prefix, i)
		qb.BindValue(name, v)
		params[i] = ":" + name
	}
	return fmt.Sprintf("%s IN (%s)", expr, strings.Join(params, ", "))
}
