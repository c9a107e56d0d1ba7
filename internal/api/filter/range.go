package filter

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// Range filter operators
const (
	Between            = "between"
	GreaterThan        = "gt"
	GreaterThanOrEqual = "gte"
	LessThan           = "lt"
	LessThanOrEqual    = "lte"
)

var rangeOperators = []string{Between, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual}

var rangeSQL = map[string]string{
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
}

// RangeFilter compares fields with numeric bounds: price[between]=10..20, pages[gt]=100
type RangeFilter struct {
	base
}

// NewRangeFilter creates a range filter
func NewRangeFilter(cfg Config) *RangeFilter {
	return &RangeFilter{base: newBase(cfg)}
}

// Apply adds between, gt, gte, lt and lte bounds.
func (f *RangeFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		ops, ok := value.(map[string]interface{})
		if !ok || !f.enabled(cm, property) || !f.mapped(cm, property, false) {
			return nil
		}

		values := make(map[string]string)
		for _, op := range rangeOperators {
			if s, ok := ops[op].(string); ok {
				values[op] = s
			}
		}
		if len(values) == 0 {
			f.invalid(`At least one valid operator ("%s") is required for "%s" property`, strings.Join(rangeOperators, `", "`), property)
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}

		for _, op := range rangeOperators {
			if v, ok := values[op]; ok {
				f.addWhere(qb, names, alias, path.field, op, v)
			}
		}
		return nil
	})
}

func (f *RangeFilter) addWhere(qb *query.SelectBuilder, names query.NameGenerator, alias, field, operator, value string) {
	param := names.ParameterName(field)

	if operator == Between {
		bounds := strings.Split(value, "..")
		if len(bounds) != 2 {
			f.invalid(`Invalid format for "[%s]", expected "<min>..<max>"`, Between)
			return
		}
		low, okLow := number(bounds[0])
		high, okHigh := number(bounds[1])
		if !okLow || !okHigh {
			f.invalid(`Invalid values for "[%s]" range, expected numbers`, Between)
			return
		}

		if low == high {
			qb.Where(fmt.Sprintf("%s.%s = :%s", alias, field, param)).BindValue(param, low)
			return
		}
		qb.Where(fmt.Sprintf("%[1]s.%[2]s BETWEEN :%[3]s_1 AND :%[3]s_2", alias, field, param)).
			BindValue(param+"_1", low).
			BindValue(param+"_2", high)
		return
	}

	n, ok := number(value)
	if !ok {
		f.invalid(`Invalid value for "[%s]", expected number`, operator)
		return
	}
	qb.Where(fmt.Sprintf("%s.%s %s :%s", alias, field, rangeSQL[operator], param)).BindValue(param, n)
}

// Description lists the five range operators of each property.
func (f *RangeFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) {
			continue
		}
		name := f.normalize(property)
		for _, op := range rangeOperators {
			desc[fmt.Sprintf("%s[%s]", name, op)] = Description{Property: name, Type: TypeString}
		}
	}
	return desc, nil
}
