package filter

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// NumericFilter matches int and double fields against one value (a=1) or several (a[]=1&a[]=2)
type NumericFilter struct {
	base
}

// NewNumericFilter creates a numeric filter
func NewNumericFilter(cfg Config) *NumericFilter {
	return &NumericFilter{base: newBase(cfg)}
}

func (f *NumericFilter) numeric(cm *mapping.ClassMetadata, property string) bool {
	t := f.fieldType(cm, property)
	return t == mapping.TypeInt || t == mapping.TypeDouble
}

// Apply adds an equality or IN condition on numeric properties.
func (f *NumericFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		if !f.enabled(cm, property) || !f.mapped(cm, property, false) || !f.numeric(cm, property) {
			return nil
		}

		values := f.values(value, property)
		if values == nil {
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}

		param := names.ParameterName(path.field)
		if len(values) == 1 {
			qb.Where(fmt.Sprintf("%s.%s = :%s", alias, path.field, param)).BindValue(param, values[0])
			return nil
		}
		query.In(qb, alias, path.field, values, param)
		return nil
	})
}

func (f *NumericFilter) values(value interface{}, property string) []interface{} {
	if _, isMap := value.(map[string]interface{}); isMap {
		f.invalid(`At least one value is required, multiple values should be in "%[1]s[]=firstvalue&%[1]s[]=secondvalue" format`, property)
		return nil
	}

	raw := listValues(value)
	values := make([]interface{}, 0, len(raw))
	for _, v := range raw {
		n, ok := number(v)
		if !ok {
			f.invalid(`Invalid numeric value for "%s" property`, property)
			return nil
		}
		values = append(values, n)
	}
	if len(values) == 0 {
		f.invalid(`At least one value is required, multiple values should be in "%[1]s[]=firstvalue&%[1]s[]=secondvalue" format`, property)
		return nil
	}
	return values
}

// Description lists a scalar and a list parameter for each numeric property.
func (f *NumericFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) || !f.numeric(cm, property) {
			continue
		}
		typ := TypeInt
		if f.fieldType(cm, property) == mapping.TypeDouble {
			typ = TypeFloat
		}
		name := f.normalize(property)
		desc[name] = Description{Property: name, Type: typ}
		desc[name+"[]"] = Description{Property: name, Type: typ, IsCollection: true}
	}
	return desc, nil
}
