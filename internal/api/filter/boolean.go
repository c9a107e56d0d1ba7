package filter

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// BooleanFilter matches bool fields against true/false/1/0
type BooleanFilter struct {
	base
}

// NewBooleanFilter creates a boolean filter
func NewBooleanFilter(cfg Config) *BooleanFilter {
	return &BooleanFilter{base: newBase(cfg)}
}

// Apply adds an equality condition for each boolean property present in the request.
func (f *BooleanFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		if !f.enabled(cm, property) || !f.mapped(cm, property, false) || f.fieldType(cm, property) != mapping.TypeBool {
			return nil
		}

		v, ok := booleanValue(value)
		if !ok {
			f.invalid(`Invalid boolean value for "%s" property, expected one of ( "true" | "false" | "1" | "0" )`, property)
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}
		param := names.ParameterName(path.field)
		qb.Where(fmt.Sprintf("%s.%s = :%s", alias, path.field, param)).BindValue(param, v)
		return nil
	})
}

// Description lists one boolean parameter per enabled property.
func (f *BooleanFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) || f.fieldType(cm, property) != mapping.TypeBool {
			continue
		}
		name := f.normalize(property)
		desc[name] = Description{Property: name, Type: TypeBool}
	}
	return desc, nil
}

func booleanValue(v interface{}) (int, bool) {
	switch v {
	case true, "true", "1":
		return 1, true
	case false, "false", "0":
		return 0, true
	}
	return 0, false
}
