package filter

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// EnumFilter matches a field against one of a fixed list of values.
// Each property option is the list of allowed values.
type EnumFilter struct {
	base
}

// NewEnumFilter creates an enum filter
func NewEnumFilter(cfg Config) *EnumFilter {
	return &EnumFilter{base: newBase(cfg)}
}

func (f *EnumFilter) cases(property string) ([]string, error) {
	raw, ok := f.option(property).([]interface{})
	if !ok {
		if list, isStrings := f.option(property).([]string); isStrings {
			return list, nil
		}
		return nil, fmt.Errorf("%s should be an enum: a list of allowed values", property)
	}
	cases := make([]string, len(raw))
	for i, v := range raw {
		cases[i] = fmt.Sprint(v)
	}
	return cases, nil
}

// Apply restricts enum properties to the requested cases.
func (f *EnumFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		if f.properties == nil || !f.enabled(cm, property) || !f.mapped(cm, property, false) {
			return nil
		}
		cases, err := f.cases(property)
		if err != nil {
			return err
		}

		s, ok := value.(string)
		if !ok || !contains(cases, s) {
			f.invalid(`Invalid value for "%s" property, expected one of %q`, property, cases)
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}
		param := names.ParameterName(path.field)
		qb.Where(fmt.Sprintf("%s.%s = :%s", alias, path.field, param)).BindValue(param, s)
		return nil
	})
}

// Description returns a single and a list parameter per enum property.
func (f *EnumFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	if f.properties == nil {
		return desc, nil
	}
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) {
			continue
		}
		cases, err := f.cases(property)
		if err != nil {
			return nil, err
		}
		name := f.normalize(property)
		desc[name] = Description{
			Property: name,
			Type:     TypeString,
			Schema:   &Schema{Type: TypeString, Enum: cases},
		}
	}
	return desc, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
