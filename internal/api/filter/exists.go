package filter

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// ExistsFilter checks nullable fields for a value: exists[publishedAt]=true
type ExistsFilter struct {
	base
	parameter string
}

// NewExistsFilter creates an exists filter reading the parameter named parameter
// ("exists" when empty)
func NewExistsFilter(cfg Config, parameter string) *ExistsFilter {
	if parameter == "" {
		parameter = "exists"
	}
	return &ExistsFilter{base: newBase(cfg), parameter: parameter}
}

// Apply filters on whether a property, possibly nested, is null.
func (f *ExistsFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	v, _ := ctx.Filter(f.parameter)
	checks, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(checks, func(property string, value interface{}) error {
		if !f.enabled(cm, property) || !f.mapped(cm, property, false) {
			return nil
		}

		exists, ok := existsValue(value)
		if !ok {
			f.invalid(`Invalid value for "%s[%s]", expected one of ( "true" | "false" | "1" | "0" )`, f.parameter, property)
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}
		if !path.metadata.HasField(path.field) {
			return nil
		}

		op := "IS"
		if exists {
			op = "IS NOT"
		}
		qb.Where(fmt.Sprintf("%s.%s %s NULL", alias, path.field, op))
		return nil
	})
}

func existsValue(v interface{}) (bool, bool) {
	switch v {
	case true, "true", "1", "", nil:
		return true, true
	case false, "false", "0":
		return false, true
	}
	return false, false
}

// Description documents the exists[property] parameters.
func (f *ExistsFilter) Description(resource string) (map[string]Description, error) {
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
		desc[fmt.Sprintf("%s[%s]", f.parameter, name)] = Description{Property: name, Type: TypeBool}
	}
	return desc, nil
}
