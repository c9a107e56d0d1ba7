package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// FullTextSearchFilter searches one parameter across several properties.
// Properties map a parameter name to the searched properties and their strategies:
//
//	q: {title: ipartial, author.name: istart}
type FullTextSearchFilter struct {
	base
}

// NewFullTextSearchFilter creates a full text search filter
func NewFullTextSearchFilter(cfg Config) *FullTextSearchFilter {
	return &FullTextSearchFilter{base: newBase(cfg)}
}

func (f *FullTextSearchFilter) searched(parameter string) []string {
	props, ok := f.option(parameter).(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for p := range props {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Apply matches the search term against every configured property.
func (f *FullTextSearchFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(parameter string, value interface{}) error {
		if value == nil || !f.enabled(cm, parameter) {
			return nil
		}
		searched := f.searched(parameter)
		if len(searched) == 0 {
			return nil
		}

		values := searchValues(value)
		if len(values) == 0 {
			f.invalid(`At least one value is required, multiple values should be in "%[1]s[]=firstvalue&%[1]s[]=secondvalue" format`, parameter)
			return nil
		}

		strategies := f.option(parameter).(map[string]interface{})

		var ors []string
		for _, v := range values {
			for _, property := range searched {
				if !f.mapped(cm, property, false) {
					continue
				}
				alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
				if err != nil {
					return err
				}
				if !validValues([]interface{}{v}, path.metadata.TypeOfField(path.field)) {
					f.invalid(`Values for field "%s" are not valid according to the field type`, path.field)
					continue
				}

				strategy, caseSensitive := splitStrategy(normalizeStrategy(strategies[property]))
				cond, err := f.condition(qb, names, strategy, alias+"."+path.field, path.field, v, caseSensitive)
				if err != nil {
					return err
				}
				ors = append(ors, cond)
			}
		}

		if len(ors) > 0 {
			qb.Where("(" + strings.Join(ors, " OR ") + ")")
		}
		return nil
	})
}

func (f *FullTextSearchFilter) condition(qb *query.SelectBuilder, names query.NameGenerator, strategy, aliased, field string, value interface{}, caseSensitive bool) (string, error) {
	param := names.ParameterName(field)
	if strategy == StrategyExact {
		qb.BindValue(param, lowerValue(value, caseSensitive))
		return fmt.Sprintf("%s = %s", wrapCase(aliased, caseSensitive), wrapCase(":"+param, caseSensitive)), nil
	}
	return likeCondition(qb, strategy, aliased, param, value, caseSensitive)
}

// Description returns the single search parameter.
func (f *FullTextSearchFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, parameter := range f.describedProperties(cm) {
		name := f.normalize(parameter)
		desc[name] = Description{Property: name, Type: TypeString}
		desc[name+"[]"] = Description{Property: name, Type: TypeString, IsCollection: true}
	}
	return desc, nil
}
