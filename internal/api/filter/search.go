package filter

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// SearchFilter matches fields by strategy: title=foo, title[]=a&title[]=b.
// Property options are strategies.
type SearchFilter struct {
	base
}

// NewSearchFilter creates a search filter
func NewSearchFilter(cfg Config) *SearchFilter {
	return &SearchFilter{base: newBase(cfg)}
}

// Apply matches each property with its configured strategy.
func (f *SearchFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		if value == nil || !f.enabled(cm, property) || !f.mapped(cm, property, false) {
			return nil
		}

		values := searchValues(value)
		if len(values) == 0 {
			f.invalid(`At least one value is required, multiple values should be in "%[1]s[]=firstvalue&%[1]s[]=secondvalue" format`, property)
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}
		if !path.metadata.HasField(path.field) {
			return nil
		}

		if !validValues(values, path.metadata.TypeOfField(path.field)) {
			f.invalid(`Values for field "%s" are not valid according to the field type`, path.field)
			return nil
		}

		strategy, caseSensitive := splitStrategy(normalizeStrategy(f.option(property)))
		return f.addWhereByStrategy(qb, names, strategy, alias, path.field, values, caseSensitive)
	})
}

func (f *SearchFilter) addWhereByStrategy(qb *query.SelectBuilder, names query.NameGenerator, strategy, alias, field string, values []interface{}, caseSensitive bool) error {
	param := names.ParameterName(field)
	aliased := alias + "." + field

	if strategy == StrategyExact {
		if len(values) == 1 {
			qb.Where(fmt.Sprintf("%s = %s", wrapCase(aliased, caseSensitive), wrapCase(":"+param, caseSensitive))).
				BindValue(param, values[0])
			return nil
		}

		if caseSensitive {
			query.In(qb, alias, field, values, param)
			return nil
		}
		lowered := make([]interface{}, len(values))
		for i, v := range values {
			lowered[i] = lowerValue(v, false)
		}
		qb.Where(inCondition(qb, wrapCase(aliased, false), lowered, param))
		return nil
	}

	ors := make([]string, 0, len(values))
	for i, v := range values {
		cond, err := likeCondition(qb, strategy, aliased, fmt.Sprintf("%s_%d", param, i), v, caseSensitive)
		if err != nil {
			return err
		}
		ors = append(ors, cond)
	}
	qb.Where("(" + strings.Join(ors, " OR ") + ")")
	return nil
}

// Description returns the parameters of each searchable property.
func (f *SearchFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) {
			continue
		}

		field, md := property, cm
		if f.nested(cm, property) {
			path := f.split(cm, property)
			field, md = path.field, path.metadata
		}
		name := f.normalize(property)
		strategy := normalizeStrategy(f.option(property))
		typ := descriptionType(md.TypeOfField(field))

		desc[name] = Description{Property: name, Type: typ, Strategy: strategy}
		if strategy == StrategyExact || strategy == "i"+StrategyExact {
			desc[name+"[]"] = Description{Property: name, Type: typ, Strategy: strategy, IsCollection: true}
		}
	}
	return desc, nil
}
