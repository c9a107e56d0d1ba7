package filter

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// Sort directions
const (
	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"
)

// Nulls comparisons of the order filter
const (
	NullsSmallest    = "nulls_smallest"
	NullsLargest     = "nulls_largest"
	NullsAlwaysFirst = "nulls_always_first"
	NullsAlwaysLast  = "nulls_always_last"
)

// nullsDirection gives the direction of the null rank column per comparison and sort direction
var nullsDirection = map[string]map[string]string{
	NullsSmallest:    {DirectionAsc: DirectionAsc, DirectionDesc: DirectionDesc},
	NullsLargest:     {DirectionAsc: DirectionDesc, DirectionDesc: DirectionAsc},
	NullsAlwaysFirst: {DirectionAsc: DirectionAsc, DirectionDesc: DirectionAsc},
	NullsAlwaysLast:  {DirectionAsc: DirectionDesc, DirectionDesc: DirectionDesc},
}

// OrderOptions are the per-property options of the order filter
type OrderOptions struct {
	DefaultDirection string
	NullsComparison  string
}

// OrderFilter sorts collections: order[title]=desc&order[author.name]=asc.
// A property option is either a default direction or a map with default_direction
// and nulls_comparison.
type OrderFilter struct {
	base
	parameter       string
	nullsComparison string
	options         map[string]OrderOptions
}

// NewOrderFilter creates an order filter reading the parameter named parameter ("order"
// when empty). nullsComparison applies to properties without their own.
func NewOrderFilter(cfg Config, parameter, nullsComparison string) *OrderFilter {
	if parameter == "" {
		parameter = "order"
	}
	f := &OrderFilter{
		base:            newBase(cfg),
		parameter:       parameter,
		nullsComparison: nullsComparison,
		options:         make(map[string]OrderOptions),
	}
	for property, opt := range cfg.Properties {
		switch o := opt.(type) {
		case string:
			f.options[property] = OrderOptions{DefaultDirection: o}
		case map[string]interface{}:
			dir, _ := o["default_direction"].(string)
			nulls, _ := o["nulls_comparison"].(string)
			f.options[property] = OrderOptions{DefaultDirection: dir, NullsComparison: nulls}
		}
	}
	return f
}

// Apply appends the requested order clauses, falling back to the configured default direction.
func (f *OrderFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	v, ok := ctx.Filter(f.parameter)
	if !ok {
		return nil
	}
	orders, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(orders, func(property string, value interface{}) error {
		if !f.enabled(cm, property) || !f.mapped(cm, property, false) {
			return nil
		}
		direction, ok := f.direction(property, value)
		if !ok {
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.LeftJoin)
		if err != nil {
			return err
		}

		nulls := f.options[property].NullsComparison
		if nulls == "" {
			nulls = f.nullsComparison
		}
		if dirs, ok := nullsDirection[nulls]; ok {
			rank := fmt.Sprintf("_%s_%s_null_rank", alias, strings.ReplaceAll(path.field, ".", "_"))
			qb.RawSelect(fmt.Sprintf("CASE WHEN %s.%s IS NULL THEN 0 ELSE 1 END AS %s", alias, path.field, rank)).
				OrderBy(rank, dirs[direction])
		}

		qb.OrderBy(alias+"."+path.field, direction)
		return nil
	})
}

func (f *OrderFilter) direction(property string, value interface{}) (string, bool) {
	if value != nil {
		if _, ok := value.(string); !ok {
			return "", false
		}
	}
	s, _ := value.(string)
	if s == "" {
		s = f.options[property].DefaultDirection
	}
	s = strings.ToUpper(s)
	if s != DirectionAsc && s != DirectionDesc {
		return "", false
	}
	return s, true
}

// Description lists the order[property] parameters.
func (f *OrderFilter) Description(resource string) (map[string]Description, error) {
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
		desc[fmt.Sprintf("%s[%s]", f.parameter, name)] = Description{
			Property: name,
			Type:     TypeString,
			Schema: &Schema{
				Type: TypeString,
				Enum: []string{strings.ToLower(DirectionAsc), strings.ToLower(DirectionDesc)},
			},
		}
	}
	return desc, nil
}
