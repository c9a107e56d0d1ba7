package filter

import (
	"fmt"
	"time"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// Date filter operators
const (
	Before         = "before"
	StrictlyBefore = "strictly_before"
	After          = "after"
	StrictlyAfter  = "strictly_after"
)

// Null management options of the date filter, set per property
const (
	ExcludeNull               = "exclude_null"
	IncludeNullBefore         = "include_null_before"
	IncludeNullAfter          = "include_null_after"
	IncludeNullBeforeAndAfter = "include_null_before_and_after"
)

var dateOperators = []struct {
	name string
	sql  string
}{
	{Before, "<="},
	{StrictlyBefore, "<"},
	{After, ">="},
	{StrictlyAfter, ">"},
}

// dateFormats is the bound value layout per field type
var dateFormats = map[mapping.FieldType]string{
	mapping.TypeDateTime: "2006-01-02 15:04:05",
	mapping.TypeDate:     "2006-01-02",
	mapping.TypeTime:     "15:04:05",
}

// dateLayouts are the accepted input layouts, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
	"15:04",
	time.RFC1123Z,
	time.RFC1123,
}

// DateFilter restricts date, datetime and time fields: created_at[before]=2024-01-01
type DateFilter struct {
	base
}

// NewDateFilter creates a date filter. Property options are null management values.
func NewDateFilter(cfg Config) *DateFilter {
	return &DateFilter{base: newBase(cfg)}
}

func (f *DateFilter) dateField(cm *mapping.ClassMetadata, property string) bool {
	_, ok := dateFormats[f.fieldType(cm, property)]
	return ok
}

// Apply adds before/after bounds for each date property, honoring the configured null strategy.
func (f *DateFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, ctx *metadata.Context) error {
	if !ctx.HasFilters() {
		return nil
	}
	cm, err := f.classMetadata(resource)
	if err != nil {
		return err
	}

	return f.eachFilter(ctx.Filters, func(property string, value interface{}) error {
		periods, ok := value.(map[string]interface{})
		if !ok || !f.enabled(cm, property) || !f.mapped(cm, property, false) || !f.dateField(cm, property) {
			return nil
		}

		alias, path, err := f.target(qb, names, cm, property, query.InnerJoin)
		if err != nil {
			return err
		}

		nulls := f.nullManagement(property)
		if nulls == ExcludeNull {
			qb.Where(fmt.Sprintf("%s.%s IS NOT NULL", alias, path.field))
		}

		format := dateFormats[f.fieldType(cm, property)]
		for _, op := range dateOperators {
			v, ok := periods[op.name]
			if !ok || v == nil {
				continue
			}
			f.addWhere(qb, names, alias, path.field, op.name, op.sql, v, format, nulls)
		}
		return nil
	})
}

func (f *DateFilter) addWhere(qb *query.SelectBuilder, names query.NameGenerator, alias, field, operator, sqlOperator string, value interface{}, format, nulls string) {
	s, ok := value.(string)
	if !ok {
		f.invalid(`Invalid value for "[%s]", expected string`, operator)
		return
	}
	t, ok := parseDate(s)
	if !ok {
		f.invalid(`The field "%s" has a wrong date format`, field)
		return
	}

	param := names.ParameterName(field)
	where := fmt.Sprintf("%s.%s %s :%s", alias, field, sqlOperator, param)

	switch {
	case nulls == "" || nulls == ExcludeNull:
	case includesNull(nulls, operator):
		where = fmt.Sprintf("(%s OR %s.%s IS NULL)", where, alias, field)
	default:
		where = fmt.Sprintf("(%s OR %s.%s IS NOT NULL)", where, alias, field)
	}

	qb.Where(where).BindValue(param, t.Format(format))
}

func includesNull(nulls, operator string) bool {
	before := operator == Before || operator == StrictlyBefore
	after := operator == After || operator == StrictlyAfter
	switch nulls {
	case IncludeNullBefore:
		return before
	case IncludeNullAfter:
		return after
	case IncludeNullBeforeAndAfter:
		return before || after
	}
	return false
}

func (f *DateFilter) nullManagement(property string) string {
	v := f.option(property)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	switch s {
	case ExcludeNull, IncludeNullBefore, IncludeNullAfter, IncludeNullBeforeAndAfter:
		return s
	}
	f.logger.Info("Invalid filter configuration", zap.Error(fmt.Errorf(
		`invalid null management value for "%s" property, expected one of ( "%s" | "%s" | "%s" | "%s" )`,
		property, ExcludeNull, IncludeNullAfter, IncludeNullBefore, IncludeNullBeforeAndAfter)))
	return ""
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Description lists the before, strictly_before, after and strictly_after parameters of each property.
func (f *DateFilter) Description(resource string) (map[string]Description, error) {
	cm, err := f.classMetadata(resource)
	if err != nil {
		return nil, err
	}

	desc := make(map[string]Description)
	for _, property := range f.describedProperties(cm) {
		if !f.mapped(cm, property, false) || !f.dateField(cm, property) {
			continue
		}
		name := f.normalize(property)
		for _, op := range dateOperators {
			desc[fmt.Sprintf("%s[%s]", name, op.name)] = Description{Property: name, Type: TypeDateTime}
		}
	}
	return desc, nil
}
