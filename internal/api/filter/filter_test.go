package filter

import (
	"testing"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping/mappingtest"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const selectBooks = `SELECT o.id AS "o__id" FROM book AS o`

type harness struct {
	cfg  Config
	logs *observer.ObservedLogs
}

func newHarness(properties map[string]interface{}) harness {
	core, logs := observer.New(zapcore.InfoLevel)
	return harness{
		cfg: Config{
			Managers:   repository.NewRegistry(mappingtest.Library(), nil, query.Postgres, nil),
			Logger:     zap.New(core),
			Properties: properties,
		},
		logs: logs,
	}
}

func (h harness) ignored() int {
	return h.logs.FilterMessage("Invalid filter ignored").Len()
}

func (h harness) lastError() string {
	entries := h.logs.All()
	if len(entries) == 0 {
		return ""
	}
	msg, _ := entries[len(entries)-1].ContextMap()["error"].(string)
	return msg
}

// apply runs f on a Book query and renders it for Postgres
func apply(t *testing.T, f Filter, filters map[string]interface{}) (string, []interface{}) {
	t.Helper()
	qb := query.NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")
	err := f.Apply(qb, hydrate.NewRelationalHydrator(), query.NewNameGenerator(), "Book", &metadata.Operation{Name: "books"}, &metadata.Context{Filters: filters})
	require.NoError(t, err)

	sql, args, err := qb.Statement(query.Postgres)
	require.NoError(t, err)
	return sql, args
}

func TestBooleanFilter(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		sql   string
		args  []interface{}
	}{
		{"true", "true", selectBooks + ` WHERE o.published = $1`, []interface{}{1}},
		{"one", "1", selectBooks + ` WHERE o.published = $1`, []interface{}{1}},
		{"false", "false", selectBooks + ` WHERE o.published = $1`, []interface{}{0}},
		{"zero", "0", selectBooks + ` WHERE o.published = $1`, []interface{}{0}},
		{"invalid", "yes", selectBooks, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			sql, args := apply(t, NewBooleanFilter(h.cfg), map[string]interface{}{
				"published": tt.value,
				"title":     "true",
			})
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
			if tt.args == nil {
				assert.Equal(t, 1, h.ignored())
				assert.Contains(t, h.lastError(), `Invalid boolean value for "published" property`)
			}
		})
	}
}

func TestBooleanFilter_Description(t *testing.T) {
	h := newHarness(nil)
	desc, err := NewBooleanFilter(h.cfg).Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{
		"published": {Property: "published", Type: TypeBool},
	}, desc)
}

func TestNumericFilter(t *testing.T) {
	h := newHarness(nil)

	sql, args := apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"price": "9.5"})
	assert.Equal(t, selectBooks+` WHERE o.price = $1`, sql)
	assert.Equal(t, []interface{}{9.5}, args)

	sql, args = apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"pages": []interface{}{"100", "200"}})
	assert.Equal(t, selectBooks+` WHERE o.pages IN ($1, $2)`, sql)
	assert.Equal(t, []interface{}{int64(100), int64(200)}, args)

	sql, _ = apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"pages": "many", "title": "1"})
	assert.Equal(t, selectBooks, sql)
	assert.Equal(t, 1, h.ignored())
	assert.Contains(t, h.lastError(), `Invalid numeric value for "pages" property`)

	sql, _ = apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"pages": map[string]interface{}{"gt": "1"}})
	assert.Equal(t, selectBooks, sql)
	assert.Contains(t, h.lastError(), "At least one value is required")
}

func TestNumericFilter_Nested(t *testing.T) {
	h := newHarness(map[string]interface{}{"reviews.rating": nil})

	sql, args := apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"reviews.rating": "5", "pages": "1"})
	assert.Equal(t, selectBooks+
		` INNER JOIN review AS reviews_a1 ON o.id = reviews_a1.book_id`+
		` WHERE reviews_a1.rating = $1`, sql)
	assert.Equal(t, []interface{}{int64(5)}, args)
}

func TestNumericFilter_NestedRequiresExplicitProperty(t *testing.T) {
	h := newHarness(nil)

	sql, _ := apply(t, NewNumericFilter(h.cfg), map[string]interface{}{"reviews.rating": "5"})
	assert.Equal(t, selectBooks, sql)
}

func TestNumericFilter_Description(t *testing.T) {
	h := newHarness(map[string]interface{}{"price": nil, "pages": nil, "title": nil})

	desc, err := NewNumericFilter(h.cfg).Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{
		"price":   {Property: "price", Type: TypeFloat},
		"price[]": {Property: "price", Type: TypeFloat, IsCollection: true},
		"pages":   {Property: "pages", Type: TypeInt},
		"pages[]": {Property: "pages", Type: TypeInt, IsCollection: true},
	}, desc)
}

func TestRangeFilter(t *testing.T) {
	tests := []struct {
		name  string
		value map[string]interface{}
		sql   string
		args  []interface{}
		log   string
	}{
		{
			name:  "between",
			value: map[string]interface{}{"between": "10..20"},
			sql:   selectBooks + ` WHERE o.pages BETWEEN $1 AND $2`,
			args:  []interface{}{int64(10), int64(20)},
		},
		{
			name:  "between equal bounds",
			value: map[string]interface{}{"between": "5..5"},
			sql:   selectBooks + ` WHERE o.pages = $1`,
			args:  []interface{}{int64(5)},
		},
		{
			name:  "bounds",
			value: map[string]interface{}{"lte": "9.5", "gt": "3"},
			sql:   selectBooks + ` WHERE o.pages > $1 AND o.pages <= $2`,
			args:  []interface{}{int64(3), 9.5},
		},
		{
			name:  "unknown operator",
			value: map[string]interface{}{"over": "1"},
			sql:   selectBooks,
			log:   `At least one valid operator ("between", "gt", "gte", "lt", "lte") is required for "pages" property`,
		},
		{
			name:  "malformed between",
			value: map[string]interface{}{"between": "10-20"},
			sql:   selectBooks,
			log:   `Invalid format for "[between]", expected "<min>..<max>"`,
		},
		{
			name:  "between with text",
			value: map[string]interface{}{"between": "a..20"},
			sql:   selectBooks,
			log:   `Invalid values for "[between]" range, expected numbers`,
		},
		{
			name:  "not a number",
			value: map[string]interface{}{"gte": "lots"},
			sql:   selectBooks,
			log:   `Invalid value for "[gte]", expected number`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			sql, args := apply(t, NewRangeFilter(h.cfg), map[string]interface{}{"pages": tt.value})
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
			if tt.log != "" {
				assert.Equal(t, tt.log, h.lastError())
			}
		})
	}
}

func TestRangeFilter_Description(t *testing.T) {
	h := newHarness(map[string]interface{}{"price": nil})

	desc, err := NewRangeFilter(h.cfg).Description("Book")
	require.NoError(t, err)
	assert.Len(t, desc, 5)
	assert.Equal(t, Description{Property: "price", Type: TypeString}, desc["price[between]"])
	assert.Contains(t, desc, "price[lte]")
}

func TestExistsFilter(t *testing.T) {
	h := newHarness(nil)

	sql, _ := apply(t, NewExistsFilter(h.cfg, ""), map[string]interface{}{
		"exists": map[string]interface{}{
			"publishedAt": "false",
			"pages":       "",
			"title":       "maybe",
		},
	})
	assert.Equal(t, selectBooks+` WHERE o.pages IS NOT NULL AND o.published_at IS NULL`, sql)
	assert.Equal(t, 1, h.ignored())
	assert.Equal(t, `Invalid value for "exists[title]", expected one of ( "true" | "false" | "1" | "0" )`, h.lastError())

	sql, _ = apply(t, NewExistsFilter(h.cfg, ""), map[string]interface{}{"exists": "publishedAt"})
	assert.Equal(t, selectBooks, sql)
}

func TestExistsFilter_NameConverter(t *testing.T) {
	h := newHarness(map[string]interface{}{"publishedAt": nil, "author.birthDate": nil})
	h.cfg.NameConverter = CamelCaseToSnakeCase{}
	f := NewExistsFilter(h.cfg, "has")

	sql, _ := apply(t, f, map[string]interface{}{
		"has": map[string]interface{}{"published_at": "1", "author.birth_date": "0"},
	})
	assert.Equal(t, selectBooks+
		` INNER JOIN author AS author_a1 ON o.author_id = author_a1.id`+
		` WHERE author_a1.birth_date IS NULL AND o.published_at IS NOT NULL`, sql)

	desc, err := f.Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{
		"has[published_at]":      {Property: "published_at", Type: TypeBool},
		"has[author.birth_date]": {Property: "author.birth_date", Type: TypeBool},
	}, desc)
}

func TestEnumFilter(t *testing.T) {
	h := newHarness(map[string]interface{}{"status": []interface{}{"draft", "published"}})
	f := NewEnumFilter(h.cfg)

	sql, args := apply(t, f, map[string]interface{}{"status": "draft"})
	assert.Equal(t, selectBooks+` WHERE o.status = $1`, sql)
	assert.Equal(t, []interface{}{"draft"}, args)

	sql, _ = apply(t, f, map[string]interface{}{"status": `draft" OR 1=1 --`})
	assert.Equal(t, selectBooks, sql)
	assert.Equal(t, 1, h.ignored())

	desc, err := f.Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{
		"status": {
			Property: "status",
			Type:     TypeString,
			Schema:   &Schema{Type: TypeString, Enum: []string{"draft", "published"}},
		},
	}, desc)
}

func TestEnumFilter_RequiresValueList(t *testing.T) {
	h := newHarness(map[string]interface{}{"status": "draft"})
	f := NewEnumFilter(h.cfg)

	qb := query.NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")
	err := f.Apply(qb, nil, query.NewNameGenerator(), "Book", nil, &metadata.Context{Filters: map[string]interface{}{"status": "draft"}})
	assert.ErrorContains(t, err, "status should be an enum")

	_, err = f.Description("Book")
	assert.Error(t, err)
}

func TestOffsetFilter(t *testing.T) {
	sql, _ := apply(t, OffsetFilter{}, map[string]interface{}{"offset": "10"})
	assert.Equal(t, selectBooks, sql)

	desc, err := OffsetFilter{}.Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{"offset": {Property: "offset", Type: TypeInt}}, desc)
}

func TestFilter_UnknownResource(t *testing.T) {
	h := newHarness(nil)
	qb := query.NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")

	err := NewSearchFilter(h.cfg).Apply(qb, nil, query.NewNameGenerator(), "Shelf", nil, &metadata.Context{Filters: map[string]interface{}{"a": "b"}})
	assert.ErrorIs(t, err, metadata.ErrResourceClassNotFound)

	_, err = NewOrderFilter(h.cfg, "", "").Description("Shelf")
	assert.ErrorIs(t, err, metadata.ErrResourceClassNotFound)
}

func TestFilter_NoFilters(t *testing.T) {
	h := newHarness(nil)
	for _, f := range []Filter{
		NewBooleanFilter(h.cfg), NewNumericFilter(h.cfg), NewDateFilter(h.cfg), NewRangeFilter(h.cfg),
		NewSearchFilter(h.cfg), NewFullTextSearchFilter(h.cfg), NewOrderFilter(h.cfg, "", ""),
		NewExistsFilter(h.cfg, ""), NewEnumFilter(h.cfg),
	} {
		qb := query.NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")
		require.NoError(t, f.Apply(qb, nil, query.NewNameGenerator(), "Book", nil, &metadata.Context{}))
		assert.Empty(t, qb.Wheres())
		assert.False(t, qb.HasOrderBy())
	}
}

func TestSplitProperty(t *testing.T) {
	h := newHarness(nil)
	b := newBase(h.cfg)
	cm, err := b.classMetadata("Book")
	require.NoError(t, err)

	path := b.split(cm, "author.country.name")
	assert.Equal(t, []string{"author", "country"}, path.associations)
	assert.Equal(t, "name", path.field)
	assert.Equal(t, "Country", path.metadata.Name())

	path = b.split(cm, "reviews.book")
	assert.Equal(t, []string{"reviews"}, path.associations)
	assert.Equal(t, "book", path.field)
	assert.Equal(t, "Review", path.metadata.Name())

	path = b.split(cm, "title")
	assert.Empty(t, path.associations)
	assert.Equal(t, "title", path.field)

	assert.True(t, b.nested(cm, "author.name"))
	assert.False(t, b.nested(cm, "title.length"))
	assert.True(t, b.mapped(cm, "author.name", false))
	assert.False(t, b.mapped(cm, "author", false))
	assert.True(t, b.mapped(cm, "author", true))
	assert.True(t, b.mapped(cm, "reviews.book", true))
	assert.False(t, b.mapped(cm, "author.unknown", true))
}
