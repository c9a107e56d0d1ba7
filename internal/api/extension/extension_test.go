package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/conduit-lang/apiorm/internal/api/filter"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping/mappingtest"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryResources declares the API resources over the mappingtest entities
func libraryResources(t *testing.T) *metadata.ResourceRegistry {
	t.Helper()
	prop := func(name string, groups ...string) metadata.PropertyMetadata {
		return metadata.PropertyMetadata{Name: name, Readable: true, Groups: groups}
	}
	link := func(name string, groups ...string) metadata.PropertyMetadata {
		p := prop(name, groups...)
		p.ReadableLink = true
		return p
	}

	r := metadata.NewResourceRegistry()
	for _, res := range []*metadata.Resource{
		{Name: "Book", Properties: []metadata.PropertyMetadata{
			prop("id", "book:read"), prop("title", "book:read"), link("author", "book:read"), link("reviews", "review:read"),
		}},
		{Name: "Author", Properties: []metadata.PropertyMetadata{
			prop("id", "book:read"), prop("name", "book:read"), prop("country"), prop("mentor"),
		}},
		{Name: "Review", Properties: []metadata.PropertyMetadata{
			prop("id"), prop("rating"), prop("book"),
		}},
		{Name: "Country", Properties: []metadata.PropertyMetadata{
			prop("id"), prop("name"),
		}},
	} {
		require.NoError(t, r.Register(res))
	}
	return r
}

func bookQuery() *query.SelectBuilder {
	return query.NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")
}

type recordingExtension struct {
	name  string
	calls *[]string
	err   error
}

func (e recordingExtension) ApplyToCollection(context.Context, *query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, *metadata.Operation, *metadata.Context) error {
	*e.calls = append(*e.calls, e.name)
	return e.err
}

func (e recordingExtension) ApplyToItem(context.Context, *query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, map[string]interface{}, *metadata.Operation, *metadata.Context) error {
	*e.calls = append(*e.calls, e.name)
	return e.err
}

func TestChain_Priority(t *testing.T) {
	var calls []string
	c := NewChain().
		AddCollection(recordingExtension{name: "pagination", calls: &calls}, PriorityPagination).
		AddCollection(recordingExtension{name: "filter", calls: &calls}, PriorityFilter).
		AddCollection(recordingExtension{name: "order", calls: &calls}, PriorityOrder).
		AddCollection(recordingExtension{name: "custom", calls: &calls}, 0).
		AddCollection(recordingExtension{name: "filter2", calls: &calls}, PriorityFilter).
		AddItem(recordingExtension{name: "item", calls: &calls}, PriorityItemEagerLoading)

	for _, ext := range c.CollectionExtensions() {
		require.NoError(t, ext.ApplyToCollection(context.Background(), nil, nil, nil, "Book", nil, nil))
	}
	assert.Equal(t, []string{"custom", "filter", "filter2", "order", "pagination"}, calls)
	assert.Len(t, c.ItemExtensions(), 1)
}

type stubFilter struct {
	where string
	err   error
}

func (f stubFilter) Apply(qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, _ query.NameGenerator, _ string, _ *metadata.Operation, _ *metadata.Context) error {
	if f.err != nil {
		return f.err
	}
	qb.Where(f.where)
	return nil
}

func (f stubFilter) Description(string) (map[string]filter.Description, error) {
	return nil, nil
}

func TestFilterExtension(t *testing.T) {
	locator := filter.NewLocator()
	locator.Register("book.published", stubFilter{where: "o.published = TRUE"})
	locator.Register("book.priced", stubFilter{where: "o.price > 0"})

	ext := NewFilterExtension(locator, nil)
	qb := bookQuery()
	op := &metadata.Operation{Name: "books", Kind: metadata.GetCollection, Filters: []string{"book.priced", "book.unknown", "book.published"}}

	err := ext.ApplyToCollection(context.Background(), qb, hydrate.NewRelationalHydrator(), query.NewNameGenerator(), "Book", op, &metadata.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o.price > 0", "o.published = TRUE"}, qb.Wheres())
}

func TestFilterExtension_NoFilters(t *testing.T) {
	ext := NewFilterExtension(filter.NewLocator(), nil)
	qb := bookQuery()

	require.NoError(t, ext.ApplyToCollection(context.Background(), qb, nil, nil, "Book", nil, nil))
	require.NoError(t, ext.ApplyToCollection(context.Background(), qb, nil, nil, "Book", &metadata.Operation{}, nil))
	assert.Empty(t, qb.Wheres())
}

func TestFilterExtension_Error(t *testing.T) {
	boom := errors.New("boom")
	locator := filter.NewLocator()
	locator.Register("book.broken", stubFilter{err: boom})

	ext := NewFilterExtension(locator, nil)
	op := &metadata.Operation{Filters: []string{"book.broken"}}

	err := ext.ApplyToCollection(context.Background(), bookQuery(), nil, nil, "Book", op, nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "filter book.broken")
}

func TestOrderExtension(t *testing.T) {
	registry := repository.NewRegistry(mappingtest.Library(), nil, query.Postgres, nil)

	tests := []struct {
		name  string
		order string
		op    *metadata.Operation
		want  string
	}{
		{
			name: "operation order",
			op: &metadata.Operation{Order: []metadata.OrderField{
				{Property: "author.name", Direction: "desc"},
				{Property: "title"},
			}},
			want: `SELECT o.id AS "o__id" FROM book AS o INNER JOIN author AS author_a1 ON o.author_id = author_a1.id ORDER BY author_a1.name DESC, o.title ASC`,
		},
		{
			name:  "identifier fallback",
			order: "desc",
			op:    &metadata.Operation{},
			want:  `SELECT o.id AS "o__id" FROM book AS o ORDER BY o.id DESC`,
		},
		{
			name: "no default",
			op:   &metadata.Operation{},
			want: `SELECT o.id AS "o__id" FROM book AS o`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := bookQuery()
			ext := NewOrderExtension(registry, tt.order)
			require.NoError(t, ext.ApplyToCollection(context.Background(), qb, nil, query.NewNameGenerator(), "Book", tt.op, nil))

			stmt, _, err := qb.Statement(query.Postgres)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt)
		})
	}
}

func TestOrderExtension_KeepsExistingOrder(t *testing.T) {
	registry := repository.NewRegistry(mappingtest.Library(), nil, query.Postgres, nil)
	qb := bookQuery().OrderBy("o.title", "desc")

	ext := NewOrderExtension(registry, "asc")
	require.NoError(t, ext.ApplyToCollection(context.Background(), qb, nil, query.NewNameGenerator(), "Book", nil, nil))

	assert.Equal(t, []query.OrderBy{{Expr: "o.title", Direction: "DESC"}}, qb.OrderBys())
}
