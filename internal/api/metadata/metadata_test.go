package metadata

import (
	"strings"
	"testing"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/mapping/mappingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entities struct {
	*mapping.Registry
}

func (e entities) ClassMetadata(resource string) (*mapping.ClassMetadata, bool) {
	return e.Metadata(resource)
}

const resourcesYAML = `
filters:
  - id: book.search
    type: search
    properties:
      title: ipartial
      author.name: exact
  - id: book.order
    type: order
    properties:
      title: asc
resources:
  - name: Book
    properties:
      - name: id
      - name: title
        groups: [book:read]
      - name: author
        readable_link: true
        groups: [book:read]
      - name: reviews
        fetch_eager: false
    operations:
      - name: books
        kind: get_collection
        filters: [book.search, book.order]
        order:
          - property: title
            direction: DESC
        pagination:
          items_per_page: 10
          client_enabled: true
        normalization_context:
          groups: [book:read]
      - name: book
        kind: get
        uri_variables:
          - parameter: id
            from_class: Book
            identifiers: [id]
      - name: book_create
        kind: post
      - name: book_delete
        kind: delete
    graphql_operations:
      - name: item_query
        kind: graphql_query
      - name: collection_query
        kind: graphql_collection_query
        pagination:
          type: cursor
  - name: Author
    properties:
      - name: id
      - name: name
      - name: books
  - name: Review
    properties:
      - name: id
      - name: body
`

func loadDefinitions(t *testing.T) *Definitions {
	t.Helper()
	defs, err := Load(strings.NewReader(resourcesYAML))
	require.NoError(t, err)
	return defs
}

func TestOperationKind(t *testing.T) {
	kind, err := ParseOperationKind("GraphQL_Collection_Query")
	require.NoError(t, err)
	assert.Equal(t, GraphQLCollectionQuery, kind)
	assert.True(t, kind.IsGraphQL())
	assert.True(t, kind.IsCollection())
	assert.Equal(t, "graphql_collection_query", kind.String())

	_, err = ParseOperationKind("list")
	assert.Error(t, err)
	assert.Equal(t, "OperationKind(42)", OperationKind(42).String())
}

func TestOperationLinks(t *testing.T) {
	http := &Operation{Kind: Get, URIVariables: []Link{{Parameter: "id"}}, Links: []Link{{Parameter: "gql"}}}
	gql := &Operation{Kind: GraphQLQuery, URIVariables: []Link{{Parameter: "id"}}, Links: []Link{{Parameter: "gql"}}}

	assert.Equal(t, "id", http.OperationLinks()[0].Parameter)
	assert.Equal(t, "gql", gql.OperationLinks()[0].Parameter)

	var none *Operation
	assert.Nil(t, none.OperationLinks())
	assert.Nil(t, none.NormalizationGroups())
}

func TestLoad(t *testing.T) {
	defs := loadDefinitions(t)

	require.Len(t, defs.Filters, 2)
	assert.Equal(t, "ipartial", defs.Filters[0].Properties["title"])

	op, err := defs.Resources.Operation("Book", "books")
	require.NoError(t, err)
	assert.Equal(t, "Book", op.Resource)
	assert.Equal(t, GetCollection, op.Kind)
	assert.Equal(t, []string{"book.search", "book.order"}, op.Filters)
	assert.Equal(t, []OrderField{{Property: "title", Direction: "DESC"}}, op.Order)
	require.NotNil(t, op.PaginationItemsPerPage)
	assert.Equal(t, 10, *op.PaginationItemsPerPage)
	assert.True(t, *op.PaginationClientEnabled)
	assert.Nil(t, op.PaginationEnabled)
	assert.Equal(t, []string{"book:read"}, op.NormalizationGroups())

	item, err := defs.Resources.Operation("Book", "book")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, item.OperationLinks()[0].Identifiers)

	gql, err := defs.Resources.Operation("Book", "collection_query")
	require.NoError(t, err)
	assert.Equal(t, PaginationTypeCursor, gql.PaginationType)

	_, err = defs.Resources.Operation("Book", "missing")
	assert.ErrorIs(t, err, ErrOperationNotFound)
	_, err = defs.Resources.Operation("Shelf", "books")
	assert.ErrorIs(t, err, ErrResourceClassNotFound)

	assert.Equal(t, []string{"Author", "Book", "Review"}, defs.Resources.Names())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"undeclared filter", "resources:\n  - name: Book\n    operations:\n      - name: books\n        kind: get_collection\n        filters: [nope]\n", "undeclared filter nope"},
		{"unknown kind", "resources:\n  - name: Book\n    operations:\n      - name: books\n        kind: list\n", "unknown operation kind"},
		{"graphql under http", "resources:\n  - name: Book\n    operations:\n      - name: q\n        kind: graphql_query\n", "graphql_operations"},
		{"http under graphql", "resources:\n  - name: Book\n    graphql_operations:\n      - name: q\n        kind: get\n", "not a GraphQL operation"},
		{"duplicate operation", "resources:\n  - name: Book\n    operations:\n      - name: a\n        kind: get\n      - name: a\n        kind: post\n", "duplicate operation a"},
		{"filter without type", "filters:\n  - id: x\n", "need an id and a type"},
		{"pagination type", "resources:\n  - name: Book\n    graphql_operations:\n      - name: q\n        kind: graphql_collection_query\n        pagination:\n          type: offset\n", "unknown pagination type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLinkedOperation(t *testing.T) {
	defs := loadDefinitions(t)
	r := defs.Resources

	op, err := r.LinkedOperation("Book", &Operation{Name: "books", Kind: GetCollection})
	require.NoError(t, err)
	assert.Equal(t, "books", op.Name)

	op, err = r.LinkedOperation("Book", &Operation{Name: "author_books", Kind: GraphQLCollectionQuery})
	require.NoError(t, err)
	assert.Equal(t, "collection_query", op.Name)

	_, err = r.LinkedOperation("Book", &Operation{Name: "author_books", Kind: GetCollection})
	assert.ErrorIs(t, err, ErrOperationNotFound)

	_, err = r.LinkedOperation("Author", &Operation{Name: "author_books", Kind: GraphQLQuery})
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestAddDefaults(t *testing.T) {
	defs := loadDefinitions(t)
	require.NoError(t, defs.Resources.Register(&Resource{
		Name:       "Shelf",
		Operations: []*Operation{{Name: "shelves", Kind: GetCollection}},
	}))

	defs.Resources.AddDefaults(entities{mappingtest.Library()})

	get := func(resource, name string) *Operation {
		op, err := defs.Resources.Operation(resource, name)
		require.NoError(t, err)
		return op
	}

	assert.Equal(t, ProviderCollection, get("Book", "books").Provider)
	assert.Equal(t, ProviderItem, get("Book", "book").Provider)
	assert.Equal(t, ProcessorPersist, get("Book", "book_create").Processor)
	assert.Equal(t, ProcessorRemove, get("Book", "book_delete").Processor)
	assert.Empty(t, get("Book", "books").Processor)
	assert.Equal(t, ProviderCollection, get("Book", "collection_query").Provider)
	assert.Empty(t, get("Shelf", "shelves").Provider)
}

func TestPropertyMetadata(t *testing.T) {
	defs := loadDefinitions(t)
	factory := NewMappingPropertyFactory(entities{mappingtest.Library()}, defs.Resources)

	names, err := defs.Resources.PropertyNames("Book")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "author", "reviews"}, names)

	id, err := factory.PropertyMetadata("Book", "id", PropertyOptions{})
	require.NoError(t, err)
	assert.True(t, id.IsIdentifier())
	assert.False(t, id.IsWritable(), "auto-increment identifiers are not writable")

	title, err := factory.PropertyMetadata("Book", "title", PropertyOptions{})
	require.NoError(t, err)
	assert.Nil(t, title.Identifier)
	assert.True(t, title.Readable)

	author, err := factory.PropertyMetadata("Book", "author", PropertyOptions{SerializerGroups: []string{"book:read"}})
	require.NoError(t, err)
	assert.True(t, author.Readable)
	assert.True(t, author.ReadableLink)

	reviews, err := factory.PropertyMetadata("Book", "reviews", PropertyOptions{SerializerGroups: []string{"book:read"}})
	require.NoError(t, err)
	assert.False(t, reviews.Readable)
	require.NotNil(t, reviews.FetchEager)
	assert.False(t, *reviews.FetchEager)

	normalized, err := factory.PropertyMetadata("Book", "reviews", PropertyOptions{NormalizationGroups: []string{"book:read"}})
	require.NoError(t, err)
	assert.False(t, normalized.Readable)

	_, err = factory.PropertyMetadata("Book", "isbn", PropertyOptions{})
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	_, err = factory.PropertyMetadata("Shelf", "id", PropertyOptions{})
	assert.ErrorIs(t, err, ErrResourceClassNotFound)
}

func TestPropertyMetadata_ExplicitWritableIdentifier(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register(&Resource{
		Name: "Country",
		Properties: []PropertyMetadata{
			{Name: "id", Readable: true},
			{Name: "name", Readable: true, Identifier: Bool(false)},
		},
	}))
	factory := NewMappingPropertyFactory(entities{mappingtest.Library()}, r)

	id, err := factory.PropertyMetadata("Country", "id", PropertyOptions{})
	require.NoError(t, err)
	assert.True(t, id.IsIdentifier())
	assert.True(t, id.IsWritable(), "assigned identifiers stay writable")

	name, err := factory.PropertyMetadata("Country", "name", PropertyOptions{})
	require.NoError(t, err)
	assert.False(t, name.IsIdentifier())
}

func TestRelationLinkFactory(t *testing.T) {
	defs := loadDefinitions(t)
	lib := entities{mappingtest.Library()}
	factory := NewRelationLinkFactory(lib, defs.Resources, defs.Resources, NewIdentifierLinkFactory(lib))

	links, err := factory.LinksFromRelations(&Operation{Name: "books", Resource: "Book"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, Link{
		FromProperty: "reviews",
		ToProperty:   "book",
		FromClass:    "Book",
		ToClass:      "Review",
		Identifiers:  []string{"id"},
	}, links[0])

	links, err = factory.LinksFromRelations(&Operation{Name: "authors", Resource: "Author"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "books", links[0].FromProperty)
	assert.Equal(t, "author", links[0].ToProperty)

	ids := factory.LinksFromIdentifiers(&Operation{Resource: "Book"})
	assert.Equal(t, []Link{{Parameter: "id", FromClass: "Book", Identifiers: []string{"id"}}}, ids)

	link, err := factory.LinkFromProperty(&Operation{Resource: "Book"}, "author")
	require.NoError(t, err)
	assert.Equal(t, "Author", link.ToClass)
	assert.Equal(t, []string{"id"}, link.Identifiers)

	_, err = factory.LinkFromProperty(&Operation{Resource: "Book"}, "title")
	assert.ErrorIs(t, err, mapping.ErrNotAnAssociation)
}

func TestContext(t *testing.T) {
	var nilCtx *Context
	assert.False(t, nilCtx.IsGraphQL())
	assert.False(t, nilCtx.HasFilters())
	_, ok := nilCtx.Filter("page")
	assert.False(t, ok)

	ctx := &Context{Filters: map[string]interface{}{"page": "2"}, GraphQLOperationName: "collection_query"}
	assert.True(t, ctx.IsGraphQL())
	page, ok := ctx.Filter("page")
	assert.True(t, ok)
	assert.Equal(t, "2", page)

	clone := ctx.Clone()
	clone.GraphQLOperationName = ""
	assert.True(t, ctx.IsGraphQL())
	assert.NotNil(t, nilCtx.Clone())
}
