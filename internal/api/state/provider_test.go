package state

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/conduit-lang/apiorm/internal/api/extension"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping/mappingtest"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectCountries = `SELECT o.id AS "o__id", o.name AS "o__name" FROM country AS o`

func setupRegistry(t *testing.T) (*repository.Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repository.NewRegistry(mappingtest.Library(), db, query.Postgres, nil), mock
}

type recordingExtension struct {
	calls int
	err   error
}

func (e *recordingExtension) ApplyToCollection(context.Context, *query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, *metadata.Operation, *metadata.Context) error {
	e.calls++
	return e.err
}

func (e *recordingExtension) ApplyToItem(context.Context, *query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, map[string]interface{}, *metadata.Operation, *metadata.Context) error {
	e.calls++
	return e.err
}

func countriesRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"o__id", "o__name"}).
		AddRow("fr", "France").
		AddRow("it", "Italy")
}

func TestCollectionProvider_WithoutExtensions(t *testing.T) {
	registry, mock := setupRegistry(t)
	mock.ExpectQuery(selectCountries).WillReturnRows(countriesRows())

	provider := NewCollectionProvider(registry, NewLinksHandler(registry, nil), nil, nil)
	op := &metadata.Operation{Kind: metadata.GetCollection, Resource: "Country"}

	result, err := provider.Provide(context.Background(), op, nil, &metadata.Context{})
	require.NoError(t, err)
	_, ok := result.(*pagination.Array)
	require.True(t, ok)

	items, err := result.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []hydrate.Record{{"id": "fr", "name": "France"}, {"id": "it", "name": "Italy"}}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionProvider_StopsAtResultExtension(t *testing.T) {
	registry, mock := setupRegistry(t)
	mock.ExpectQuery(selectCountries + ` ORDER BY o.id ASC LIMIT 30`).WillReturnRows(countriesRows())

	after := &recordingExtension{}
	extensions := []extension.CollectionExtension{
		extension.NewOrderExtension(registry, "ASC"),
		extension.NewPaginationExtension(registry, pagination.New(pagination.DefaultOptions())),
		after,
	}
	provider := NewCollectionProvider(registry, nil, extensions, nil)
	op := &metadata.Operation{Kind: metadata.GetCollection, Resource: "Country"}

	result, err := provider.Provide(context.Background(), op, nil, &metadata.Context{})
	require.NoError(t, err)
	_, ok := result.(*pagination.Counted)
	require.True(t, ok)
	assert.Zero(t, after.calls)

	n, err := result.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionProvider_Prepare(t *testing.T) {
	registry, _ := setupRegistry(t)
	ext := &recordingExtension{}
	provider := NewCollectionProvider(registry, NewLinksHandler(registry, nil), []extension.CollectionExtension{ext}, nil)
	op := &metadata.Operation{Kind: metadata.GetCollection, Resource: "Review", URIVariables: []metadata.Link{
		{Parameter: "bookId", FromClass: "Book", ToProperty: "book", Identifiers: []string{"id"}},
	}}

	prepared, err := provider.Prepare(context.Background(), op, map[string]interface{}{"bookId": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls)
	assert.Equal(t, "Review", prepared.Manager.ClassMetadata().Name())
	assert.Equal(t, []string{"o_a1.id = :id_p1"}, prepared.Query.Wheres())
}

func TestCollectionProvider_Errors(t *testing.T) {
	registry, _ := setupRegistry(t)

	provider := NewCollectionProvider(registry, nil, nil, nil)
	_, err := provider.Provide(context.Background(), &metadata.Operation{Kind: metadata.GetCollection, Resource: "Shelf"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnmanagedResource)
	_, err = provider.Provide(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnmanagedResource)

	boom := errors.New("boom")
	provider = NewCollectionProvider(registry, nil, []extension.CollectionExtension{&recordingExtension{err: boom}}, nil)
	_, err = provider.Provide(context.Background(), &metadata.Operation{Kind: metadata.GetCollection, Resource: "Country"}, nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestItemProvider_Provide(t *testing.T) {
	registry, mock := setupRegistry(t)
	mock.ExpectQuery(selectCountries + ` WHERE o.id = $1`).
		WithArgs("fr").
		WillReturnRows(sqlmock.NewRows([]string{"o__id", "o__name"}).AddRow("fr", "France"))
	mock.ExpectQuery(selectCountries + ` WHERE o.id = $1`).
		WithArgs("xx").
		WillReturnRows(sqlmock.NewRows([]string{"o__id", "o__name"}))

	ext := &recordingExtension{}
	provider := NewItemProvider(registry, NewLinksHandler(registry, nil), []extension.ItemExtension{ext}, nil)
	op := &metadata.Operation{Kind: metadata.Get, Resource: "Country", URIVariables: []metadata.Link{
		{Parameter: "id", FromClass: "Country", Identifiers: []string{"id"}},
	}}

	record, err := provider.Provide(context.Background(), op, map[string]interface{}{"id": "fr"}, nil)
	require.NoError(t, err)
	assert.Equal(t, hydrate.Record{"id": "fr", "name": "France"}, record)

	record, err = provider.Provide(context.Background(), op, map[string]interface{}{"id": "xx"}, nil)
	require.NoError(t, err)
	assert.Nil(t, record)

	assert.Equal(t, 2, ext.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemProvider_MissingVariable(t *testing.T) {
	registry, _ := setupRegistry(t)
	provider := NewItemProvider(registry, NewLinksHandler(registry, nil), nil, nil)
	op := &metadata.Operation{Kind: metadata.Get, Resource: "Country", URIVariables: []metadata.Link{
		{Parameter: "id", FromClass: "Country", Identifiers: []string{"id"}},
	}}

	_, err := provider.Provide(context.Background(), op, map[string]interface{}{"a": 1, "b": 2}, nil)
	assert.ErrorIs(t, err, ErrMissingURIVariable)
}
