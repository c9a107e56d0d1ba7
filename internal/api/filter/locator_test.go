package filter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/cache"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFilter struct {
	calls int
	desc  map[string]Description
}

func (f *countingFilter) Apply(*query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, *metadata.Operation, *metadata.Context) error {
	return nil
}

func (f *countingFilter) Description(string) (map[string]Description, error) {
	f.calls++
	return f.desc, nil
}

func TestNewLocatorFromDefinitions(t *testing.T) {
	h := newHarness(nil)

	l, err := NewLocatorFromDefinitions([]metadata.FilterDefinition{
		{ID: "book.search", Type: TypeSearch, Properties: map[string]interface{}{"title": "ipartial"}},
		{ID: "book.order", Type: TypeOrder, Options: map[string]string{"parameter": "sort", "nulls_comparison": NullsSmallest}},
		{ID: "book.published", Type: TypeBoolean},
		{ID: "book.numeric", Type: TypeNumeric},
		{ID: "book.date", Type: TypeDate},
		{ID: "book.range", Type: TypeRange},
		{ID: "book.q", Type: TypeFullTextSearch},
		{ID: "book.exists", Type: TypeExists},
		{ID: "book.status", Type: TypeEnum},
		{ID: "offset", Type: TypeOffset},
	}, h.cfg)
	require.NoError(t, err)

	assert.Len(t, l.IDs(), 10)
	assert.Equal(t, "book.date", l.IDs()[0])

	f, ok := l.Get("book.order")
	require.True(t, ok)
	order, ok := f.(*OrderFilter)
	require.True(t, ok)
	assert.Equal(t, "sort", order.parameter)
	assert.Equal(t, NullsSmallest, order.nullsComparison)

	f, _ = l.Get("book.search")
	assert.Equal(t, map[string]interface{}{"title": "ipartial"}, f.(*SearchFilter).properties)

	_, ok = l.Get("book.missing")
	assert.False(t, ok)
}

func TestNewLocatorFromDefinitions_UnknownType(t *testing.T) {
	_, err := NewLocatorFromDefinitions([]metadata.FilterDefinition{{ID: "book.geo", Type: "geo"}}, newHarness(nil).cfg)
	assert.EqualError(t, err, `filter book.geo: unknown type "geo"`)
}

func TestDescriptions(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	defer c.Close()

	first := &countingFilter{desc: map[string]Description{
		"title": {Property: "title", Type: TypeString, Strategy: StrategyExact},
	}}
	second := &countingFilter{desc: map[string]Description{
		"title":        {Property: "title", Type: TypeBool},
		"order[title]": {Property: "title", Type: TypeString, Schema: &Schema{Type: TypeString, Enum: []string{"asc", "desc"}}},
	}}

	l := NewLocator()
	l.Register("first", first)
	l.Register("second", second)

	want := map[string]Description{
		"title":        {Property: "title", Type: TypeString, Strategy: StrategyExact},
		"order[title]": {Property: "title", Type: TypeString, Schema: &Schema{Type: TypeString, Enum: []string{"asc", "desc"}}},
	}

	for i := 0; i < 3; i++ {
		desc, err := Descriptions(ctx, l, c, time.Minute, "Book", []string{"first", "missing", "second"})
		require.NoError(t, err)
		assert.Equal(t, want, desc)
	}
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	exists, err := c.Exists(ctx, descriptionKey("first", "Book"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDescriptions_WithoutCache(t *testing.T) {
	f := &countingFilter{desc: map[string]Description{"offset": {Property: "offset", Type: TypeInt}}}
	l := NewLocator()
	l.Register("offset", f)

	for i := 0; i < 2; i++ {
		_, err := Descriptions(context.Background(), l, nil, 0, "Book", []string{"offset"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.calls)
}

func TestDescriptions_Error(t *testing.T) {
	h := newHarness(nil)
	l := NewLocator()
	l.Register("book.search", NewSearchFilter(h.cfg))

	_, err := Descriptions(context.Background(), l, cache.NewMemoryCache(), time.Minute, "Shelf", []string{"book.search"})
	assert.ErrorIs(t, err, metadata.ErrResourceClassNotFound)
	assert.ErrorContains(t, err, "failed to describe filter book.search on Shelf")
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cache.DefaultConfig())
	defer c.Close()

	h := newHarness(map[string]interface{}{"title": "ipartial"})
	l := NewLocator()
	l.Register("search", NewSearchFilter(h.cfg))
	l.Register("offset", OffsetFilter{})

	n, err := Warm(ctx, l, c, time.Hour, []string{"Book", "Author"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var desc map[string]Description
	require.NoError(t, cache.GetObject(ctx, c, descriptionKey("search", "Book"), &desc))
	assert.Equal(t, map[string]Description{
		"title": {Property: "title", Type: TypeString, Strategy: "ipartial"},
	}, desc)

	// the search filter declares no mapped property on Author
	desc = nil
	require.NoError(t, cache.GetObject(ctx, c, descriptionKey("search", "Author"), &desc))
	assert.Empty(t, desc)

	_, err = Warm(ctx, l, c, time.Hour, []string{"Shelf"})
	assert.Error(t, err)
}
