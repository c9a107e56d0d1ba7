package query

import (
	"testing"

	"github.com/conduit-lang/apiorm/internal/orm/mapping/mappingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameGenerator(t *testing.T) {
	g := NewNameGenerator()

	assert.Equal(t, "author_a1", g.JoinAlias("author"))
	assert.Equal(t, "author_a2", g.JoinAlias("author"))
	assert.Equal(t, "author_name_p1", g.ParameterName("author.name"))
	assert.Equal(t, "title_p2", g.ParameterName("title"))
	assert.Equal(t, "o_a3", g.JoinAlias("o"))
}

func TestAddJoinOnce(t *testing.T) {
	qb := NewSelectBuilder(mappingtest.Library()).Select("o").From("Book", "o")
	names := NewNameGenerator()

	alias := AddJoinOnce(qb, names, "o", "author", nil)
	assert.Equal(t, "author_a1", alias)
	assert.Equal(t, InnerJoin, qb.AllJoins()[0].Type)

	again := AddJoinOnce(qb, names, "o", "author", JoinTypePtr(LeftJoin))
	assert.Equal(t, "author_a1", again)
	assert.Len(t, qb.AllJoins(), 1)

	left := AddJoinOnce(qb, names, "o", "reviews", JoinTypePtr(LeftJoin))
	assert.Equal(t, "reviews_a2", left)
	assert.True(t, HasLeftJoin(qb))

	// once a left join exists every new join is a left join
	country := AddJoinOnce(qb, names, "author_a1", "country", nil)
	assert.Equal(t, LeftJoin, ExistingJoin(qb, "author_a1", "country").Type)
	assert.Equal(t, "country_a3", country)

	assert.Nil(t, ExistingJoin(qb, "o", "nothing"))
}

func TestAddJoinOnceAs(t *testing.T) {
	qb := NewSelectBuilder(mappingtest.Library()).Select("o").From("Book", "o")

	assert.Equal(t, "x", AddJoinOnceAs(qb, "o", "author", InnerJoin, "x"))
	assert.Equal(t, "x", AddJoinOnceAs(qb, "o", "author", LeftJoin, "y"))
	assert.False(t, HasLeftJoin(qb))
}

func TestIn(t *testing.T) {
	qb := NewSelectBuilder(mappingtest.Library()).Select("o.id").From("Book", "o")
	In(qb, "o", "pages", []interface{}{10, 20}, "pages_p1")

	assert.Equal(t, []string{"o.pages IN (:pages_p1_0, :pages_p1_1)"}, qb.Wheres())

	sql, args, err := qb.Statement(Postgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT o.id AS "o__id" FROM book AS o WHERE o.pages IN ($1, $2)`, sql)
	assert.Equal(t, []interface{}{10, 20}, args)
}

func TestDialects(t *testing.T) {
	tests := []struct {
		dialect       Dialect
		limit, offset int
		want          string
	}{
		{Postgres, 0, 0, ""},
		{Postgres, 0, 5, " OFFSET 5"},
		{Postgres, 3, 5, " LIMIT 3 OFFSET 5"},
		{MySQL, 3, 0, " LIMIT 3"},
		{MySQL, 0, 5, " LIMIT 18446744073709551615 OFFSET 5"},
		{SQLite, 0, 5, " LIMIT -1 OFFSET 5"},
		{SQLite, 2, 4, " LIMIT 2 OFFSET 4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dialect.LimitOffset(tt.limit, tt.offset), tt.dialect.Name())
	}

	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", MySQL.Placeholder(3))
	assert.Equal(t, "`a``b`", MySQL.QuoteIdentifier("a`b"))
	assert.True(t, Postgres.SupportsReturning())
	assert.False(t, SQLite.SupportsReturning())

	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestReferencesAlias(t *testing.T) {
	tests := []struct {
		expr  string
		alias string
		want  bool
	}{
		{"author_a1.name = :name_p1", "author_a1", true},
		{"(o.id = :id_p1 OR author_a1.name IS NULL)", "author_a1", true},
		{"author_a10.name = :name_p1", "author_a1", false},
		{"my_author_a1.name = :name_p1", "author_a1", false},
		{"o.author_a1 = 1", "author_a1", false},
		{"author_a10.name = 1 AND author_a1.id = 2", "author_a1", true},
		{"author_a1 IS NULL", "author_a1", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReferencesAlias(tt.expr, tt.alias), "%q in %q", tt.alias, tt.expr)
	}
}
