package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFilter(t *testing.T) {
	tests := []struct {
		name       string
		properties map[string]interface{}
		value      map[string]interface{}
		sql        string
		args       []interface{}
	}{
		{
			name:  "without null management",
			value: map[string]interface{}{"before": "2024-03-01"},
			sql:   selectBooks + ` WHERE o.published_at <= $1`,
			args:  []interface{}{"2024-03-01 00:00:00"},
		},
		{
			name:       "exclude null",
			properties: map[string]interface{}{"publishedAt": ExcludeNull},
			value:      map[string]interface{}{"strictly_after": "2024-03-01T08:30:00Z"},
			sql:        selectBooks + ` WHERE o.published_at IS NOT NULL AND o.published_at > $1`,
			args:       []interface{}{"2024-03-01 08:30:00"},
		},
		{
			name:       "include null after",
			properties: map[string]interface{}{"publishedAt": IncludeNullAfter},
			value: map[string]interface{}{
				"after":           "2024-01-02",
				"strictly_before": "2024-02-01T10:00:00Z",
			},
			sql: selectBooks +
				` WHERE (o.published_at < $1 OR o.published_at IS NOT NULL)` +
				` AND (o.published_at >= $2 OR o.published_at IS NULL)`,
			args: []interface{}{"2024-02-01 10:00:00", "2024-01-02 00:00:00"},
		},
		{
			name:       "include null before and after",
			properties: map[string]interface{}{"publishedAt": IncludeNullBeforeAndAfter},
			value:      map[string]interface{}{"before": "2024-01-02 12:00"},
			sql:        selectBooks + ` WHERE (o.published_at <= $1 OR o.published_at IS NULL)`,
			args:       []interface{}{"2024-01-02 12:00:00"},
		},
		{
			name:       "unknown null management",
			properties: map[string]interface{}{"publishedAt": "sometimes"},
			value:      map[string]interface{}{"after": "2024-01-02"},
			sql:        selectBooks + ` WHERE o.published_at >= $1`,
			args:       []interface{}{"2024-01-02 00:00:00"},
		},
		{
			name:  "wrong format",
			value: map[string]interface{}{"after": "yesterday"},
			sql:   selectBooks,
		},
		{
			name:  "unknown operator",
			value: map[string]interface{}{"around": "2024-01-02"},
			sql:   selectBooks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.properties)
			sql, args := apply(t, NewDateFilter(h.cfg), map[string]interface{}{"publishedAt": tt.value})
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDateFilter_Logs(t *testing.T) {
	h := newHarness(map[string]interface{}{"publishedAt": "sometimes"})

	apply(t, NewDateFilter(h.cfg), map[string]interface{}{
		"publishedAt": map[string]interface{}{"after": "yesterday"},
	})

	assert.Equal(t, 1, h.logs.FilterMessage("Invalid filter configuration").Len())
	assert.Equal(t, 1, h.ignored())
	assert.Equal(t, `The field "publishedAt" has a wrong date format`, h.lastError())
}

func TestDateFilter_Nested(t *testing.T) {
	h := newHarness(map[string]interface{}{"author.birthDate": nil})

	sql, args := apply(t, NewDateFilter(h.cfg), map[string]interface{}{
		"author.birthDate": map[string]interface{}{"before": "1990-05-01T13:00:00Z"},
		"publishedAt":      map[string]interface{}{"before": "2024-01-01"},
	})
	assert.Equal(t, selectBooks+
		` INNER JOIN author AS author_a1 ON o.author_id = author_a1.id`+
		` WHERE author_a1.birth_date <= $1`, sql)
	assert.Equal(t, []interface{}{"1990-05-01"}, args)
}

func TestDateFilter_IgnoresScalarValues(t *testing.T) {
	h := newHarness(nil)

	sql, _ := apply(t, NewDateFilter(h.cfg), map[string]interface{}{"publishedAt": "2024-01-01"})
	assert.Equal(t, selectBooks, sql)
}

func TestDateFilter_Description(t *testing.T) {
	h := newHarness(nil)

	desc, err := NewDateFilter(h.cfg).Description("Book")
	require.NoError(t, err)
	assert.Equal(t, map[string]Description{
		"publishedAt[before]":          {Property: "publishedAt", Type: TypeDateTime},
		"publishedAt[strictly_before]": {Property: "publishedAt", Type: TypeDateTime},
		"publishedAt[after]":           {Property: "publishedAt", Type: TypeDateTime},
		"publishedAt[strictly_after]":  {Property: "publishedAt", Type: TypeDateTime},
	}, desc)
}
