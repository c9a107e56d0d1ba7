package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "NAME", "KIND")
	table.AddRow("books", "get_collection")
	table.AddRow("book")

	table.Render()

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, "NAME   KIND\n"+
		"─────  ──────────────\n"+
		"books  get_collection\n"+
		"book\n", buf.String())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValues(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValues(&buf, true)
	kv.Add("Version", "1.0")
	kv.Add("Go", "go1.23")
	kv.Render()

	assert.Equal(t, "Version: 1.0\nGo:      go1.23\n", buf.String())
}

func TestFailure_Format(t *testing.T) {
	f := NotFound("resource", "Bok", []string{"Author", "Book", "Review"}, []string{"List resources: apiorm describe"}, true)

	assert.Equal(t, "✗ RESOURCE NOT FOUND: Cannot find resource 'Bok'.\n"+
		"\n   Did you mean: Book?\n"+
		"\n   → List resources: apiorm describe\n", f.Format())
	assert.Equal(t, "resource not found: Cannot find resource 'Bok'.", f.Error())
}

func TestFailure_Minimal(t *testing.T) {
	f := Failure{Problem: "Something failed.", NoColor: true}
	assert.Equal(t, "✗ Something failed.\n", f.Format())

	var buf bytes.Buffer
	f.Write(&buf)
	assert.Equal(t, f.Format(), buf.String())
}

func TestSuccess(t *testing.T) {
	assert.Equal(t, "✓ done", Success("done", true))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"book", "book", 0},
		{"book", "books", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"books", "book", "book_reviews", "authors"}

	assert.Equal(t, []string{"book"}, FindSimilar("bok", candidates, 0))
	assert.Equal(t, []string{"book", "books"}, FindSimilar("bok", candidates, 2))
	assert.Equal(t, []string{"authors"}, FindSimilar("Autors", candidates, 0))
	assert.Empty(t, FindSimilar("country", candidates, 0))
	assert.Len(t, FindSimilar("b", []string{"a", "c", "d", "e"}, 1), MaxSuggestions)
}
