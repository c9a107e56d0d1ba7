// Package mappingtest provides a small library domain shared by package tests.
package mappingtest

import "github.com/conduit-lang/apiorm/internal/orm/mapping"

// Library returns a registry with Book, Author, Review and Country entities.
//
//	Book    -> author (to-one, nullable), reviews (to-many, mapped by book)
//	Author  -> books (to-many), country (to-one), mentor (to-one, self)
//	Review  -> book (to-one, inversed by reviews)
//	Country
func Library() *mapping.Registry {
	r := mapping.NewRegistry()
	r.MustRegister(
		&mapping.Entity{
			Name:  "Book",
			Table: "book",
			Fields: []mapping.Field{
				{Name: "id", Column: "id", Type: mapping.TypeInt, Primary: true, AutoIncrement: true},
				{Name: "title", Column: "title", Type: mapping.TypeString},
				{Name: "isbn", Column: "isbn", Type: mapping.TypeString},
				{Name: "price", Column: "price", Type: mapping.TypeDouble},
				{Name: "published", Column: "published", Type: mapping.TypeBool},
				{Name: "publishedAt", Column: "published_at", Type: mapping.TypeDateTime, Nullable: true},
				{Name: "pages", Column: "pages", Type: mapping.TypeInt, Nullable: true},
				{Name: "status", Column: "status", Type: mapping.TypeString},
				{Name: "reference", Column: "reference", Type: mapping.TypeUUID},
				{Name: "authorId", Column: "author_id", Type: mapping.TypeInt, Nullable: true},
			},
			Associations: []*mapping.Association{
				{
					FieldName:    "author",
					TargetEntity: "Author",
					JoinColumns:  []mapping.JoinColumn{{Source: "author_id", Target: "id"}},
					Type:         mapping.ToOne,
					Nullable:     true,
					InversedBy:   "books",
				},
				{
					FieldName:    "reviews",
					TargetEntity: "Review",
					JoinColumns:  []mapping.JoinColumn{{Source: "id", Target: "book_id"}},
					Type:         mapping.ToMany,
					MappedBy:     "book",
				},
			},
		},
		&mapping.Entity{
			Name:  "Author",
			Table: "author",
			Fields: []mapping.Field{
				{Name: "id", Column: "id", Type: mapping.TypeInt, Primary: true, AutoIncrement: true},
				{Name: "name", Column: "name", Type: mapping.TypeString},
				{Name: "birthDate", Column: "birth_date", Type: mapping.TypeDate, Nullable: true},
				{Name: "countryId", Column: "country_id", Type: mapping.TypeInt},
				{Name: "mentorId", Column: "mentor_id", Type: mapping.TypeInt, Nullable: true},
			},
			Associations: []*mapping.Association{
				{
					FieldName:    "books",
					TargetEntity: "Book",
					JoinColumns:  []mapping.JoinColumn{{Source: "id", Target: "author_id"}},
					Type:         mapping.ToMany,
					MappedBy:     "author",
				},
				{
					FieldName:    "country",
					TargetEntity: "Country",
					JoinColumns:  []mapping.JoinColumn{{Source: "country_id", Target: "id"}},
					Type:         mapping.ToOne,
					Fetch:        mapping.FetchEager,
				},
				{
					FieldName:    "mentor",
					TargetEntity: "Author",
					JoinColumns:  []mapping.JoinColumn{{Source: "mentor_id", Target: "id"}},
					Type:         mapping.ToOne,
					Nullable:     true,
				},
			},
		},
		&mapping.Entity{
			Name:  "Review",
			Table: "review",
			Fields: []mapping.Field{
				{Name: "id", Column: "id", Type: mapping.TypeInt, Primary: true, AutoIncrement: true},
				{Name: "body", Column: "body", Type: mapping.TypeString},
				{Name: "rating", Column: "rating", Type: mapping.TypeInt},
				{Name: "bookId", Column: "book_id", Type: mapping.TypeInt},
			},
			Associations: []*mapping.Association{
				{
					FieldName:    "book",
					TargetEntity: "Book",
					JoinColumns:  []mapping.JoinColumn{{Source: "book_id", Target: "id"}},
					Type:         mapping.ToOne,
					InversedBy:   "reviews",
				},
			},
		},
		&mapping.Entity{
			Name:  "Country",
			Table: "country",
			Fields: []mapping.Field{
				{Name: "id", Column: "id", Type: mapping.TypeInt, Primary: true},
				{Name: "name", Column: "name", Type: mapping.TypeString},
			},
		},
	)

	if err := r.Validate(); err != nil {
		panic(err)
	}
	return r
}
