package filter

import (
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// OffsetFilter documents the offset parameter; the pagination extension applies it
type OffsetFilter struct{}

func (OffsetFilter) Apply(*query.SelectBuilder, *hydrate.RelationalHydrator, query.NameGenerator, string, *metadata.Operation, *metadata.Context) error {
	return nil
}

func (OffsetFilter) Description(string) (map[string]Description, error) {
	return map[string]Description{
		"offset": {Property: "offset", Type: TypeInt},
	}, nil
}
