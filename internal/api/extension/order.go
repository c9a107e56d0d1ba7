package extension

import (
	"context"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// OrderExtension gives collections a stable default order: the order declared on the
// operation, or else the identifiers in the configured direction.
type OrderExtension struct {
	managers metadata.ClassMetadataProvider
	// order is the direction of the identifier fallback; empty disables it
	order string
}

// NewOrderExtension creates the extension
func NewOrderExtension(managers metadata.ClassMetadataProvider, order string) *OrderExtension {
	return &OrderExtension{managers: managers, order: order}
}

// ApplyToCollection does nothing when the query is already ordered, by an order filter for instance
func (e *OrderExtension) ApplyToCollection(_ context.Context, qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, _ *metadata.Context) error {
	if qb.HasOrderBy() {
		return nil
	}
	cm, ok := e.managers.ClassMetadata(resource)
	if !ok {
		return nil
	}
	rootAlias, err := qb.RootAlias()
	if err != nil {
		return err
	}

	if op != nil && len(op.Order) > 0 {
		for _, o := range op.Order {
			direction := o.Direction
			if direction == "" {
				direction = "ASC"
			}

			parts := strings.Split(o.Property, ".")
			alias := rootAlias
			for _, association := range parts[:len(parts)-1] {
				alias = query.AddJoinOnce(qb, names, alias, association, nil)
			}
			qb.OrderBy(alias+"."+parts[len(parts)-1], direction)
		}
		return nil
	}

	if e.order == "" {
		return nil
	}
	for _, id := range cm.IdentifierFieldNames() {
		qb.OrderBy(rootAlias+"."+id, e.order)
	}
	return nil
}
