package extension

import (
	"context"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/filter"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// FilterExtension applies the filters declared on the operation
type FilterExtension struct {
	locator *filter.Locator
	logger  *zap.Logger
}

// NewFilterExtension creates the extension reading filters from locator
func NewFilterExtension(locator *filter.Locator, logger *zap.Logger) *FilterExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterExtension{locator: locator, logger: logger}
}

// ApplyToCollection runs every filter of op in declaration order. Ids the locator does
// not know are skipped.
func (e *FilterExtension) ApplyToCollection(_ context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, rc *metadata.Context) error {
	if op == nil || len(op.Filters) == 0 {
		return nil
	}

	for _, id := range op.Filters {
		f, ok := e.locator.Get(id)
		if !ok {
			e.logger.Debug("filter not found", zap.String("filter", id), zap.String("resource", resource))
			continue
		}
		if err := f.Apply(qb, h, names, resource, op, rc); err != nil {
			return fmt.Errorf("filter %s: %w", id, err)
		}
	}
	return nil
}
