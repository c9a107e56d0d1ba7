// Package state provides and processes resource data: collection and item providers
// build the root query, apply links and extensions and run it; processors persist
// and remove records.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/extension"
	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"go.uber.org/zap"
)

// RootAlias is the alias of the resource entity in provider queries
const RootAlias = "o"

// ErrUnmanagedResource is returned for an operation whose resource has no mapped entity
var ErrUnmanagedResource = errors.New("resource is not managed")

// Prepared is a provider query with its extensions applied, ready to run
type Prepared struct {
	Query    *query.SelectBuilder
	Hydrator *hydrate.RelationalHydrator
	Manager  *repository.Manager

	collectionResult extension.ResultCollectionExtension
	itemResult       extension.ResultItemExtension
}

// CollectionProvider loads the collection of a resource
type CollectionProvider struct {
	registry   *repository.Registry
	links      *LinksHandler
	extensions []extension.CollectionExtension
	logger     *zap.Logger
}

// NewCollectionProvider creates a collection provider running extensions in the given order
func NewCollectionProvider(registry *repository.Registry, links *LinksHandler, extensions []extension.CollectionExtension, logger *zap.Logger) *CollectionProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionProvider{registry: registry, links: links, extensions: extensions, logger: logger}
}

// Prepare builds the collection query. Extensions run in order until one that can
// produce the result itself supports the request; the remaining ones are skipped.
func (p *CollectionProvider) Prepare(ctx context.Context, op *metadata.Operation, uriVariables map[string]interface{}, rc *metadata.Context) (*Prepared, error) {
	prepared, names, err := prepare(p.registry, p.links, op, uriVariables, rc)
	if err != nil {
		return nil, err
	}

	for _, ext := range p.extensions {
		if err := ext.ApplyToCollection(ctx, prepared.Query, prepared.Hydrator, names, op.Resource, op, rc); err != nil {
			return nil, err
		}
		if result, ok := ext.(extension.ResultCollectionExtension); ok && result.SupportsResult(op.Resource, op, rc) {
			prepared.collectionResult = result
			break
		}
	}
	return prepared, nil
}

// Provide runs the collection query. Paginated collections come back from the
// pagination extension; others are wrapped in an array paginator.
func (p *CollectionProvider) Provide(ctx context.Context, op *metadata.Operation, uriVariables map[string]interface{}, rc *metadata.Context) (pagination.PartialPaginator, error) {
	prepared, err := p.Prepare(ctx, op, uriVariables, rc)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("providing collection", zap.String("resource", op.Resource), zap.String("operation", op.Name))

	if prepared.collectionResult != nil {
		return prepared.collectionResult.Result(ctx, prepared.Query, prepared.Hydrator, op.Resource, op, rc)
	}

	records, err := prepared.Manager.Query(ctx, prepared.Query, prepared.Hydrator)
	if err != nil {
		return nil, err
	}
	return pagination.NewArray(records, nil, op), nil
}

// ItemProvider loads one record of a resource
type ItemProvider struct {
	registry   *repository.Registry
	links      *LinksHandler
	extensions []extension.ItemExtension
	logger     *zap.Logger
}

// NewItemProvider creates an item provider running extensions in the given order
func NewItemProvider(registry *repository.Registry, links *LinksHandler, extensions []extension.ItemExtension, logger *zap.Logger) *ItemProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemProvider{registry: registry, links: links, extensions: extensions, logger: logger}
}

// Prepare builds the item query
func (p *ItemProvider) Prepare(ctx context.Context, op *metadata.Operation, uriVariables map[string]interface{}, rc *metadata.Context) (*Prepared, error) {
	prepared, names, err := prepare(p.registry, p.links, op, uriVariables, rc)
	if err != nil {
		return nil, err
	}

	for _, ext := range p.extensions {
		if err := ext.ApplyToItem(ctx, prepared.Query, prepared.Hydrator, names, op.Resource, uriVariables, op, rc); err != nil {
			return nil, err
		}
		if result, ok := ext.(extension.ResultItemExtension); ok && result.SupportsResult(op.Resource, op, rc) {
			prepared.itemResult = result
			break
		}
	}
	return prepared, nil
}

// Provide returns the first matching record, or nil when there is none
func (p *ItemProvider) Provide(ctx context.Context, op *metadata.Operation, uriVariables map[string]interface{}, rc *metadata.Context) (hydrate.Record, error) {
	prepared, err := p.Prepare(ctx, op, uriVariables, rc)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("providing item", zap.String("resource", op.Resource), zap.String("operation", op.Name))

	if prepared.itemResult != nil {
		return prepared.itemResult.ItemResult(ctx, prepared.Query, prepared.Hydrator, op.Resource, op, rc)
	}

	records, err := prepared.Manager.Query(ctx, prepared.Query, prepared.Hydrator)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func prepare(registry *repository.Registry, links *LinksHandler, op *metadata.Operation, uriVariables map[string]interface{}, rc *metadata.Context) (*Prepared, query.NameGenerator, error) {
	if op == nil || op.Resource == "" {
		return nil, nil, fmt.Errorf("%w: operation has no resource", ErrUnmanagedResource)
	}
	manager, ok := registry.ManagerFor(op.Resource)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnmanagedResource, op.Resource)
	}

	prepared := &Prepared{
		Query:    manager.CreateQueryBuilder(RootAlias),
		Hydrator: hydrate.NewRelationalHydrator(),
		Manager:  manager,
	}
	names := query.NewNameGenerator()

	if links != nil {
		if err := links.HandleLinks(prepared.Query, uriVariables, names, rc, op.Resource, op); err != nil {
			return nil, nil, err
		}
	}
	return prepared, names, nil
}
