package extension

import (
	"context"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/paging"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
)

// PaginationExtension applies the page window and returns the collection as a paginator
type PaginationExtension struct {
	registry   *repository.Registry
	pagination *pagination.Pagination
}

// NewPaginationExtension creates the extension
func NewPaginationExtension(registry *repository.Registry, p *pagination.Pagination) *PaginationExtension {
	return &PaginationExtension{registry: registry, pagination: p}
}

// ApplyToCollection sets offset and limit. Backward GraphQL pagination without a
// "before" cursor counts the collection first to locate the last page.
func (e *PaginationExtension) ApplyToCollection(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, _ query.NameGenerator, resource string, op *metadata.Operation, rc *metadata.Context) error {
	if !e.SupportsResult(resource, op, rc) {
		return nil
	}

	rc, err := e.withCount(ctx, qb, h, resource, rc)
	if err != nil {
		return err
	}

	_, offset, limit, err := e.pagination.Pagination(op, rc)
	if err != nil {
		return err
	}
	qb.Offset(offset).Limit(limit)
	return nil
}

// SupportsResult reports whether the collection is paginated
func (e *PaginationExtension) SupportsResult(_ string, op *metadata.Operation, rc *metadata.Context) bool {
	if rc.IsGraphQL() {
		return e.pagination.IsGraphQLEnabled(op)
	}
	return e.pagination.IsEnabled(op, rc)
}

// Result wraps the query in a partial or a counted paginator. A limited HTTP query
// joining a to-many association first resolves the identifiers of the page, so that
// joined rows do not shrink it.
func (e *PaginationExtension) Result(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, resource string, op *metadata.Operation, rc *metadata.Context) (pagination.PartialPaginator, error) {
	manager, ok := e.registry.ManagerFor(resource)
	if !ok {
		return pagination.NewArray(nil, nil, op), nil
	}

	qp := paging.New(qb, manager, h)

	var result pagination.PartialPaginator
	if e.pagination.IsPartialEnabled(op, rc) {
		result = pagination.NewPartial(qp)
	} else {
		result = pagination.NewCounted(qp)
	}

	if op != nil {
		required, err := e.needsDistinctQuery(qb, rc)
		if err != nil {
			return nil, err
		}
		if required {
			if err := qp.AddRequiredWhereInClause(ctx); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func (e *PaginationExtension) needsDistinctQuery(qb *query.SelectBuilder, rc *metadata.Context) (bool, error) {
	if rc.IsGraphQL() {
		return false, nil
	}
	if limit, ok := qb.LimitValue(); !ok || limit <= 0 {
		return false, nil
	}
	return joinsToMany(qb)
}

// joinsToMany reports whether any association join of qb is to-many
func joinsToMany(qb *query.SelectBuilder) (bool, error) {
	joins := qb.AllJoins()
	if len(joins) == 0 {
		return false, nil
	}
	aliases, err := qb.AliasEntities()
	if err != nil {
		return false, err
	}
	for _, j := range joins {
		parent, association, ok := j.Association()
		if !ok {
			continue
		}
		cm, ok := aliases[parent]
		if !ok || !cm.HasAssociation(association) {
			continue
		}
		assoc, err := cm.AssociationMapping(association)
		if err != nil {
			return false, err
		}
		if assoc.Type == mapping.ToMany {
			return true, nil
		}
	}
	return false, nil
}

func (e *PaginationExtension) withCount(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, resource string, rc *metadata.Context) (*metadata.Context, error) {
	if !rc.IsGraphQL() {
		return rc, nil
	}
	manager, ok := e.registry.ManagerFor(resource)
	if !ok {
		return rc, nil
	}
	if _, last := rc.Filter(pagination.Last); !last {
		return rc, nil
	}
	if _, before := rc.Filter(pagination.Before); before {
		return rc, nil
	}

	count, err := paging.New(qb, manager, h).Count(ctx)
	if err != nil {
		return nil, err
	}
	rc = rc.Clone()
	rc.Count = &count
	return rc, nil
}
