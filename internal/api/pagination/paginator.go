package pagination

import (
	"context"
	"math"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/paging"
)

// PartialPaginator is a page of results without a total count
type PartialPaginator interface {
	Items(ctx context.Context) ([]hydrate.Record, error)
	// Count returns the number of items on the page
	Count(ctx context.Context) (int, error)
	CurrentPage() float64
	ItemsPerPage() float64
}

// Paginator is a page of results that knows the size of the whole collection
type Paginator interface {
	PartialPaginator
	TotalItems(ctx context.Context) (float64, error)
	LastPage(ctx context.Context) (float64, error)
}

// Partial pages a query without counting the collection
type Partial struct {
	paginator *paging.QueryPaginator
	offset    int
	limit     int
	items     []hydrate.Record
	loaded    bool
}

// NewPartial reads offset and limit from the paginated query
func NewPartial(p *paging.QueryPaginator) *Partial {
	qb := p.QueryBuilder()
	limit, _ := qb.LimitValue()
	return &Partial{
		paginator: p,
		offset:    qb.OffsetValue(),
		limit:     limit,
	}
}

// Items runs the query once and returns the page
func (p *Partial) Items(ctx context.Context) ([]hydrate.Record, error) {
	if p.loaded {
		return p.items, nil
	}
	items, err := p.paginator.Items(ctx)
	if err != nil {
		return nil, err
	}
	p.items, p.loaded = items, true
	return items, nil
}

func (p *Partial) Count(ctx context.Context) (int, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (p *Partial) CurrentPage() float64 {
	if p.limit <= 0 {
		return 1
	}
	return math.Floor(float64(p.offset)/float64(p.limit)) + 1
}

func (p *Partial) ItemsPerPage() float64 {
	return float64(p.limit)
}

// Counted pages a query and counts the matching collection
type Counted struct {
	*Partial
	total *int
}

// NewCounted creates a paginator reporting totals. The window is read from the query
// before AddRequiredWhereInClause replaces it, so build it first.
func NewCounted(p *paging.QueryPaginator) *Counted {
	return &Counted{Partial: NewPartial(p)}
}

// TotalItems counts the matching root records, once
func (p *Counted) TotalItems(ctx context.Context) (float64, error) {
	if p.total == nil {
		n, err := p.paginator.Count(ctx)
		if err != nil {
			return 0, err
		}
		p.total = &n
	}
	return float64(*p.total), nil
}

// LastPage returns the number of pages, at least 1
func (p *Counted) LastPage(ctx context.Context) (float64, error) {
	if p.limit <= 0 {
		return 1, nil
	}
	total, err := p.TotalItems(ctx)
	if err != nil {
		return 0, err
	}
	last := math.Ceil(total / float64(p.limit))
	if last == 0 {
		return 1, nil
	}
	return last, nil
}

// Array pages records that were loaded already. It cannot count the collection:
// TotalItems and LastPage are always 0.
type Array struct {
	items       []hydrate.Record
	maxResults  int
	firstResult int
}

// NewArray wraps items with the window config resolved for op
func NewArray(items []hydrate.Record, config *Config, op *metadata.Operation) *Array {
	a := &Array{items: items}
	if config != nil && config.Enabled() {
		a.maxResults = config.ItemsPerPage()
		a.firstResult = config.ByResource(op.Resource).Offset
	}
	return a
}

func (a *Array) Items(context.Context) ([]hydrate.Record, error) {
	return a.items, nil
}

func (a *Array) Count(context.Context) (int, error) {
	return len(a.items), nil
}

func (a *Array) CurrentPage() float64 {
	if a.maxResults <= 0 {
		return 1
	}
	return math.Floor(float64(a.firstResult)/float64(a.maxResults)) + 1
}

func (a *Array) ItemsPerPage() float64 {
	return float64(a.maxResults)
}

func (a *Array) TotalItems(context.Context) (float64, error) {
	return 0, nil
}

func (a *Array) LastPage(context.Context) (float64, error) {
	return 0, nil
}
