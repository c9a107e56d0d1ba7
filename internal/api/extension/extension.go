// Package extension holds the query extensions run by the state providers. Each
// extension adds to the select builder of a collection or item query: filters, the
// joins of eager loading, default ordering and pagination. Extensions implementing a
// result interface may also take over the execution of the query.
package extension

import (
	"context"
	"sort"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/api/pagination"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// Default priorities. Extensions with a higher priority run first.
const (
	PriorityFilter             = -16
	PriorityFilterEagerLoading = -17
	PriorityEagerLoading       = -18
	PriorityItemEagerLoading   = -8
	PriorityOrder              = -32
	PriorityPagination         = -64
)

// CollectionExtension modifies the query of a collection operation
type CollectionExtension interface {
	ApplyToCollection(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, rc *metadata.Context) error
}

// ItemExtension modifies the query of an item operation
type ItemExtension interface {
	ApplyToItem(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, identifiers map[string]interface{}, op *metadata.Operation, rc *metadata.Context) error
}

// ResultCollectionExtension executes the collection query itself when it supports the request
type ResultCollectionExtension interface {
	CollectionExtension
	SupportsResult(resource string, op *metadata.Operation, rc *metadata.Context) bool
	Result(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, resource string, op *metadata.Operation, rc *metadata.Context) (pagination.PartialPaginator, error)
}

// ResultItemExtension executes the item query itself when it supports the request
type ResultItemExtension interface {
	ItemExtension
	SupportsResult(resource string, op *metadata.Operation, rc *metadata.Context) bool
	ItemResult(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, resource string, op *metadata.Operation, rc *metadata.Context) (hydrate.Record, error)
}

type entry struct {
	priority int
	seq      int
	ext      interface{}
}

// Chain keeps collection and item extensions sorted by priority. Extensions sharing
// a priority keep their registration order.
type Chain struct {
	collection []entry
	item       []entry
	seq        int
}

// NewChain creates an empty chain
func NewChain() *Chain {
	return &Chain{}
}

// AddCollection registers a collection extension
func (c *Chain) AddCollection(ext CollectionExtension, priority int) *Chain {
	c.collection = c.insert(c.collection, ext, priority)
	return c
}

// AddItem registers an item extension
func (c *Chain) AddItem(ext ItemExtension, priority int) *Chain {
	c.item = c.insert(c.item, ext, priority)
	return c
}

func (c *Chain) insert(list []entry, ext interface{}, priority int) []entry {
	c.seq++
	list = append(list, entry{priority: priority, seq: c.seq, ext: ext})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	return list
}

// CollectionExtensions returns the collection extensions in execution order
func (c *Chain) CollectionExtensions() []CollectionExtension {
	out := make([]CollectionExtension, len(c.collection))
	for i, e := range c.collection {
		out[i] = e.ext.(CollectionExtension)
	}
	return out
}

// ItemExtensions returns the item extensions in execution order
func (c *Chain) ItemExtensions() []ItemExtension {
	out := make([]ItemExtension, len(c.item))
	for i, e := range c.item {
		out[i] = e.ext.(ItemExtension)
	}
	return out
}
