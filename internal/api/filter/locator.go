package filter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/cache"
)

// Filter types accepted in filter definitions
const (
	TypeBoolean        = "boolean"
	TypeNumeric        = "numeric"
	TypeDate           = "date"
	TypeRange          = "range"
	TypeSearch         = "search"
	TypeFullTextSearch = "full_text_search"
	TypeOrder          = "order"
	TypeExists         = "exists"
	TypeEnum           = "enum"
	TypeOffset         = "offset"
)

// Locator finds filters by id
type Locator struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

// NewLocator creates an empty locator
func NewLocator() *Locator {
	return &Locator{filters: make(map[string]Filter)}
}

// Register adds a filter under id, replacing any previous one
func (l *Locator) Register(id string, f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters[id] = f
}

// Get returns the filter registered under id
func (l *Locator) Get(id string) (Filter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.filters[id]
	return f, ok
}

// IDs returns the registered ids, sorted
func (l *Locator) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.filters))
	for id := range l.filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds the filter a definition declares. cfg supplies the managers, logger and
// name converter; its properties are replaced by the definition's.
func New(def metadata.FilterDefinition, cfg Config) (Filter, error) {
	cfg.Properties = def.Properties

	switch def.Type {
	case TypeBoolean:
		return NewBooleanFilter(cfg), nil
	case TypeNumeric:
		return NewNumericFilter(cfg), nil
	case TypeDate:
		return NewDateFilter(cfg), nil
	case TypeRange:
		return NewRangeFilter(cfg), nil
	case TypeSearch:
		return NewSearchFilter(cfg), nil
	case TypeFullTextSearch:
		return NewFullTextSearchFilter(cfg), nil
	case TypeOrder:
		return NewOrderFilter(cfg, def.Options["parameter"], def.Options["nulls_comparison"]), nil
	case TypeExists:
		return NewExistsFilter(cfg, def.Options["parameter"]), nil
	case TypeEnum:
		return NewEnumFilter(cfg), nil
	case TypeOffset:
		return OffsetFilter{}, nil
	}
	return nil, fmt.Errorf("filter %s: unknown type %q", def.ID, def.Type)
}

// NewLocatorFromDefinitions builds and registers every defined filter
func NewLocatorFromDefinitions(defs []metadata.FilterDefinition, cfg Config) (*Locator, error) {
	l := NewLocator()
	for _, def := range defs {
		f, err := New(def, cfg)
		if err != nil {
			return nil, err
		}
		l.Register(def.ID, f)
	}
	return l, nil
}

// Descriptions merges the descriptions of the filters ids on resource. Each filter
// description is cached under its id and resource when c is not nil. Unknown ids are skipped.
func Descriptions(ctx context.Context, l *Locator, c cache.Cache, ttl time.Duration, resource string, ids []string) (map[string]Description, error) {
	merged := make(map[string]Description)
	for _, id := range ids {
		f, ok := l.Get(id)
		if !ok {
			continue
		}

		var desc map[string]Description
		compute := func() error {
			var err error
			desc, err = f.Description(resource)
			return err
		}

		var err error
		if c == nil {
			err = compute()
		} else {
			err = cache.Remember(ctx, c, descriptionKey(id, resource), ttl, &desc, compute)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to describe filter %s on %s: %w", id, resource, err)
		}

		for name, d := range desc {
			if _, exists := merged[name]; !exists {
				merged[name] = d
			}
		}
	}
	return merged, nil
}

// Warm computes and caches the description of every filter on every resource.
// It returns the number of descriptions stored.
func Warm(ctx context.Context, l *Locator, c cache.Cache, ttl time.Duration, resources []string) (int, error) {
	n := 0
	for _, id := range l.IDs() {
		f, _ := l.Get(id)
		for _, resource := range resources {
			desc, err := f.Description(resource)
			if err != nil {
				return n, fmt.Errorf("failed to describe filter %s on %s: %w", id, resource, err)
			}
			if err := cache.SetObject(ctx, c, descriptionKey(id, resource), desc, ttl); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func descriptionKey(id, resource string) string {
	return cache.Key("filter_descriptions", id, resource)
}
