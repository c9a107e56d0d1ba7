package repository

import (
	"sync"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// Registry hands out one cached manager per resource.
// A resource maps to the entity of the same name unless MapResource says otherwise.
type Registry struct {
	resolver  mapping.Resolver
	db        Querier
	dialect   query.Dialect
	logger    *zap.Logger
	resources map[string]string
	managers  map[string]*Manager
	mu        sync.Mutex
}

// NewRegistry creates a registry of managers over db
func NewRegistry(resolver mapping.Resolver, db Querier, dialect query.Dialect, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		resolver:  resolver,
		db:        db,
		dialect:   dialect,
		logger:    logger,
		resources: make(map[string]string),
		managers:  make(map[string]*Manager),
	}
}

// MapResource stores resource records in entity
func (r *Registry) MapResource(resource, entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resources[resource] = entity
	delete(r.managers, resource)
}

// ManagerFor returns the manager of a resource. Resources without a mapped
// entity yield (nil, false), and that answer is cached too.
func (r *Registry) ManagerFor(resource string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[resource]; ok {
		return m, m != nil
	}

	entity := resource
	if mapped, ok := r.resources[resource]; ok {
		entity = mapped
	}

	cm, ok := r.resolver.Metadata(entity)
	if !ok {
		r.managers[resource] = nil
		return nil, false
	}

	m := NewManager(cm, r.resolver, r.db, r.dialect, r.logger.With(zap.String("resource", resource)))
	r.managers[resource] = m
	return m, true
}

// ClassMetadata returns the metadata of the entity behind a resource
func (r *Registry) ClassMetadata(resource string) (*mapping.ClassMetadata, bool) {
	m, ok := r.ManagerFor(resource)
	if !ok {
		return nil, false
	}
	return m.ClassMetadata(), true
}

// Resolver returns the mapping resolver shared by every manager
func (r *Registry) Resolver() mapping.Resolver {
	return r.resolver
}

// Dialect returns the SQL dialect shared by every manager
func (r *Registry) Dialect() query.Dialect {
	return r.dialect
}
