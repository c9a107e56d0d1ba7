package metadata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrOperationNotFound is returned when a resource has no operation of the requested name
var ErrOperationNotFound = errors.New("operation not found")

// Resource is an exposed resource with its operations and declared properties
type Resource struct {
	Name string
	// Entity is the mapped entity storing the resource; empty means the entity named Name
	Entity            string
	Properties        []PropertyMetadata
	Operations        []*Operation
	GraphQLOperations []*Operation
}

// EntityFor returns the entity backing the resource
func (r *Resource) EntityFor() string {
	if r.Entity != "" {
		return r.Entity
	}
	return r.Name
}

// ResourceRegistry holds every resource. It serves as the property name collection,
// property metadata and resource class resolver of the API layer.
type ResourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewResourceRegistry creates an empty registry
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{resources: make(map[string]*Resource)}
}

// Register adds a resource. Operations without a resource are bound to it.
func (r *ResourceRegistry) Register(res *Resource) error {
	if res.Name == "" {
		return errors.New("resource name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[res.Name]; exists {
		return fmt.Errorf("resource %s is already registered", res.Name)
	}

	seen := make(map[string]bool)
	for _, ops := range [][]*Operation{res.Operations, res.GraphQLOperations} {
		for _, op := range ops {
			if op.Name == "" {
				return fmt.Errorf("resource %s: operation name is required", res.Name)
			}
			if seen[op.Name] {
				return fmt.Errorf("resource %s: duplicate operation %s", res.Name, op.Name)
			}
			seen[op.Name] = true
			if op.Resource == "" {
				op.Resource = res.Name
			}
		}
	}

	r.resources[res.Name] = res
	return nil
}

// Resource returns a registered resource
func (r *ResourceRegistry) Resource(name string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// Names returns the resource names, sorted
func (r *ResourceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsResourceClass implements ResourceClassResolver
func (r *ResourceRegistry) IsResourceClass(name string) bool {
	_, ok := r.Resource(name)
	return ok
}

// Operation finds an HTTP or GraphQL operation of a resource by name
func (r *ResourceRegistry) Operation(resource, name string) (*Operation, error) {
	res, ok := r.Resource(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceClassNotFound, resource)
	}
	for _, ops := range [][]*Operation{res.Operations, res.GraphQLOperations} {
		for _, op := range ops {
			if op.Name == name {
				return op, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrOperationNotFound, name, resource)
}

// LinkedOperation resolves the operation of resource matching op. A GraphQL operation
// may have no counterpart of the same name (it can be disabled on the linked
// resource); the last GraphQL query of the resource is used then.
func (r *ResourceRegistry) LinkedOperation(resource string, op *Operation) (*Operation, error) {
	linked, err := r.Operation(resource, op.Name)
	if err == nil {
		return linked, nil
	}
	if !errors.Is(err, ErrOperationNotFound) || !op.IsGraphQL() {
		return nil, err
	}

	res, _ := r.Resource(resource)
	var query *Operation
	for _, candidate := range res.GraphQLOperations {
		if candidate.Kind == GraphQLQuery || candidate.Kind == GraphQLCollectionQuery {
			query = candidate
		}
	}
	if query == nil {
		return nil, err
	}
	return query, nil
}

// PropertyNames implements PropertyNameCollectionFactory
func (r *ResourceRegistry) PropertyNames(resource string) ([]string, error) {
	res, ok := r.Resource(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceClassNotFound, resource)
	}
	names := make([]string, len(res.Properties))
	for i, p := range res.Properties {
		names[i] = p.Name
	}
	return names, nil
}

// PropertyMetadata implements PropertyMetadataFactory from the declared properties
func (r *ResourceRegistry) PropertyMetadata(resource, property string, opts PropertyOptions) (PropertyMetadata, error) {
	res, ok := r.Resource(resource)
	if !ok {
		return PropertyMetadata{}, fmt.Errorf("%w: %s", ErrResourceClassNotFound, resource)
	}
	for _, p := range res.Properties {
		if p.Name == property {
			return filterGroups(p, opts), nil
		}
	}
	return PropertyMetadata{}, propertyNotFound(resource, property)
}

// AddDefaults assigns the default provider (collection or item) and processor
// (persist or remove) to every operation of a resource stored in a mapped entity.
// Operations that already name a provider or processor keep it.
func (r *ResourceRegistry) AddDefaults(entities ClassMetadataProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.resources {
		for _, ops := range [][]*Operation{res.Operations, res.GraphQLOperations} {
			for _, op := range ops {
				if _, ok := entities.ClassMetadata(op.Resource); !ok {
					continue
				}
				if op.Provider == "" {
					op.Provider = ProviderItem
					if op.IsCollection() {
						op.Provider = ProviderCollection
					}
				}
				if op.Processor == "" {
					switch op.Kind {
					case Post, Put, Patch, GraphQLMutation:
						op.Processor = ProcessorPersist
					case Delete:
						op.Processor = ProcessorRemove
					}
				}
			}
		}
	}
}
