package mapping

import (
	"fmt"
	"sort"
	"sync"
)

// Resolver looks up entity metadata by entity name
type Resolver interface {
	Metadata(entity string) (*ClassMetadata, bool)
}

// Registry holds the metadata of every mapped entity.
// Metadata is built once per entity and cached.
type Registry struct {
	entities map[string]*Entity
	metadata map[string]*ClassMetadata
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
		metadata: make(map[string]*ClassMetadata),
	}
}

// Register adds an entity definition after structural validation
func (r *Registry) Register(entity *Entity) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[entity.Name]; exists {
		return fmt.Errorf("entity %s is already registered", entity.Name)
	}

	for _, a := range entity.Associations {
		if a.SourceEntity == "" {
			a.SourceEntity = entity.Name
		}
	}
	r.entities[entity.Name] = entity

	var source AssociationSource
	if len(entity.Associations) > 0 {
		source = newAssociationList(entity.Associations)
	}
	r.metadata[entity.Name] = NewClassMetadata(entity, source)

	return nil
}

// MustRegister registers every entity and panics on the first error
func (r *Registry) MustRegister(entities ...*Entity) *Registry {
	for _, e := range entities {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Metadata returns the metadata of an entity
func (r *Registry) Metadata(entity string) (*ClassMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cm, ok := r.metadata[entity]
	return cm, ok
}

// Names returns the registered entity names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks cross-entity references once every entity is registered
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range sortedKeys(r.entities) {
		entity := r.entities[name]
		for _, a := range entity.Associations {
			target, ok := r.entities[a.TargetEntity]
			if !ok {
				return fmt.Errorf("association %s.%s targets unknown entity %s", name, a.FieldName, a.TargetEntity)
			}
			if a.TargetTable == "" {
				a.TargetTable = target.Table
			}
			if a.MappedBy != "" && !hasAssociationNamed(target, a.MappedBy) {
				return fmt.Errorf("association %s.%s is mapped by unknown association %s.%s",
					name, a.FieldName, a.TargetEntity, a.MappedBy)
			}
		}
	}

	return nil
}

func validateEntity(entity *Entity) error {
	if entity == nil || entity.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if entity.Table == "" {
		return fmt.Errorf("entity %s has no table", entity.Name)
	}
	if len(entity.Fields) == 0 {
		return fmt.Errorf("entity %s has no fields", entity.Name)
	}

	seen := make(map[string]bool, len(entity.Fields))
	for _, f := range entity.Fields {
		if f.Name == "" {
			return fmt.Errorf("entity %s has a field without a name", entity.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("entity %s declares field %s twice", entity.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type != "" && !f.Type.IsValid() {
			return fmt.Errorf("field %s.%s has unknown type %q", entity.Name, f.Name, f.Type)
		}
	}

	for _, a := range entity.Associations {
		if a.FieldName == "" {
			return fmt.Errorf("entity %s has an association without a name", entity.Name)
		}
		if seen[a.FieldName] {
			return fmt.Errorf("association %s.%s collides with a field", entity.Name, a.FieldName)
		}
		if len(a.JoinColumns) == 0 {
			return fmt.Errorf("association %s.%s has no join columns", entity.Name, a.FieldName)
		}
		if a.TargetEntity == "" {
			return fmt.Errorf("association %s.%s has no target entity", entity.Name, a.FieldName)
		}
	}

	return nil
}

func hasAssociationNamed(entity *Entity, name string) bool {
	for _, a := range entity.Associations {
		if a.FieldName == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]*Entity) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
