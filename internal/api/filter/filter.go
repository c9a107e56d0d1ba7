// Package filter narrows collection queries from request parameters.
//
// Every filter reads the parsed query string from the request context, checks the
// requested properties against the entity mapping and adds where clauses, joins or
// orderings to the select builder. Values that cannot be used are logged and ignored
// so that a malformed parameter never fails the request.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// Filter is implemented by every filter type
type Filter interface {
	// Apply adds the restrictions requested in ctx.Filters to qb
	Apply(qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, ctx *metadata.Context) error

	// Description documents the query parameters the filter accepts on resource
	Description(resource string) (map[string]Description, error)
}

// Description documents one query parameter
type Description struct {
	Property     string  `msgpack:"property" json:"property"`
	Type         string  `msgpack:"type" json:"type"`
	Required     bool    `msgpack:"required" json:"required"`
	Strategy     string  `msgpack:"strategy,omitempty" json:"strategy,omitempty"`
	IsCollection bool    `msgpack:"is_collection,omitempty" json:"is_collection,omitempty"`
	Schema       *Schema `msgpack:"schema,omitempty" json:"schema,omitempty"`
}

// Schema restricts the accepted values of a parameter
type Schema struct {
	Type string   `msgpack:"type" json:"type"`
	Enum []string `msgpack:"enum" json:"enum"`
}

// Description types
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBool     = "bool"
	TypeArray    = "array"
	TypeDateTime = "DateTime"
)

// Config holds what every filter is built from
type Config struct {
	Managers metadata.ClassMetadataProvider
	Logger   *zap.Logger
	// Properties enables the listed properties only, with per-property options.
	// Nil enables every non-nested property.
	Properties    map[string]interface{}
	NameConverter NameConverter
}

// ErrNotNested is returned when joins are requested for a property of the root entity
var ErrNotNested = errors.New("property is not nested")

type base struct {
	managers   metadata.ClassMetadataProvider
	logger     *zap.Logger
	properties map[string]interface{}
	converter  NameConverter
}

func newBase(cfg Config) base {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		managers:   cfg.Managers,
		logger:     logger,
		properties: cfg.Properties,
		converter:  cfg.NameConverter,
	}
}

func (b *base) classMetadata(resource string) (*mapping.ClassMetadata, error) {
	cm, ok := b.managers.ClassMetadata(resource)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrResourceClassNotFound, resource)
	}
	return cm, nil
}

// eachFilter calls fn for every request filter, in name order, with the property
// name denormalized.
func (b *base) eachFilter(filters map[string]interface{}, fn func(property string, value interface{}) error) error {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn(b.denormalize(k), filters[k]); err != nil {
			return err
		}
	}
	return nil
}

// invalid logs a value the filter ignores
func (b *base) invalid(format string, args ...interface{}) {
	b.logger.Info("Invalid filter ignored", zap.Error(fmt.Errorf(format, args...)))
}

func (b *base) enabled(cm *mapping.ClassMetadata, property string) bool {
	if b.properties == nil {
		// nested properties must be enabled explicitly
		return !b.nested(cm, property)
	}
	_, ok := b.properties[property]
	return ok
}

func (b *base) option(property string) interface{} {
	return b.properties[property]
}

func (b *base) mapped(cm *mapping.ClassMetadata, property string, allowAssociation bool) bool {
	field, md := property, cm
	if b.nested(cm, property) {
		path := b.split(cm, property)
		field, md = path.field, path.metadata
	}
	return md.HasField(field) || (allowAssociation && md.HasAssociation(field))
}

func (b *base) nested(cm *mapping.ClassMetadata, property string) bool {
	pos := strings.IndexByte(property, '.')
	if pos < 0 {
		return false
	}
	return cm.HasAssociation(property[:pos])
}

type propertyPath struct {
	associations []string
	field        string
	// metadata of the entity owning field
	metadata *mapping.ClassMetadata
}

// split separates the leading associations of a dotted property from its field.
// When every part is an association, the last one is the field.
func (b *base) split(cm *mapping.ClassMetadata, property string) propertyPath {
	parts := strings.Split(property, ".")
	md := cm
	mds := []*mapping.ClassMetadata{cm}

	n := 0
	for _, part := range parts {
		if !md.HasAssociation(part) {
			break
		}
		assoc, err := md.AssociationMapping(part)
		if err != nil {
			break
		}
		target, ok := b.managers.ClassMetadata(assoc.TargetEntity)
		if !ok {
			break
		}
		md = target
		mds = append(mds, target)
		n++
	}
	if n == len(parts) {
		n--
	}

	return propertyPath{
		associations: parts[:n],
		field:        strings.Join(parts[n:], "."),
		metadata:     mds[n],
	}
}

func (b *base) fieldType(cm *mapping.ClassMetadata, property string) mapping.FieldType {
	path := b.split(cm, property)
	return path.metadata.TypeOfField(path.field)
}

// joinNested joins every association of a nested property, reusing existing joins,
// and returns the alias owning the field.
func (b *base) joinNested(qb *query.SelectBuilder, names query.NameGenerator, rootAlias string, cm *mapping.ClassMetadata, property string, joinType query.JoinType) (string, propertyPath, error) {
	path := b.split(cm, property)
	if len(path.associations) == 0 {
		return "", path, fmt.Errorf("cannot add joins for property %q: %w", property, ErrNotNested)
	}

	alias := rootAlias
	for _, association := range path.associations {
		alias = query.AddJoinOnce(qb, names, alias, association, query.JoinTypePtr(joinType))
	}
	return alias, path, nil
}

// target resolves the alias and field a where clause on property applies to, joining
// nested properties with joinType.
func (b *base) target(qb *query.SelectBuilder, names query.NameGenerator, cm *mapping.ClassMetadata, property string, joinType query.JoinType) (string, propertyPath, error) {
	rootAlias, err := qb.RootAlias()
	if err != nil {
		return "", propertyPath{}, err
	}
	if b.nested(cm, property) {
		return b.joinNested(qb, names, rootAlias, cm, property, joinType)
	}
	return rootAlias, propertyPath{field: property, metadata: cm}, nil
}

// describedProperties lists the configured properties, or every field of the entity
func (b *base) describedProperties(cm *mapping.ClassMetadata) []string {
	if b.properties == nil {
		return cm.FieldNames()
	}
	props := make([]string, 0, len(b.properties))
	for p := range b.properties {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

func (b *base) normalize(property string) string {
	return convertSegments(property, b.converter, true)
}

func (b *base) denormalize(property string) string {
	return convertSegments(property, b.converter, false)
}
