package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// ErrMaxJoinsExceeded is returned when eager loading would join more relations than allowed
var ErrMaxJoinsExceeded = errors.New("the total number of joined relations has exceeded the specified maximum")

// EagerLoadingOptions are the defaults operations can override
type EagerLoadingOptions struct {
	MaxJoins     int
	ForceEager   bool
	FetchPartial bool
}

// DefaultEagerLoadingOptions returns 30 joins, forced eager loading and full selects
func DefaultEagerLoadingOptions() EagerLoadingOptions {
	return EagerLoadingOptions{MaxJoins: 30, ForceEager: true}
}

// EagerLoadingExtension joins and selects the associations the response exposes, so a
// single query loads the whole serialized tree. Relations are registered on the
// hydrator to nest the joined records.
type EagerLoadingExtension struct {
	managers   metadata.ClassMetadataProvider
	names      metadata.PropertyNameCollectionFactory
	properties metadata.PropertyMetadataFactory
	options    EagerLoadingOptions
	logger     *zap.Logger
}

// NewEagerLoadingExtension creates the extension
func NewEagerLoadingExtension(managers metadata.ClassMetadataProvider, names metadata.PropertyNameCollectionFactory, properties metadata.PropertyMetadataFactory, options EagerLoadingOptions, logger *zap.Logger) *EagerLoadingExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EagerLoadingExtension{
		managers:   managers,
		names:      names,
		properties: properties,
		options:    options,
		logger:     logger,
	}
}

func (e *EagerLoadingExtension) ApplyToCollection(_ context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, rc *metadata.Context) error {
	return e.apply(qb, h, names, resource, op, rc)
}

func (e *EagerLoadingExtension) ApplyToItem(_ context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ map[string]interface{}, op *metadata.Operation, rc *metadata.Context) error {
	return e.apply(qb, h, names, resource, op, rc)
}

// walk is the state shared by one recursive join walk
type walk struct {
	qb           *query.SelectBuilder
	hydrator     *hydrate.RelationalHydrator
	names        query.NameGenerator
	forceEager   bool
	fetchPartial bool
	options      metadata.PropertyOptions
	joins        int
}

// serializerView is the part of the request context steering the walk
type serializerView struct {
	attributes     map[string]interface{}
	hasAttributes  bool
	enableMaxDepth bool
}

func (e *EagerLoadingExtension) apply(qb *query.SelectBuilder, h *hydrate.RelationalHydrator, names query.NameGenerator, resource string, op *metadata.Operation, rc *metadata.Context) error {
	rc = rc.Clone()

	w := &walk{
		qb:           qb,
		hydrator:     h,
		names:        names,
		forceEager:   e.options.ForceEager,
		fetchPartial: e.options.FetchPartial,
	}
	if op != nil && op.ForceEager != nil {
		w.forceEager = *op.ForceEager
	}
	if op != nil && op.FetchPartial != nil {
		w.fetchPartial = *op.FetchPartial
	}

	if len(rc.Groups) == 0 && rc.Attributes == nil && op != nil {
		sc := op.NormalizationContext
		if rc.Denormalize {
			sc = op.DenormalizationContext
		}
		if sc != nil {
			rc.Groups = sc.Groups
			rc.EnableMaxDepth = rc.EnableMaxDepth || sc.EnableMaxDepth
		}
	}

	w.options = metadata.PropertyOptions{
		SerializerGroups:      rc.Groups,
		NormalizationGroups:   op.NormalizationGroups(),
		DenormalizationGroups: op.DenormalizationGroups(),
	}

	rootAlias, err := qb.RootAlias()
	if err != nil {
		return err
	}

	view := serializerView{
		attributes:     rc.Attributes,
		hasAttributes:  rc.Attributes != nil,
		enableMaxDepth: rc.EnableMaxDepth,
	}
	if err := e.joinRelations(w, resource, rootAlias, view, false, nil, nil); err != nil {
		return err
	}

	e.logger.Debug("eager loading applied", zap.String("resource", resource), zap.Int("joins", w.joins))
	return nil
}

func (e *EagerLoadingExtension) joinRelations(w *walk, resource, parentAlias string, view serializerView, wasLeftJoin bool, currentDepth *int, parent *mapping.Association) error {
	if w.joins > e.options.MaxJoins {
		return fmt.Errorf("%w (%d): raise the eager loading max joins or limit the serialization depth with max depth", ErrMaxJoinsExceeded, e.options.MaxJoins)
	}

	if currentDepth != nil && *currentDepth > 0 {
		d := *currentDepth - 1
		currentDepth = &d
	}

	cm, ok := e.managers.ClassMetadata(resource)
	if !ok {
		return nil
	}

	for _, assoc := range cm.AssociationMappings() {
		if currentDepth != nil && *currentDepth == 0 && view.enableMaxDepth {
			continue
		}

		pm, err := e.properties.PropertyMetadata(resource, assoc.FieldName, w.options)
		if err != nil {
			if errors.Is(err, metadata.ErrPropertyNotFound) || errors.Is(err, metadata.ErrResourceClassNotFound) {
				continue
			}
			return err
		}

		if assoc.Fetch == mapping.FetchExtraLazy {
			continue
		}
		if !w.forceEager && assoc.Fetch != mapping.FetchEager {
			continue
		}

		child := view
		var inAttributes *bool
		if view.hasAttributes {
			sub, in := view.attributes[assoc.FieldName]
			inAttributes = &in
			if in {
				child.attributes, _ = sub.(map[string]interface{})
			}
		}

		if pm.FetchEager != nil && !*pm.FetchEager {
			continue
		}
		fetchEager := pm.FetchEager != nil && *pm.FetchEager
		if !fetchEager && ((inAttributes != nil && !*inAttributes) || !pm.Readable) {
			continue
		}

		// to-many collections listed in attributes are left to the serializer
		if inAttributes != nil && *inAttributes && assoc.Type == mapping.ToMany {
			continue
		}

		// do not join back to the parent on to-one relations
		if parent != nil && assoc.InversedBy != "" && assoc.InversedBy == parent.FieldName && assoc.Type == mapping.ToOne {
			continue
		}

		if _, ok := e.managers.ClassMetadata(assoc.TargetEntity); !ok {
			continue
		}

		var alias string
		var isLeftJoin bool
		if existing := query.ExistingJoin(w.qb, parentAlias, assoc.FieldName); existing != nil {
			alias = existing.Alias
			isLeftJoin = existing.Type == query.LeftJoin
		} else {
			isLeftJoin = wasLeftJoin || assoc.Nullable || assoc.Type == mapping.ToMany
			alias = w.names.JoinAlias(assoc.FieldName)
			joinType := query.InnerJoin
			if isLeftJoin {
				joinType = query.LeftJoin
			}
			w.qb.Join(joinType, parentAlias+"."+assoc.FieldName, alias)
			w.joins++
		}

		if w.fetchPartial {
			if err := e.addPartialSelect(w, assoc.TargetEntity, alias); err != nil {
				return err
			}
		} else {
			w.qb.AddSelect(alias)
		}

		if assoc.Type == mapping.ToMany {
			w.hydrator.AddRelation(hydrate.RelationMany(parentAlias, alias, assoc.FieldName))
		} else {
			w.hydrator.AddRelation(hydrate.RelationOne(parentAlias, alias, assoc.FieldName))
		}

		// self references stop here
		if assoc.TargetEntity == resource {
			continue
		}
		if (inAttributes == nil || !*inAttributes) && !pm.ReadableLink {
			continue
		}

		// the lowest max depth of the ancestors applies
		if pm.MaxDepth != nil && (currentDepth == nil || *pm.MaxDepth < *currentDepth) {
			d := *pm.MaxDepth
			currentDepth = &d
		}

		if err := e.joinRelations(w, assoc.TargetEntity, alias, child, isLeftJoin, currentDepth, assoc); err != nil {
			return err
		}
	}
	return nil
}

// addPartialSelect selects the identifiers and the readable or fetchable fields of entity only
func (e *EagerLoadingExtension) addPartialSelect(w *walk, entity, alias string) error {
	cm, ok := e.managers.ClassMetadata(entity)
	if !ok {
		return nil
	}
	properties, err := e.names.PropertyNames(entity)
	if errors.Is(err, metadata.ErrResourceClassNotFound) {
		w.qb.AddSelect(alias)
		return nil
	}
	if err != nil {
		return err
	}
	for _, property := range properties {
		pm, err := e.properties.PropertyMetadata(entity, property, w.options)
		if err != nil {
			return err
		}
		if pm.IsIdentifier() || (cm.HasField(property) && (pm.Fetchable || pm.Readable)) {
			w.qb.AddSelect(alias + "." + property)
		}
	}
	return nil
}
