package extension

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
)

// ErrCompositeIdentifier is returned when a query needs rewriting for an entity with
// more than one identifier
var ErrCompositeIdentifier = errors.New("composite identifiers are not supported")

var joinConditionOperands = regexp.MustCompile(`([\w.:]+)\s*=\s*([\w.:]+)`)

// FilterEagerLoadingExtension keeps filters on to-many associations from trimming the
// eager-loaded collections. When a where clause references a to-many join, the
// conditions move into "root.id IN (sub-query)" where the sub-query repeats the joins
// and conditions under fresh aliases; the joins of the outer query then load every
// related row.
type FilterEagerLoadingExtension struct {
	managers  metadata.ClassMetadataProvider
	resources metadata.ResourceClassResolver
}

// NewFilterEagerLoadingExtension creates the extension. resources may be nil, explicit
// joins on entities are then dropped from the sub-query.
func NewFilterEagerLoadingExtension(managers metadata.ClassMetadataProvider, resources metadata.ResourceClassResolver) *FilterEagerLoadingExtension {
	return &FilterEagerLoadingExtension{managers: managers, resources: resources}
}

func (e *FilterEagerLoadingExtension) ApplyToCollection(_ context.Context, qb *query.SelectBuilder, _ *hydrate.RelationalHydrator, names query.NameGenerator, resource string, _ *metadata.Operation, _ *metadata.Context) error {
	cm, ok := e.managers.ClassMetadata(resource)
	if !ok {
		return nil
	}
	rootAlias, err := qb.RootAlias()
	if err != nil {
		return err
	}
	if !e.hasToManyInWhere(qb, rootAlias, cm) {
		return nil
	}
	if len(qb.Wheres()) == 0 && len(qb.WhereInSubqueries()) == 0 {
		return nil
	}
	if len(qb.Joins()[rootAlias]) == 0 {
		return nil
	}

	ids := cm.IdentifierFieldNames()
	if len(ids) > 1 {
		return ErrCompositeIdentifier
	}
	if len(ids) == 0 {
		return nil
	}

	replacement := names.JoinAlias(rootAlias)
	in, err := e.withNewAliases(qb, names, rootAlias, replacement)
	if err != nil {
		return err
	}
	in.Select(replacement + "." + ids[0])

	subs := append(qb.WhereInSubqueries(), query.WhereInSubquery{Property: rootAlias + "." + ids[0], SubQuery: in})
	qb.SetWheres(nil)
	qb.SetWhereInSubqueries(subs)
	return nil
}

// withNewAliases copies the joins and conditions of qb into a new builder where every
// alias is renamed, starting with the root alias.
func (e *FilterEagerLoadingExtension) withNewAliases(qb *query.SelectBuilder, names query.NameGenerator, originAlias, replacement string) (*query.SelectBuilder, error) {
	joins := qb.Joins()[originAlias]
	wheres := qb.Wheres()
	subqueries := qb.WhereInSubqueries()

	clone := qb.Clone().
		ResetJoins().
		ResetWhere().
		ResetWhereInSubqueries().
		ResetOrderBy()
	from := qb.Froms()[0]
	clone.ResetFrom().From(from.Entity, replacement)

	r := &aliasReplacer{}
	r.add(originAlias, replacement)

	for _, j := range joins {
		joinString := r.replace(j.Join)

		pos := strings.IndexByte(joinString, '.')
		if pos < 0 {
			if e.resources == nil || j.Condition == "" || !e.resources.IsResourceClass(joinString) {
				continue
			}
			newAlias := names.JoinAlias(j.Alias)
			r.add(j.Alias, newAlias)
			clone.JoinWith(j.Type, joinString, newAlias, j.ConditionType, r.replace(j.Condition))
			continue
		}

		alias, association := joinString[:pos], joinString[pos+1:]
		newAlias := names.JoinAlias(association)
		r.add(j.Alias, newAlias)
		query.AddJoinOnceAs(clone, alias, association, j.Type, newAlias)
	}

	for _, w := range wheres {
		clone.Where(r.replace(w))
	}

	for _, s := range subqueries {
		subOrigin, err := s.SubQuery.RootAlias()
		if err != nil {
			return nil, err
		}
		sub, err := e.withNewAliases(s.SubQuery, names, subOrigin, names.JoinAlias(subOrigin))
		if err != nil {
			return nil, err
		}
		clone.WhereInSubquery(r.replace(s.Property), sub)
	}

	return clone, nil
}

// hasToManyInWhere reports whether a where clause references a join reached through
// a to-many association
func (e *FilterEagerLoadingExtension) hasToManyInWhere(qb *query.SelectBuilder, rootAlias string, cm *mapping.ClassMetadata) bool {
	paths := aliasPaths(qb, rootAlias)
	checked := make(map[string]bool)

	for _, where := range qb.Wheres() {
		for alias, path := range paths {
			if path == "" || !strings.Contains(where, alias+".") {
				continue
			}

			target := cm
			for _, field := range strings.Split(path, ".") {
				if target == nil || !target.HasAssociation(field) {
					continue
				}
				assoc, err := target.AssociationMapping(field)
				if err != nil {
					continue
				}
				key := field + "-" + assoc.TargetEntity
				if !checked[key] {
					checked[key] = true
					if assoc.Type == mapping.ToMany {
						return true
					}
				}
				target, _ = e.managers.ClassMetadata(assoc.TargetEntity)
			}
		}
	}
	return false
}

// aliasPaths maps every alias to its association path from the root alias ("" for the root)
func aliasPaths(qb *query.SelectBuilder, rootAlias string) map[string]string {
	paths := map[string]string{rootAlias: ""}
	for _, j := range qb.AllJoins() {
		parent, field, ok := joinTarget(j)
		if !ok {
			continue
		}
		if parentPath, known := paths[parent]; known {
			paths[j.Alias] = strings.Trim(parentPath+"."+field, ".")
		}
	}
	return paths
}

// joinTarget returns the alias and property a join hangs off. For joins with an
// explicit condition, the operand of "a = b" not belonging to the joined alias wins.
func joinTarget(j *query.Join) (string, string, bool) {
	target := j.Join
	if j.Condition != "" {
		if m := joinConditionOperands.FindStringSubmatch(j.Condition); m != nil {
			target = m[1]
			if strings.HasPrefix(m[1], j.Alias+".") {
				target = m[2]
			}
		}
	}
	parts := strings.SplitN(target, ".", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// aliasReplacer renames "alias." prefixes, applying every rule in order
type aliasReplacer struct {
	patterns     []*regexp.Regexp
	replacements []string
}

func (r *aliasReplacer) add(alias, replacement string) {
	r.patterns = append(r.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(alias+".")))
	r.replacements = append(r.replacements, replacement+".")
}

func (r *aliasReplacer) replace(s string) string {
	for i, p := range r.patterns {
		s = p.ReplaceAllLiteralString(s, r.replacements[i])
	}
	return s
}
