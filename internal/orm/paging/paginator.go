// Package paging runs paginated select builders: page items, total counts and the
// distinct-identifier pre-query needed when to-many joins multiply root rows.
package paging

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
)

// QueryPaginator executes one paginated query
type QueryPaginator struct {
	qb           *query.SelectBuilder
	manager      *repository.Manager
	hydrator     *hydrate.RelationalHydrator
	count        *int
	countBuilder *query.SelectBuilder
}

// New creates a paginator over qb, executed through manager
func New(qb *query.SelectBuilder, manager *repository.Manager, hydrator *hydrate.RelationalHydrator) *QueryPaginator {
	return &QueryPaginator{qb: qb, manager: manager, hydrator: hydrator}
}

// QueryBuilder returns the paginated query
func (p *QueryPaginator) QueryBuilder() *query.SelectBuilder {
	return p.qb
}

// Items runs the query and returns the hydrated page
func (p *QueryPaginator) Items(ctx context.Context) ([]hydrate.Record, error) {
	return p.manager.Query(ctx, p.qb, p.hydrator)
}

// AddRequiredWhereInClause resolves the identifiers of the requested page first, then
// restricts the query to them and drops limit and offset, so joined to-many rows
// do not eat into the page size.
func (p *QueryPaginator) AddRequiredWhereInClause(ctx context.Context) error {
	ids, err := p.distinctIdentifiers(ctx)
	if err != nil {
		return err
	}

	p.countBuilder = p.qb.Clone()

	root, err := p.qb.RootAlias()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		p.qb.Where("1 = 0")
	} else {
		query.In(p.qb, root, p.identifier(), ids, "ting_id")
	}
	p.qb.Limit(0)
	p.qb.Offset(0)
	return nil
}

func (p *QueryPaginator) distinctIdentifiers(ctx context.Context) ([]interface{}, error) {
	sub := p.qb.Clone()
	root, err := sub.RootAlias()
	if err != nil {
		return nil, err
	}

	selects := p.qb.Selects()
	sub.Select(fmt.Sprintf("DISTINCT(%s.%s) AS id", root, p.identifier()))
	for i, o := range p.qb.OrderBys() {
		if expr, ok := selectedAs(selects, o.Expr); ok {
			sub.RawSelect(expr)
			continue
		}
		sub.RawSelect(fmt.Sprintf("%s AS _order_%d", o.Expr, i))
	}

	rows, err := p.manager.QueryRows(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to load page identifiers: %w", err)
	}

	// DISTINCT covers the order columns too, so an id ordered through a to-many
	// join can come back once per related row
	ids := make([]interface{}, 0, len(rows))
	seen := make(map[interface{}]bool, len(rows))
	for _, row := range rows {
		id := row["id"]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of distinct root records matched by the query, ignoring paging
func (p *QueryPaginator) Count(ctx context.Context) (int, error) {
	if p.count != nil {
		return *p.count, nil
	}

	builder := p.countBuilder
	if builder == nil {
		builder = p.qb
	}
	builder = builder.Clone()

	root, err := builder.RootAlias()
	if err != nil {
		return 0, err
	}
	ids := p.manager.ClassMetadata().IdentifierFieldNames()
	qualified := make([]string, len(ids))
	for i, id := range ids {
		qualified[i] = root + "." + id
	}

	builder.
		Select(fmt.Sprintf("COUNT(DISTINCT (%s)) AS ting_count", strings.Join(qualified, ", "))).
		ResetOrderBy().
		Offset(0).
		Limit(0)
	p.keepOnlyMandatoryJoins(builder)

	rows, err := p.manager.QueryRows(ctx, builder)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}

	total := 0
	for _, row := range rows {
		n, err := toInt(row["ting_count"])
		if err != nil {
			return 0, err
		}
		total += n
	}
	p.count = &total
	return total, nil
}

// keepOnlyMandatoryJoins drops joins that neither filter nor restrict the count:
// only inner joins and joins referenced by a condition survive, along with the joins they hang off.
func (p *QueryPaginator) keepOnlyMandatoryJoins(builder *query.SelectBuilder) {
	joins := builder.AllJoins()
	if len(joins) == 0 {
		return
	}

	keep := make(map[string]bool, len(joins))
	for _, j := range joins {
		if j.Type == query.InnerJoin || p.referencedInWhere(j, builder) || p.referencedInSubqueries(j, builder) {
			keep[j.Alias] = true
		}
	}
	for i := len(joins) - 1; i >= 0; i-- {
		if !keep[joins[i].Alias] {
			continue
		}
		if parent, _, ok := joins[i].Association(); ok {
			keep[parent] = true
		}
	}

	builder.ResetJoins()
	for _, j := range joins {
		if keep[j.Alias] {
			builder.JoinWith(j.Type, j.Join, j.Alias, j.ConditionType, j.Condition)
		}
	}
}

func (p *QueryPaginator) referencedInWhere(j *query.Join, builder *query.SelectBuilder) bool {
	for _, w := range builder.Wheres() {
		if query.ReferencesAlias(w, j.Alias) {
			return true
		}
	}
	return false
}

func (p *QueryPaginator) referencedInSubqueries(j *query.Join, builder *query.SelectBuilder) bool {
	for _, s := range builder.WhereInSubqueries() {
		if query.ReferencesAlias(s.Property, j.Alias) {
			return true
		}
		stmt, _, err := s.SubQuery.Statement(p.manager.Dialect())
		if err == nil && query.ReferencesAlias(stmt, j.Alias) {
			return true
		}
	}
	return false
}

func (p *QueryPaginator) identifier() string {
	ids := p.manager.ClassMetadata().IdentifierFieldNames()
	if len(ids) == 0 {
		return "id"
	}
	return ids[0]
}

// selectedAs finds a select item aliased as name, for ORDER BY terms that sort on a computed column
func selectedAs(selects []string, name string) (string, bool) {
	suffix := " as " + strings.ToLower(name)
	for _, s := range selects {
		if strings.HasSuffix(strings.ToLower(s), suffix) {
			return s, true
		}
	}
	return "", false
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected count value %T", v)
}
