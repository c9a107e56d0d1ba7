// Package query provides the select builder used to turn resource operations into SQL.
//
// The builder stores an abstract description of the query (selects, froms, joins, where
// fragments, sub-queries, ordering, paging and named parameters). Expressions refer to
// entity properties as alias.property; Statement resolves them to tables and columns
// through the mapping and renders SQL for a given Dialect.
package query

import (
	"errors"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

// JoinType represents the type of SQL join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	if j == LeftJoin {
		return "LEFT"
	}
	return "INNER"
}

// ConditionType tells how an explicit join condition is attached
type ConditionType int

const (
	NoCondition ConditionType = iota
	With
	On
)

// From is a root entity of the query
type From struct {
	Entity string
	Alias  string
}

// Join is a join expression. Join is either "alias.association", resolved through the
// mapping, or an entity name joined with an explicit condition.
type Join struct {
	Type          JoinType
	Join          string
	Alias         string
	ConditionType ConditionType
	Condition     string
}

// Association splits an association join into its source alias and association name
func (j *Join) Association() (alias, association string, ok bool) {
	pos := strings.IndexByte(j.Join, '.')
	if pos < 0 {
		return "", "", false
	}
	return j.Join[:pos], j.Join[pos+1:], true
}

// WhereInSubquery restricts Property to the values selected by SubQuery
type WhereInSubquery struct {
	Property string
	SubQuery *SelectBuilder
}

// OrderBy is one ORDER BY term
type OrderBy struct {
	Expr      string
	Direction string
}

// ErrNoRootAlias is returned when the builder has no FROM yet
var ErrNoRootAlias = errors.New("no alias was set before invoking RootAlias()")

// SelectBuilder is a mutable select query description
type SelectBuilder struct {
	resolver mapping.Resolver

	selects    []string
	froms      []From
	joins      map[string][]*Join
	joinRoots  []string
	wheres     []string
	subqueries []WhereInSubquery
	orderBys   []OrderBy
	offset     int
	limit      *int
	binds      map[string]interface{}
}

// NewSelectBuilder creates an empty builder resolving entities through resolver
func NewSelectBuilder(resolver mapping.Resolver) *SelectBuilder {
	return &SelectBuilder{
		resolver: resolver,
		joins:    make(map[string][]*Join),
		binds:    make(map[string]interface{}),
	}
}

// Resolver returns the mapping resolver used by the builder
func (qb *SelectBuilder) Resolver() mapping.Resolver {
	return qb.resolver
}

// Select replaces the select list
func (qb *SelectBuilder) Select(exprs ...string) *SelectBuilder {
	qb.selects = qb.selects[:0]
	return qb.AddSelect(exprs...)
}

// AddSelect appends expressions to the select list, skipping duplicates.
// A bare alias selects every field of the aliased entity.
func (qb *SelectBuilder) AddSelect(exprs ...string) *SelectBuilder {
	for _, expr := range exprs {
		if !contains(qb.selects, expr) {
			qb.selects = append(qb.selects, expr)
		}
	}
	return qb
}

// RawSelect appends an expression to the select list as is
func (qb *SelectBuilder) RawSelect(expr string) *SelectBuilder {
	qb.selects = append(qb.selects, expr)
	return qb
}

// Selects returns the select list
func (qb *SelectBuilder) Selects() []string {
	return append([]string(nil), qb.selects...)
}

// From adds a root entity
func (qb *SelectBuilder) From(entity, alias string) *SelectBuilder {
	qb.froms = append(qb.froms, From{Entity: entity, Alias: alias})
	return qb
}

// Froms returns the root entities
func (qb *SelectBuilder) Froms() []From {
	return append([]From(nil), qb.froms...)
}

// RootAlias returns the alias of the first root entity
func (qb *SelectBuilder) RootAlias() (string, error) {
	if len(qb.froms) == 0 {
		return "", ErrNoRootAlias
	}
	return qb.froms[0].Alias, nil
}

// RootAliases returns the aliases of every root entity
func (qb *SelectBuilder) RootAliases() []string {
	aliases := make([]string, len(qb.froms))
	for i, f := range qb.froms {
		aliases[i] = f.Alias
	}
	return aliases
}

// InnerJoin adds an inner join on "alias.association"
func (qb *SelectBuilder) InnerJoin(join, alias string) *SelectBuilder {
	return qb.JoinWith(InnerJoin, join, alias, NoCondition, "")
}

// LeftJoin adds a left join on "alias.association"
func (qb *SelectBuilder) LeftJoin(join, alias string) *SelectBuilder {
	return qb.JoinWith(LeftJoin, join, alias, NoCondition, "")
}

// Join adds a join of the given type on "alias.association"
func (qb *SelectBuilder) Join(joinType JoinType, join, alias string) *SelectBuilder {
	return qb.JoinWith(joinType, join, alias, NoCondition, "")
}

// JoinWith adds a join with an optional explicit condition
func (qb *SelectBuilder) JoinWith(joinType JoinType, join, alias string, conditionType ConditionType, condition string) *SelectBuilder {
	parent := ""
	if pos := strings.IndexByte(join, '.'); pos >= 0 {
		parent = join[:pos]
	}
	root := qb.findRootAlias(parent)

	if _, ok := qb.joins[root]; !ok {
		qb.joinRoots = append(qb.joinRoots, root)
	}
	qb.joins[root] = append(qb.joins[root], &Join{
		Type:          joinType,
		Join:          join,
		Alias:         alias,
		ConditionType: conditionType,
		Condition:     condition,
	})
	return qb
}

// Joins returns the joins keyed by the root alias they hang off
func (qb *SelectBuilder) Joins() map[string][]*Join {
	out := make(map[string][]*Join, len(qb.joins))
	for root, joins := range qb.joins {
		out[root] = append([]*Join(nil), joins...)
	}
	return out
}

// AllJoins returns every join in insertion order
func (qb *SelectBuilder) AllJoins() []*Join {
	var out []*Join
	for _, root := range qb.joinRoots {
		out = append(out, qb.joins[root]...)
	}
	return out
}

// Where adds a condition, ANDed with the others
func (qb *SelectBuilder) Where(cond string) *SelectBuilder {
	qb.wheres = append(qb.wheres, cond)
	return qb
}

// Wheres returns the where conditions
func (qb *SelectBuilder) Wheres() []string {
	return append([]string(nil), qb.wheres...)
}

// SetWheres replaces the where conditions
func (qb *SelectBuilder) SetWheres(conds []string) *SelectBuilder {
	qb.wheres = append([]string(nil), conds...)
	return qb
}

// WhereInSubquery restricts property to the values selected by sub
func (qb *SelectBuilder) WhereInSubquery(property string, sub *SelectBuilder) *SelectBuilder {
	qb.subqueries = append(qb.subqueries, WhereInSubquery{Property: property, SubQuery: sub})
	return qb
}

// WhereInSubqueries returns the where-in-subquery conditions
func (qb *SelectBuilder) WhereInSubqueries() []WhereInSubquery {
	return append([]WhereInSubquery(nil), qb.subqueries...)
}

// SetWhereInSubqueries replaces the where-in-subquery conditions
func (qb *SelectBuilder) SetWhereInSubqueries(subs []WhereInSubquery) *SelectBuilder {
	qb.subqueries = append([]WhereInSubquery(nil), subs...)
	return qb
}

// OrderBy appends an ORDER BY term. Direction is upper-cased and defaults to ASC.
func (qb *SelectBuilder) OrderBy(expr, direction string) *SelectBuilder {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir != "DESC" {
		dir = "ASC"
	}
	qb.orderBys = append(qb.orderBys, OrderBy{Expr: expr, Direction: dir})
	return qb
}

// OrderBys returns the ORDER BY terms
func (qb *SelectBuilder) OrderBys() []OrderBy {
	return append([]OrderBy(nil), qb.orderBys...)
}

// HasOrderBy reports whether any ordering was added
func (qb *SelectBuilder) HasOrderBy() bool {
	return len(qb.orderBys) > 0
}

// Offset sets the number of skipped rows
func (qb *SelectBuilder) Offset(n int) *SelectBuilder {
	qb.offset = n
	return qb
}

// OffsetValue returns the number of skipped rows
func (qb *SelectBuilder) OffsetValue() int {
	return qb.offset
}

// Limit sets the maximum number of rows. Zero means no limit.
func (qb *SelectBuilder) Limit(n int) *SelectBuilder {
	qb.limit = &n
	return qb
}

// LimitValue returns the limit and whether one was ever set
func (qb *SelectBuilder) LimitValue() (int, bool) {
	if qb.limit == nil {
		return 0, false
	}
	return *qb.limit, true
}

// BindValue binds a named parameter referenced as :name in expressions
func (qb *SelectBuilder) BindValue(name string, value interface{}) *SelectBuilder {
	qb.binds[name] = value
	return qb
}

// BoundValues returns a copy of the named parameters
func (qb *SelectBuilder) BoundValues() map[string]interface{} {
	out := make(map[string]interface{}, len(qb.binds))
	for k, v := range qb.binds {
		out[k] = v
	}
	return out
}

// ResetSelect clears the select list
func (qb *SelectBuilder) ResetSelect() *SelectBuilder {
	qb.selects = nil
	return qb
}

// ResetFrom clears the root entities
func (qb *SelectBuilder) ResetFrom() *SelectBuilder {
	qb.froms = nil
	return qb
}

// ResetJoins clears every join
func (qb *SelectBuilder) ResetJoins() *SelectBuilder {
	qb.joins = make(map[string][]*Join)
	qb.joinRoots = nil
	return qb
}

// ResetWhere clears the where conditions
func (qb *SelectBuilder) ResetWhere() *SelectBuilder {
	qb.wheres = nil
	return qb
}

// ResetWhereInSubqueries clears the where-in-subquery conditions
func (qb *SelectBuilder) ResetWhereInSubqueries() *SelectBuilder {
	qb.subqueries = nil
	return qb
}

// ResetOrderBy clears the ordering
func (qb *SelectBuilder) ResetOrderBy() *SelectBuilder {
	qb.orderBys = nil
	return qb
}

// Clone returns a deep copy of the builder, sub-queries included
func (qb *SelectBuilder) Clone() *SelectBuilder {
	c := &SelectBuilder{
		resolver:  qb.resolver,
		selects:   append([]string(nil), qb.selects...),
		froms:     append([]From(nil), qb.froms...),
		joins:     make(map[string][]*Join, len(qb.joins)),
		joinRoots: append([]string(nil), qb.joinRoots...),
		wheres:    append([]string(nil), qb.wheres...),
		orderBys:  append([]OrderBy(nil), qb.orderBys...),
		offset:    qb.offset,
		binds:     qb.BoundValues(),
	}
	for root, joins := range qb.joins {
		copied := make([]*Join, len(joins))
		for i, j := range joins {
			jj := *j
			copied[i] = &jj
		}
		c.joins[root] = copied
	}
	for _, s := range qb.subqueries {
		c.subqueries = append(c.subqueries, WhereInSubquery{Property: s.Property, SubQuery: s.SubQuery.Clone()})
	}
	if qb.limit != nil {
		l := *qb.limit
		c.limit = &l
	}
	return c
}

// findRootAlias returns the root alias a join hanging off parent belongs to
func (qb *SelectBuilder) findRootAlias(parent string) string {
	for _, f := range qb.froms {
		if f.Alias == parent {
			return parent
		}
	}
	for _, root := range qb.joinRoots {
		for _, j := range qb.joins[root] {
			if j.Alias == parent {
				return root
			}
		}
	}
	if len(qb.froms) > 0 {
		return qb.froms[0].Alias
	}
	return parent
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
