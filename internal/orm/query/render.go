package query

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/mapping"
)

// ColumnAlias is the result column name used for alias.field selects
func ColumnAlias(alias, field string) string {
	return alias + "__" + field
}

// AliasEntities resolves every alias used by the query to its entity metadata
func (qb *SelectBuilder) AliasEntities() (map[string]*mapping.ClassMetadata, error) {
	if qb.resolver == nil {
		return nil, fmt.Errorf("select builder has no mapping resolver")
	}

	aliases := make(map[string]*mapping.ClassMetadata)
	for _, f := range qb.froms {
		cm, ok := qb.resolver.Metadata(f.Entity)
		if !ok {
			return nil, fmt.Errorf("unknown entity %s", f.Entity)
		}
		aliases[f.Alias] = cm
	}

	for _, j := range qb.AllJoins() {
		cm, _, err := qb.resolveJoin(j, aliases)
		if err != nil {
			return nil, err
		}
		aliases[j.Alias] = cm
	}

	return aliases, nil
}

// resolveJoin returns the joined entity and, for association joins, the association
func (qb *SelectBuilder) resolveJoin(j *Join, aliases map[string]*mapping.ClassMetadata) (*mapping.ClassMetadata, *mapping.Association, error) {
	src, name, isAssociation := j.Association()
	if !isAssociation {
		cm, ok := qb.resolver.Metadata(j.Join)
		if !ok {
			return nil, nil, fmt.Errorf("unknown entity %s joined as %s", j.Join, j.Alias)
		}
		return cm, nil, nil
	}

	source, ok := aliases[src]
	if !ok {
		return nil, nil, fmt.Errorf("join %s references unknown alias %s", j.Join, src)
	}
	assoc, err := source.AssociationMapping(name)
	if err != nil {
		return nil, nil, err
	}
	target, ok := qb.resolver.Metadata(assoc.TargetEntity)
	if !ok {
		return nil, nil, fmt.Errorf("unknown entity %s targeted by %s", assoc.TargetEntity, j.Join)
	}
	return target, assoc, nil
}

// Statement renders the query for dialect and returns the SQL with its positional arguments
func (qb *SelectBuilder) Statement(d Dialect) (string, []interface{}, error) {
	st := &renderState{dialect: d}
	sql, err := qb.render(st, nil)
	if err != nil {
		return "", nil, err
	}
	return sql, st.args, nil
}

type renderState struct {
	dialect Dialect
	args    []interface{}
}

type bindLookup func(name string) (interface{}, bool)

func (qb *SelectBuilder) render(st *renderState, parent bindLookup) (string, error) {
	aliases, err := qb.AliasEntities()
	if err != nil {
		return "", err
	}
	if len(qb.selects) == 0 {
		return "", fmt.Errorf("query selects nothing")
	}

	lookup := func(name string) (interface{}, bool) {
		if v, ok := qb.binds[name]; ok {
			return v, true
		}
		if parent != nil {
			return parent(name)
		}
		return nil, false
	}
	r := &rewriter{aliases: aliases, state: st, lookup: lookup}

	var sql strings.Builder
	sql.WriteString("SELECT ")
	for i, expr := range qb.selects {
		if i > 0 {
			sql.WriteString(", ")
		}
		part, err := r.selectExpr(expr)
		if err != nil {
			return "", err
		}
		sql.WriteString(part)
	}

	sql.WriteString(" FROM ")
	for i, f := range qb.froms {
		if i > 0 {
			sql.WriteString(", ")
		}
		fmt.Fprintf(&sql, "%s AS %s", aliases[f.Alias].TableName(), f.Alias)

		for _, j := range qb.joins[f.Alias] {
			part, err := qb.renderJoin(j, aliases, r)
			if err != nil {
				return "", err
			}
			sql.WriteString(part)
		}
	}
	for _, root := range qb.joinRoots {
		if qb.isFromAlias(root) {
			continue
		}
		for _, j := range qb.joins[root] {
			part, err := qb.renderJoin(j, aliases, r)
			if err != nil {
				return "", err
			}
			sql.WriteString(part)
		}
	}

	conds := make([]string, 0, len(qb.wheres)+len(qb.subqueries))
	for _, w := range qb.wheres {
		cond, err := r.rewrite(w)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	for _, s := range qb.subqueries {
		property, err := r.rewrite(s.Property)
		if err != nil {
			return "", err
		}
		sub, err := s.SubQuery.render(st, lookup)
		if err != nil {
			return "", fmt.Errorf("sub-query for %s: %w", s.Property, err)
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", property, sub))
	}
	if len(conds) > 0 {
		sql.WriteString(" WHERE ")
		sql.WriteString(strings.Join(conds, " AND "))
	}

	if len(qb.orderBys) > 0 {
		sql.WriteString(" ORDER BY ")
		for i, o := range qb.orderBys {
			if i > 0 {
				sql.WriteString(", ")
			}
			expr, err := r.rewrite(o.Expr)
			if err != nil {
				return "", err
			}
			sql.WriteString(expr + " " + o.Direction)
		}
	}

	limit, _ := qb.LimitValue()
	sql.WriteString(st.dialect.LimitOffset(limit, qb.offset))

	return sql.String(), nil
}

func (qb *SelectBuilder) isFromAlias(alias string) bool {
	for _, f := range qb.froms {
		if f.Alias == alias {
			return true
		}
	}
	return false
}

func (qb *SelectBuilder) renderJoin(j *Join, aliases map[string]*mapping.ClassMetadata, r *rewriter) (string, error) {
	target, assoc, err := qb.resolveJoin(j, aliases)
	if err != nil {
		return "", err
	}

	var on []string
	if assoc != nil {
		src, _, _ := j.Association()
		for _, jc := range assoc.JoinColumns {
			on = append(on, fmt.Sprintf("%s.%s = %s.%s", src, jc.Source, j.Alias, jc.Target))
		}
	}
	if j.Condition != "" {
		cond, err := r.rewrite(j.Condition)
		if err != nil {
			return "", err
		}
		if len(on) > 0 {
			cond = "(" + cond + ")"
		}
		on = append(on, cond)
	}
	if len(on) == 0 {
		return "", fmt.Errorf("join %s AS %s has no condition", j.Join, j.Alias)
	}

	return fmt.Sprintf(" %s JOIN %s AS %s ON %s", j.Type, target.TableName(), j.Alias, strings.Join(on, " AND ")), nil
}

// rewriter resolves alias.field references and named parameters inside expressions
type rewriter struct {
	aliases map[string]*mapping.ClassMetadata
	state   *renderState
	lookup  bindLookup
}

func (r *rewriter) selectExpr(expr string) (string, error) {
	q := r.state.dialect.QuoteIdentifier

	if cm, ok := r.aliases[expr]; ok {
		cols := make([]string, 0, len(cm.Fields()))
		for _, f := range cm.Fields() {
			cols = append(cols, fmt.Sprintf("%s.%s AS %s", expr, f.Column, q(ColumnAlias(expr, f.Name))))
		}
		return strings.Join(cols, ", "), nil
	}

	if pos := strings.IndexByte(expr, '.'); pos > 0 && isIdentifier(expr[:pos]) && isIdentifier(expr[pos+1:]) {
		alias, name := expr[:pos], expr[pos+1:]
		if cm, ok := r.aliases[alias]; ok {
			if f, ok := cm.Field(name); ok {
				return fmt.Sprintf("%s.%s AS %s", alias, f.Column, q(ColumnAlias(alias, f.Name))), nil
			}
		}
	}

	return r.rewrite(expr)
}

// rewrite walks expr once, skipping quoted sections, replacing alias.field with
// alias.column and :name with the dialect placeholder of the bound value.
func (r *rewriter) rewrite(expr string) (string, error) {
	var out strings.Builder
	n := len(expr)

	for i := 0; i < n; {
		c := expr[i]

		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(expr, i)
			out.WriteString(expr[i:end])
			i = end

		case c == ':':
			if i+1 < n && expr[i+1] == ':' {
				out.WriteString("::")
				i += 2
				continue
			}
			if i+1 < n && isIdentStart(expr[i+1]) && (i == 0 || !isIdentChar(expr[i-1])) {
				end := i + 1
				for end < n && isIdentChar(expr[end]) {
					end++
				}
				name := expr[i+1 : end]
				value, ok := r.lookup(name)
				if !ok {
					return "", fmt.Errorf("parameter :%s is not bound", name)
				}
				r.state.args = append(r.state.args, value)
				out.WriteString(r.state.dialect.Placeholder(len(r.state.args)))
				i = end
				continue
			}
			out.WriteByte(c)
			i++

		case isIdentStart(c) && (i == 0 || (!isIdentChar(expr[i-1]) && expr[i-1] != '.')):
			end := i
			for end < n && isIdentChar(expr[end]) {
				end++
			}
			first := expr[i:end]
			if end+1 < n && expr[end] == '.' && isIdentStart(expr[end+1]) {
				second := end + 1
				for second < n && isIdentChar(expr[second]) {
					second++
				}
				name := expr[end+1 : second]
				if cm, ok := r.aliases[first]; ok {
					out.WriteString(first + "." + cm.ColumnName(name))
				} else {
					out.WriteString(expr[i:second])
				}
				i = second
				continue
			}
			out.WriteString(first)
			i = end

		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), nil
}

func closingQuote(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
