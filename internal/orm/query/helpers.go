package query

import (
	"fmt"
	"strings"
)

// ExistingJoin returns the join of association off alias, or nil
func ExistingJoin(qb *SelectBuilder, alias, association string) *Join {
	want := alias + "." + association
	for _, j := range qb.AllJoins() {
		if j.Join == want {
			return j
		}
	}
	return nil
}

// AddJoinOnce joins association off alias unless that join already exists, and
// returns the alias of the (existing or new) join. The join becomes a LEFT join
// when asked for or when the query already holds one, so rows are never dropped
// by a later inner join.
func AddJoinOnce(qb *SelectBuilder, names NameGenerator, alias, association string, joinType *JoinType) string {
	if j := ExistingJoin(qb, alias, association); j != nil {
		return j.Alias
	}

	newAlias := names.JoinAlias(association)
	if (joinType != nil && *joinType == LeftJoin) || HasLeftJoin(qb) {
		qb.LeftJoin(alias+"."+association, newAlias)
	} else {
		qb.InnerJoin(alias+"."+association, newAlias)
	}
	return newAlias
}

// AddJoinOnceAs behaves like AddJoinOnce but uses newAlias for a join it creates
func AddJoinOnceAs(qb *SelectBuilder, alias, association string, joinType JoinType, newAlias string) string {
	if j := ExistingJoin(qb, alias, association); j != nil {
		return j.Alias
	}
	if joinType == LeftJoin || HasLeftJoin(qb) {
		qb.LeftJoin(alias+"."+association, newAlias)
	} else {
		qb.InnerJoin(alias+"."+association, newAlias)
	}
	return newAlias
}

// HasLeftJoin reports whether the query contains a left join
func HasLeftJoin(qb *SelectBuilder) bool {
	for _, j := range qb.AllJoins() {
		if j.Type == LeftJoin {
			return true
		}
	}
	return false
}

// In adds "alias.property IN (...)" binding one parameter per value as prefix_<index>
func In(qb *SelectBuilder, alias, property string, values []interface{}, prefix string) {
	params := make([]string, len(values))
	for i, v := range values {
		name := fmt.Sprintf("%s_%d", prefix, i)
		qb.BindValue(name, v)
		params[i] = ":" + name
	}
	qb.Where(fmt.Sprintf("%s.%s IN (%s)", alias, property, strings.Join(params, ", ")))
}

// JoinTypePtr returns a pointer to t, for the optional argument of AddJoinOnce
func JoinTypePtr(t JoinType) *JoinType {
	return &t
}

// ReferencesAlias reports whether expr qualifies a name with alias, as in "alias.field".
// An alias that is only the tail or head of a longer identifier does not count.
func ReferencesAlias(expr, alias string) bool {
	if alias == "" {
		return false
	}
	target := alias + "."
	for from := 0; ; {
		i := strings.Index(expr[from:], target)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 || (!isIdentChar(expr[i-1]) && expr[i-1] != '.' && expr[i-1] != ':') {
			return true
		}
		from = i + 1
	}
}
