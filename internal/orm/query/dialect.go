package query

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between database engines
type Dialect interface {
	// Name returns the dialect name
	Name() string
	// Placeholder returns the n-th (1-based) positional parameter marker
	Placeholder(n int) string
	// QuoteIdentifier quotes a result column alias
	QuoteIdentifier(name string) string
	// LimitOffset renders the paging clause, empty when neither applies
	LimitOffset(limit, offset int) string
	// SupportsReturning reports whether INSERT ... RETURNING is available
	SupportsReturning() bool
}

type postgres struct{}

func (postgres) Name() string { return "postgres" }
func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgres) SupportsReturning() bool { return true }
func (postgres) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (postgres) LimitOffset(limit, offset int) string {
	var sb strings.Builder
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}

type mysql struct{}

func (mysql) Name() string { return "mysql" }
func (mysql) Placeholder(int) string { return "?" }
func (mysql) SupportsReturning() bool { return false }
func (mysql) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// MySQL cannot express OFFSET without LIMIT, so the largest unsigned value stands in.
func (mysql) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return ""
}

type sqlite struct{}

func (sqlite) Name() string { return "sqlite3" }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) SupportsReturning() bool { return false }
func (sqlite) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (sqlite) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

var (
	// Postgres renders $N placeholders
	Postgres Dialect = postgres{}
	// MySQL renders ? placeholders and backtick quoting
	MySQL Dialect = mysql{}
	// SQLite renders ? placeholders
	SQLite Dialect = sqlite{}
)

// DialectFor returns the dialect matching a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}
