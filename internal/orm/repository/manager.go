// Package repository executes select builders and persists records for mapped entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/mapping"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"go.uber.org/zap"
)

// Querier is the subset of *sql.DB and *sql.Tx used by managers
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Manager is the repository of one entity
type Manager struct {
	metadata *mapping.ClassMetadata
	resolver mapping.Resolver
	db       Querier
	dialect  query.Dialect
	logger   *zap.Logger
}

// NewManager creates a manager for the entity described by metadata
func NewManager(metadata *mapping.ClassMetadata, resolver mapping.Resolver, db Querier, dialect query.Dialect, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		metadata: metadata,
		resolver: resolver,
		db:       db,
		dialect:  dialect,
		logger:   logger,
	}
}

// ClassMetadata returns the entity metadata
func (m *Manager) ClassMetadata() *mapping.ClassMetadata {
	return m.metadata
}

// Dialect returns the SQL dialect queries are rendered in
func (m *Manager) Dialect() query.Dialect {
	return m.dialect
}

// CreateQueryBuilder returns a builder selecting every field of the entity under alias
func (m *Manager) CreateQueryBuilder(alias string) *query.SelectBuilder {
	return query.NewSelectBuilder(m.resolver).
		Select(alias).
		From(m.metadata.Name(), alias)
}

// Query runs qb and hydrates the rows into records of its root alias
func (m *Manager) Query(ctx context.Context, qb *query.SelectBuilder, h *hydrate.RelationalHydrator) ([]hydrate.Record, error) {
	root, err := qb.RootAlias()
	if err != nil {
		return nil, err
	}
	aliases, err := qb.AliasEntities()
	if err != nil {
		return nil, err
	}

	rows, err := m.QueryRows(ctx, qb)
	if err != nil {
		return nil, err
	}

	if h == nil {
		h = hydrate.NewRelationalHydrator()
	}
	return h.Hydrate(root, rows, aliases)
}

// QueryRows runs qb and returns the raw rows keyed by result column
func (m *Manager) QueryRows(ctx context.Context, qb *query.SelectBuilder) ([]map[string]interface{}, error) {
	stmt, args, err := qb.Statement(m.dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	m.logger.Debug("executing query", zap.String("entity", m.metadata.Name()), zap.String("sql", stmt), zap.Int("args", len(args)))

	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", ConvertDBError(err))
	}
	defer rows.Close()

	results, err := hydrate.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return results, nil
}

// Find loads one record by identifier values keyed by identifier field name
func (m *Manager) Find(ctx context.Context, ids map[string]interface{}) (hydrate.Record, error) {
	qb := m.CreateQueryBuilder("o")
	for _, name := range m.metadata.IdentifierFieldNames() {
		value, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingIdentifier, m.metadata.Name(), name)
		}
		qb.Where(fmt.Sprintf("o.%s = :%s", name, name)).BindValue(name, value)
	}
	qb.Limit(1)

	records, err := m.Query(ctx, qb, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Save inserts record, or updates it when its identifiers match an existing row.
// Generated identifiers are written back into record.
func (m *Manager) Save(ctx context.Context, record hydrate.Record) error {
	ids, complete := m.identifierValues(record)
	if complete {
		exists, err := m.exists(ctx, ids)
		if err != nil {
			return err
		}
		if exists {
			return m.update(ctx, record, ids)
		}
	}
	return m.insert(ctx, record)
}

// Delete removes the row identified by record
func (m *Manager) Delete(ctx context.Context, record hydrate.Record) error {
	ids, complete := m.identifierValues(record)
	if !complete {
		return fmt.Errorf("%w: cannot delete %s", ErrMissingIdentifier, m.metadata.Name())
	}

	where, args := m.identifierClause(ids, 0)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", m.metadata.TableName(), where)

	m.logger.Debug("deleting record", zap.String("entity", m.metadata.Name()), zap.String("sql", stmt))

	result, err := m.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", m.metadata.Name(), ConvertDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Manager) insert(ctx context.Context, record hydrate.Record) error {
	var (
		columns   []string
		markers   []string
		args      []interface{}
		generated *mapping.Field
	)

	for _, f := range m.metadata.Fields() {
		value, ok := record[f.Name]
		if f.Primary && (!ok || value == nil) {
			if !f.AutoIncrement {
				return fmt.Errorf("%w: %s.%s", ErrMissingIdentifier, m.metadata.Name(), f.Name)
			}
			field := f
			generated = &field
			continue
		}
		if !ok {
			continue
		}
		args = append(args, value)
		columns = append(columns, f.Column)
		markers = append(markers, m.dialect.Placeholder(len(args)))
	}

	var stmt string
	if len(columns) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", m.metadata.TableName())
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			m.metadata.TableName(), strings.Join(columns, ", "), strings.Join(markers, ", "))
	}

	m.logger.Debug("inserting record", zap.String("entity", m.metadata.Name()), zap.String("sql", stmt))

	if generated != nil && m.dialect.SupportsReturning() {
		var id interface{}
		err := m.db.QueryRowContext(ctx, stmt+" RETURNING "+generated.Column, args...).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", m.metadata.Name(), ConvertDBError(err))
		}
		record[generated.Name] = id
		return nil
	}

	result, err := m.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", m.metadata.Name(), ConvertDBError(err))
	}
	if generated != nil {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read generated identifier: %w", err)
		}
		record[generated.Name] = id
	}
	return nil
}

func (m *Manager) update(ctx context.Context, record hydrate.Record, ids map[string]interface{}) error {
	var (
		sets []string
		args []interface{}
	)
	for _, f := range m.metadata.Fields() {
		if f.Primary {
			continue
		}
		value, ok := record[f.Name]
		if !ok {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = %s", f.Column, m.dialect.Placeholder(len(args))))
	}
	if len(sets) == 0 {
		return nil
	}

	where, idArgs := m.identifierClause(ids, len(args))
	args = append(args, idArgs...)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s", m.metadata.TableName(), strings.Join(sets, ", "), where)

	m.logger.Debug("updating record", zap.String("entity", m.metadata.Name()), zap.String("sql", stmt))

	if _, err := m.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update %s: %w", m.metadata.Name(), ConvertDBError(err))
	}
	return nil
}

func (m *Manager) exists(ctx context.Context, ids map[string]interface{}) (bool, error) {
	where, args := m.identifierClause(ids, 0)
	stmt := fmt.Sprintf("SELECT 1 FROM %s WHERE %s", m.metadata.TableName(), where)

	var one int
	err := m.db.QueryRowContext(ctx, stmt, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", m.metadata.Name(), ConvertDBError(err))
	}
	return true, nil
}

// identifierValues returns the identifier values of record and whether none is missing
func (m *Manager) identifierValues(record hydrate.Record) (map[string]interface{}, bool) {
	ids := make(map[string]interface{})
	complete := len(m.metadata.Identifiers()) > 0
	for _, f := range m.metadata.Identifiers() {
		value, ok := record[f.Name]
		if !ok || value == nil {
			complete = false
			continue
		}
		ids[f.Name] = value
	}
	return ids, complete
}

// identifierClause renders "col = ? AND ..." numbering placeholders after offset
func (m *Manager) identifierClause(ids map[string]interface{}, offset int) (string, []interface{}) {
	var (
		parts []string
		args  []interface{}
	)
	for _, f := range m.metadata.Identifiers() {
		args = append(args, ids[f.Name])
		parts = append(parts, fmt.Sprintf("%s = %s", f.Column, m.dialect.Placeholder(offset+len(args))))
	}
	return strings.Join(parts, " AND "), args
}
