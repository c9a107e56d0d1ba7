package state

import (
	"context"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/orm/hydrate"
	"github.com/conduit-lang/apiorm/internal/orm/repository"
	"go.uber.org/zap"
)

// PersistProcessor saves the records written by an operation
type PersistProcessor struct {
	registry *repository.Registry
	logger   *zap.Logger
}

// NewPersistProcessor creates the processor
func NewPersistProcessor(registry *repository.Registry, logger *zap.Logger) *PersistProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistProcessor{registry: registry, logger: logger}
}

// Process inserts or updates data and returns it with generated identifiers filled in.
// Nil data and resources without an entity are returned untouched.
func (p *PersistProcessor) Process(ctx context.Context, data hydrate.Record, op *metadata.Operation, _ map[string]interface{}, _ *metadata.Context) (hydrate.Record, error) {
	if data == nil || op == nil {
		return data, nil
	}
	manager, ok := p.registry.ManagerFor(op.Resource)
	if !ok {
		return data, nil
	}

	if err := manager.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to persist %s: %w", op.Resource, err)
	}
	p.logger.Debug("record persisted", zap.String("resource", op.Resource), zap.String("operation", op.Name))
	return data, nil
}

// RemoveProcessor deletes the record targeted by an operation
type RemoveProcessor struct {
	registry *repository.Registry
	logger   *zap.Logger
}

// NewRemoveProcessor creates the processor
func NewRemoveProcessor(registry *repository.Registry, logger *zap.Logger) *RemoveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoveProcessor{registry: registry, logger: logger}
}

// Process deletes data. A row that is already gone yields repository.ErrNotFound.
func (p *RemoveProcessor) Process(ctx context.Context, data hydrate.Record, op *metadata.Operation, _ map[string]interface{}, _ *metadata.Context) error {
	if data == nil || op == nil {
		return nil
	}
	manager, ok := p.registry.ManagerFor(op.Resource)
	if !ok {
		return nil
	}

	if err := manager.Delete(ctx, data); err != nil {
		return fmt.Errorf("failed to remove %s: %w", op.Resource, err)
	}
	p.logger.Debug("record removed", zap.String("resource", op.Resource), zap.String("operation", op.Name))
	return nil
}
