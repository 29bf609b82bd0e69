// Package checkpoint records append-only audit snapshots of matching
// decisions. Checkpoints are never updated or deleted; a reviewed match
// simply points at its newest checkpoint.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xdmiq/jobmatch/internal/model"
)

// Service persists checkpoints on the shared database handle.
type Service struct {
	db *gorm.DB
}

// NewService builds a Service on the given handle.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("checkpoint.Service: db handle is required")
	}
	return &Service{db: db}, nil
}

// Create durably records a decision snapshot for the given entity and
// returns the stored checkpoint.
func (s *Service) Create(ctx context.Context, checkpointType, entityID string, state map[string]any, createdBy string) (*model.Checkpoint, error) {
	if checkpointType == "" {
		return nil, errors.New("checkpoint type is required")
	}
	if entityID == "" {
		return nil, errors.New("entity id is required")
	}

	cp := &model.Checkpoint{
		ID:             uuid.NewString(),
		CheckpointType: checkpointType,
		EntityID:       entityID,
		StateData:      datatypes.JSONMap(state),
		CreatedBy:      createdBy,
	}

	if err := s.db.WithContext(ctx).Create(cp).Error; err != nil {
		return nil, fmt.Errorf("create checkpoint: %w", err)
	}
	return cp, nil
}

// Get returns the checkpoint with the given id, or nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	if err := s.db.WithContext(ctx).First(&cp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &cp, nil
}

// ListByEntity returns all checkpoints recorded for an entity, oldest
// first, for audit queries.
func (s *Service) ListByEntity(ctx context.Context, entityID string) ([]model.Checkpoint, error) {
	var cps []model.Checkpoint
	if err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&cps).Error; err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return cps, nil
}
