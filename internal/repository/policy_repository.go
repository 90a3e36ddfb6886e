package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// GormPolicyRepository stores immutable policy versions in policy_versions.
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository.
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// Current returns the highest stored version.
func (r *GormPolicyRepository) Current(ctx context.Context) (policy.Config, error) {
	var model PolicyModel
	if err := r.db.WithContext(ctx).Order("version DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Config{}, domain.NewNotFoundError("Policy", "current")
		}
		return policy.Config{}, fmt.Errorf("failed to load current policy: %w", err)
	}
	return toDomainPolicy(&model)
}

// Publish stores cfg as max(version)+1. Two concurrent publishers race on the primary key and the loser gets a conflict.
func (r *GormPolicyRepository) Publish(ctx context.Context, cfg policy.Config) (policy.Config, error) {
	var maxVersion int64
	if err := r.db.WithContext(ctx).Model(&PolicyModel{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return policy.Config{}, fmt.Errorf("failed to read policy version: %w", err)
	}

	cfg.Version = maxVersion + 1
	cfg.CreatedAt = time.Now().UTC()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return policy.Config{}, fmt.Errorf("failed to marshal policy: %w", err)
	}

	model := &PolicyModel{Version: cfg.Version, Config: raw, CreatedAt: cfg.CreatedAt}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return policy.Config{}, domain.NewConflictError("policy version was published concurrently")
		}
		return policy.Config{}, fmt.Errorf("failed to publish policy: %w", err)
	}
	return cfg, nil
}

// History lists stored versions, newest first.
func (r *GormPolicyRepository) History(ctx context.Context, limit int) ([]policy.Config, error) {
	q := r.db.WithContext(ctx).Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []PolicyModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list policy versions: %w", err)
	}

	out := make([]policy.Config, 0, len(models))
	for i := range models {
		cfg, err := toDomainPolicy(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func toDomainPolicy(m *PolicyModel) (policy.Config, error) {
	var cfg policy.Config
	if err := json.Unmarshal(m.Config, &cfg); err != nil {
		return policy.Config{}, fmt.Errorf("failed to unmarshal policy %d: %w", m.Version, err)
	}
	cfg.Version = m.Version
	cfg.CreatedAt = m.CreatedAt.UTC()
	return cfg, nil
}
