package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/domain/policy"
)

// PolicyService publishes and reads policy versions.
type PolicyService struct {
	repo   policy.Repository
	logger *zap.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(repo policy.Repository, logger *zap.Logger) *PolicyService {
	return &PolicyService{repo: repo, logger: logger}
}

// Current returns the policy in force.
func (s *PolicyService) Current(ctx context.Context) (*policy.Config, error) {
	cfg, err := s.repo.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Publish stores cfg as the next version. Transitions already in flight keep the snapshot they loaded.
func (s *PolicyService) Publish(ctx context.Context, cfg policy.Config) (*policy.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stored, err := s.repo.Publish(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to publish policy: %w", err)
	}
	s.logger.Info("policy published", zap.Int64("version", stored.Version))
	return &stored, nil
}

// History lists recent policy versions, newest first.
func (s *PolicyService) History(ctx context.Context, limit int) ([]policy.Config, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.History(ctx, limit)
}

// EnsureSeed publishes seed as version 1 when no policy has been stored yet.
func (s *PolicyService) EnsureSeed(ctx context.Context, seed policy.Config) error {
	history, err := s.repo.History(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to read policy history: %w", err)
	}
	if len(history) > 0 {
		return nil
	}
	if _, err := s.Publish(ctx, seed); err != nil {
		return err
	}
	return nil
}
