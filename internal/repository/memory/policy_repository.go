package memory

import (
	"context"
	"sync"
	"time"

	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// PolicyRepository keeps policy versions in memory.
type PolicyRepository struct {
	mu       sync.RWMutex
	versions []policy.Config
}

// NewPolicyRepository creates a repository, optionally seeded with initial versions.
func NewPolicyRepository(seed ...policy.Config) *PolicyRepository {
	r := &PolicyRepository{}
	for _, cfg := range seed {
		_, _ = r.Publish(context.Background(), cfg)
	}
	return r
}

// Current returns the newest version.
func (r *PolicyRepository) Current(_ context.Context) (policy.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.versions) == 0 {
		return policy.Config{}, domain.NewNotFoundError("Policy", "current")
	}
	return r.versions[len(r.versions)-1], nil
}

// Publish appends cfg as the next version.
func (r *PolicyRepository) Publish(_ context.Context, cfg policy.Config) (policy.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg.Version = int64(len(r.versions)) + 1
	cfg.CreatedAt = time.Now().UTC()
	r.versions = append(r.versions, cfg)
	return cfg, nil
}

// History lists stored versions, newest first.
func (r *PolicyRepository) History(_ context.Context, limit int) ([]policy.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []policy.Config
	for i := len(r.versions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, r.versions[i])
	}
	return out, nil
}
