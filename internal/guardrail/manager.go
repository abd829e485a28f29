package guardrail

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clinicflow/triage/internal/llmclient"
)

// Tier names Config.GuardrailTier accepts.
const (
	TierSimple       = "simple"
	TierIntermediate = "intermediate"
	TierAdvanced     = "advanced"
)

// BuildConfig carries every dependency a tier might need; unused fields
// for a given tier are simply ignored.
type BuildConfig struct {
	Tier        string
	Redis       *redis.Client
	Provider    llmclient.Provider
	RateLimit   RateLimitConfig
	HistoryK    int
	MaxInputLen int
}

// Build selects and constructs the configured tier, wrapped in a
// Manager (spec.md §4.11: "A GuardrailManager selects one at startup").
func Build(cfg BuildConfig) (*Manager, error) {
	switch cfg.Tier {
	case "", TierSimple:
		return NewManager(NewSimple(cfg.MaxInputLen)), nil
	case TierIntermediate:
		return NewManager(NewIntermediate(cfg.Redis, cfg.Provider, cfg.RateLimit, cfg.HistoryK)), nil
	case TierAdvanced:
		return NewManager(NewAdvanced(cfg.Redis, cfg.Provider, cfg.RateLimit)), nil
	default:
		return nil, fmt.Errorf("guardrail: unknown tier %q", cfg.Tier)
	}
}
