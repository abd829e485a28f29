package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/triage/internal/guardrail"
)

func TestLoad_AppliesDefaultsWhenEnvUnset(t *testing.T) {
	cfg := Load()
	assert.Equal(t, guardrail.TierSimple, cfg.GuardrailTier)
	assert.Equal(t, 20, cfg.HistoryWindowK)
	assert.Equal(t, 0.7, cfg.InvestigationSkipThreshold)
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	cfg := Load()
	cfg.LLMAPIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestValidate_ClampsUnknownGuardrailTier(t *testing.T) {
	cfg := Load()
	cfg.LLMAPIKey = "test-key"
	cfg.GuardrailTier = "nonsense"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, guardrail.TierSimple, cfg.GuardrailTier)
}

func TestLoad_ReadsClinicProvidersFromCSV(t *testing.T) {
	t.Setenv("CLINIC_PROVIDERS", "dr-lee, dr-patel ,dr-nguyen")
	cfg := Load()
	assert.Equal(t, []string{"dr-lee", "dr-patel", "dr-nguyen"}, cfg.ClinicProviders)
	_ = os.Unsetenv("CLINIC_PROVIDERS")
}
