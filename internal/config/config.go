// Package config is env-var driven application configuration, grounded
// on showcases/health_insights_agent/config/config.go's getEnv/Validate
// shape, generalized to the triage engine's own fields.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/clinicflow/triage/internal/agents"
	"github.com/clinicflow/triage/internal/guardrail"
)

var ErrMissingAPIKey = errors.New("config: LLM_API_KEY is required")

// Config holds every tunable named across SPEC_FULL.md's modules.
type Config struct {
	// LLM
	LLMProvider    string
	LLMModel       string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMTemperature float64
	LLMMaxTokens   int

	// App
	AppName  string
	Verbose  bool
	LogLevel string

	// Guardrail
	GuardrailTier       string // "simple" | "intermediate" | "advanced"
	HistoryWindowK      int
	RateLimitMaxMsgs    int
	RateLimitWindowSecs int
	QualityBlockThresh  float64

	// Supervisor
	InvestigationSkipThreshold float64

	// Clinic / appointments
	ClinicOpenHour  int
	ClinicCloseHour int
	ClinicProviders []string

	// Postgres
	PostgresDSN   string
	AppointmentsTable string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Knowledge base / RAG
	KnowledgeCollection string
	ChromemPersistDir   string
	RetrievalCandidateK int
	RetrievalEvidenceK  int
}

// Load reads Config from the environment, applying the same defaults the
// teacher's showcase config does (sane fallbacks, never a hard failure
// until Validate).
func Load() *Config {
	temperature, _ := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.2"), 64)
	maxTokens, _ := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "2000"))
	historyK, _ := strconv.Atoi(getEnv("HISTORY_WINDOW_K", "20"))
	rateMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_MAX_MESSAGES", "20"))
	rateWindow, _ := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))
	qualityThresh, _ := strconv.ParseFloat(getEnv("QUALITY_BLOCK_THRESHOLD", "0.4"), 64)
	skipThresh, _ := strconv.ParseFloat(getEnv("INVESTIGATION_SKIP_THRESHOLD", "0.7"), 64)
	openHour, _ := strconv.Atoi(getEnv("CLINIC_OPEN_HOUR", "8"))
	closeHour, _ := strconv.Atoi(getEnv("CLINIC_CLOSE_HOUR", "18"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	candidateK, _ := strconv.Atoi(getEnv("RETRIEVAL_CANDIDATE_K", "20"))
	evidenceK, _ := strconv.Atoi(getEnv("RETRIEVAL_EVIDENCE_K", "5"))

	return &Config{
		LLMProvider:    getEnv("LLM_PROVIDER", "openai"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_API_BASE", ""),
		LLMTemperature: temperature,
		LLMMaxTokens:   maxTokens,

		AppName:  "clinicflow-triage",
		Verbose:  getEnv("VERBOSE", "false") == "true",
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GuardrailTier:       getEnv("GUARDRAIL_TIER", guardrail.TierSimple),
		HistoryWindowK:      historyK,
		RateLimitMaxMsgs:    rateMax,
		RateLimitWindowSecs: rateWindow,
		QualityBlockThresh:  qualityThresh,

		InvestigationSkipThreshold: skipThresh,

		ClinicOpenHour:  openHour,
		ClinicCloseHour: closeHour,
		ClinicProviders: splitCSV(getEnv("CLINIC_PROVIDERS", "")),

		PostgresDSN:       getEnv("POSTGRES_DSN", "postgres://localhost:5432/triage"),
		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "appointments"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		KnowledgeCollection: getEnv("KNOWLEDGE_COLLECTION", "clinic_faq"),
		ChromemPersistDir:   getEnv("CHROMEM_PERSIST_DIR", ""),
		RetrievalCandidateK: candidateK,
		RetrievalEvidenceK:  evidenceK,
	}
}

// Validate checks the invariants the engine can't safely start without,
// clamping out-of-range tunables back to their defaults rather than
// failing the whole process over a cosmetic misconfiguration — mirroring
// the teacher's own Validate (temperature/maxTokens/PDF-size clamping).
func (c *Config) Validate() error {
	if c.LLMAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		c.LLMTemperature = 0.2
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = 2000
	}
	if c.HistoryWindowK <= 0 {
		c.HistoryWindowK = 20
	}
	switch c.GuardrailTier {
	case guardrail.TierSimple, guardrail.TierIntermediate, guardrail.TierAdvanced:
	default:
		c.GuardrailTier = guardrail.TierSimple
	}
	return nil
}

// ClinicConfig adapts the clinic-hours fields to agents.ClinicConfig.
func (c *Config) ClinicConfig() agents.ClinicConfig {
	return agents.ClinicConfig{
		OpenHour:  c.ClinicOpenHour,
		CloseHour: c.ClinicCloseHour,
		Providers: c.ClinicProviders,
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
