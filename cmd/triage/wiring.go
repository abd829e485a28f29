package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/clinicflow/triage/internal/agents"
	"github.com/clinicflow/triage/internal/appointment"
	"github.com/clinicflow/triage/internal/config"
	"github.com/clinicflow/triage/internal/engine"
	"github.com/clinicflow/triage/internal/guardrail"
	"github.com/clinicflow/triage/internal/knowledge"
	"github.com/clinicflow/triage/internal/llmclient"
	"github.com/clinicflow/triage/internal/retrieval"
	"github.com/clinicflow/triage/internal/supervisor"
)

// buildEngine wires every SPEC_FULL.md component from cfg into a ready
// Engine, grounded on main.go's own top-to-bottom construction style in
// showcases/health_insights_agent (config -> processor -> agent), widened
// to this repo's larger dependency graph.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	model, err := openai.New(
		openai.WithToken(cfg.LLMAPIKey),
		openai.WithModel(cfg.LLMModel),
		openai.WithBaseURL(cfg.LLMBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("build LLM: %w", err)
	}
	provider := llmclient.NewLangchainAdapter(model)

	embedModel, err := openai.New(openai.WithToken(cfg.LLMAPIKey), openai.WithBaseURL(cfg.LLMBaseURL))
	if err != nil {
		return nil, fmt.Errorf("build embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedModel)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	index, err := retrieval.NewChromemIndex(retrieval.ChromemConfig{
		PersistenceDir: cfg.ChromemPersistDir,
		CollectionName: cfg.KnowledgeCollection,
		Embed:          embedder.EmbedQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	reranker := retrieval.NewLLMReranker(provider, retrieval.DefaultLLMRerankerConfig())

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	apptStore := appointment.NewStore(pool, cfg.AppointmentsTable)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	gm, err := guardrail.Build(guardrail.BuildConfig{
		Tier:     cfg.GuardrailTier,
		Redis:    rdb,
		Provider: provider,
		RateLimit: guardrail.RateLimitConfig{
			MaxMessages: cfg.RateLimitMaxMsgs,
			Window:      time.Duration(cfg.RateLimitWindowSecs) * time.Second,
		},
		HistoryK:    cfg.HistoryWindowK,
		MaxInputLen: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("build guardrail: %w", err)
	}

	registry := agents.Registry{
		supervisor.AgentConversation:     agents.NewConversationAgent(knowledge.New(defaultFAQEntries(), 100)),
		supervisor.AgentAppointment:      agents.NewAppointmentAgent(apptStore, cfg.ClinicConfig(), provider),
		supervisor.AgentImageAnalyzer:    agents.NewImageAnalyzer(provider),
		supervisor.AgentSymptomExtractor: agents.NewSymptomExtractor(provider),
		supervisor.AgentDiagnosis:        agents.NewDiagnosisEngine(provider),
		supervisor.AgentInvestigation:    agents.NewInvestigationGenerator(provider),
		supervisor.AgentDocumentRetrieve: agents.NewDocumentRetriever(index, reranker),
		supervisor.AgentRecommender:      agents.NewRecommender(provider),
	}

	sup := supervisor.New(supervisor.NewLLMClassifier(provider), cfg.InvestigationSkipThreshold)

	return engine.New(sup, registry, gm)
}

// defaultFAQEntries seeds the clinic's FAQ knowledge base. A real
// deployment loads these from the clinic's own content store; out of
// scope here (spec.md §1 puts content authoring outside the core).
func defaultFAQEntries() []knowledge.Entry {
	return []knowledge.Entry{
		{Question: "What are your hours?", Answer: "We're open Monday to Saturday, 8am to 6pm.", Tags: []string{"hours"}},
		{Question: "Where are you located?", Answer: "123 Main Street, Suite 200.", Tags: []string{"location"}},
		{Question: "Do you accept insurance?", Answer: "We accept most major insurance plans; call us to confirm yours.", Tags: []string{"insurance"}},
	}
}
