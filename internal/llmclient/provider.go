// Package llmclient wraps github.com/tmc/langchaingo's llms.Model behind
// the capability interface spec.md §6 requires of the core's one external
// LLM collaborator, grounded on adapter/llm_adapter.go.
package llmclient

import (
	"context"
	"fmt"

	"github.com/clinicflow/triage/internal/state"
	"github.com/tmc/langchaingo/llms"
)

// Provider is the capability interface every agent depends on. Agent
// packages never import langchaingo directly — only this package and its
// concrete binding in cmd/triage do.
type Provider interface {
	// Generate produces free text from a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStructured produces raw text intended to be parsed against
	// schema by the caller (see structured.go for the extraction
	// contract); schemaHint is embedded in the prompt as a description of
	// the desired shape.
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaHint string) (string, error)

	// GenerateMultimodal produces raw text from a prompt plus one image,
	// used only by ImageAnalyzer's single batched call.
	GenerateMultimodal(ctx context.Context, systemPrompt, userPrompt string, image *state.Image, schemaHint string) (string, error)
}

// LangchainAdapter adapts an llms.Model to Provider.
type LangchainAdapter struct {
	Model llms.Model
}

// NewLangchainAdapter wraps an existing langchaingo model (e.g. the
// OpenAI binding wired in cmd/triage).
func NewLangchainAdapter(model llms.Model) *LangchainAdapter {
	return &LangchainAdapter{Model: model}
}

func (a *LangchainAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, a.Model, prompt)
}

func (a *LangchainAdapter) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaHint string) (string, error) {
	full := userPrompt
	if schemaHint != "" {
		full = fmt.Sprintf("%s\n\nRespond with JSON matching this shape: %s", userPrompt, schemaHint)
	}
	resp, err := a.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, full),
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}

func (a *LangchainAdapter) GenerateMultimodal(ctx context.Context, systemPrompt, userPrompt string, image *state.Image, schemaHint string) (string, error) {
	full := userPrompt
	if schemaHint != "" {
		full = fmt.Sprintf("%s\n\nRespond with JSON matching this shape: %s", userPrompt, schemaHint)
	}

	parts := []llms.ContentPart{llms.TextPart(full)}
	if image != nil {
		parts = append(parts, llms.ImageURLPart(image.BlobRef))
	}

	resp, err := a.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmclient: empty response")
	}
	return resp.Choices[0].Content, nil
}
