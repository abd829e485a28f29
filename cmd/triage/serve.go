package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicflow/triage/internal/config"
	"github.com/clinicflow/triage/internal/engine"
	"github.com/clinicflow/triage/internal/state"
)

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", ":8080", "listen address")
	fs.Parse(args)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(engine.TurnBudget + 5*time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/chat", chatHandler(e))

	log.Printf("clinicflow-triage listening on %s (guardrail tier: %s)", *addr, cfg.GuardrailTier)
	return http.ListenAndServe(*addr, r)
}

type chatRequestBody struct {
	SessionID string      `json:"session_id"`
	UserInput string      `json:"user_input"`
	Image     *imageBody  `json:"image,omitempty"`
}

type imageBody struct {
	BlobRef string `json:"blob_ref"`
	MIME    string `json:"mime"`
}

type chatResponseBody struct {
	Response       string                 `json:"response"`
	UpdatedHistory []engine.HistoryEntry  `json:"updated_history"`
	TraceID        string                 `json:"trace_id"`
}

func chatHandler(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body chatRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if body.SessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}

		req := engine.ChatRequest{SessionID: body.SessionID, UserInput: body.UserInput}
		if body.Image != nil {
			req.Image = &state.Image{BlobRef: body.Image.BlobRef, MIME: body.Image.MIME}
		}

		resp, err := e.Chat(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponseBody{
			Response:       resp.Response,
			UpdatedHistory: resp.UpdatedHistory,
			TraceID:        resp.TraceID,
		})
	}
}
