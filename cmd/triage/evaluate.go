package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/clinicflow/triage/internal/config"
	"github.com/clinicflow/triage/internal/engine"
)

// evaluateCase is one line of the replayed dataset: a single turn. Lines
// sharing a session_id replay in file order, so history accumulates the
// same way a live conversation would.
type evaluateCase struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

func runEvaluate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlagSet("evaluate")
	dataset := fs.String("dataset", "", "path to a JSONL file of {session_id, user_input} lines")
	fs.Parse(args)

	if *dataset == "" {
		return fmt.Errorf("-dataset is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	e, err := buildEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	f, err := os.Open(*dataset)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	total, failed := 0, 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c evaluateCase
		if err := json.Unmarshal(line, &c); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed line: %v\n", err)
			continue
		}

		total++
		resp, err := e.Chat(ctx, engine.ChatRequest{SessionID: c.SessionID, UserInput: c.UserInput})
		if err != nil {
			failed++
			fmt.Printf("[%s] ERROR: %v\n", c.SessionID, err)
			continue
		}
		fmt.Printf("[%s] (trace %s) %s\n", c.SessionID, resp.TraceID, resp.Response)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	fmt.Printf("\n%d turns replayed, %d errored\n", total, failed)
	return nil
}
