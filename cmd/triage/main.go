package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clinicflow/triage/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "-h" || command == "--help" {
		printHelp()
		return
	}

	cfg := config.Load()
	ctx := context.Background()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, cfg, os.Args[2:])
	case "evaluate":
		err = runEvaluate(ctx, cfg, os.Args[2:])
	case "ingest":
		err = runIngest(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("triage %s: %v", command, err)
	}
}

func printHelp() {
	fmt.Println(`clinicflow-triage - multi-agent clinic triage engine

Usage:
  triage <command> [flags]

Commands:
  serve      run the HTTP chat server
  evaluate   replay a JSONL transcript dataset through the engine
  ingest     chunk documents from a directory into the knowledge vector index
  help       show this message

Environment:
  LLM_API_KEY, LLM_MODEL, LLM_API_BASE   LLM provider credentials/model
  GUARDRAIL_TIER                          simple | intermediate | advanced
  POSTGRES_DSN, REDIS_ADDR                backing stores
`)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}
