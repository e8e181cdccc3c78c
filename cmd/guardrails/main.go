// Command guardrails administers the guardrail registry's SQLite database:
// seed the default code-execution pipeline, or list what's stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/agentpipeline/core/internal/registry"
)

func main() {
	dsn := flag.String("db", "guardrails.db", "path to the guardrails SQLite database")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	store, err := registry.OpenGuardrailStore(*dsn, true)
	if err != nil {
		log.Fatalf("guardrails: open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch args[0] {
	case "seed":
		if err := store.SeedCodeExecutionPipeline(ctx); err != nil {
			log.Fatalf("guardrails: seed: %v", err)
		}
		fmt.Println("seeded code-execution pipeline")
	case "list":
		guardrails, err := store.GuardrailsFor(ctx, "code-execution")
		if err != nil {
			log.Fatalf("guardrails: list: %v", err)
		}
		for _, g := range guardrails {
			fmt.Printf("%s\tenabled=%v\t%s\n", g.Name, g.Enabled, g.Description)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: guardrails [-db path] <seed|list>")
}
