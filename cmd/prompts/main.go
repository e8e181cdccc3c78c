// Command prompts administers the prompt registry's SQLite database:
// create, add-version, get, list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/agentpipeline/core/internal/registry"
)

func main() {
	dsn := flag.String("db", "prompts.db", "path to the prompts SQLite database")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	store, err := registry.OpenPromptStore(*dsn, true)
	if err != nil {
		log.Fatalf("prompts: open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch args[0] {
	case "create":
		if len(args) < 2 {
			log.Fatal("prompts: create requires a name")
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		if err := store.CreatePrompt(ctx, args[1], description); err != nil {
			log.Fatalf("prompts: create: %v", err)
		}
		fmt.Printf("created prompt %q\n", args[1])

	case "add-version":
		if len(args) < 4 {
			log.Fatal("prompts: add-version requires <name> <version> <content>")
		}
		version, err := strconv.Atoi(args[2])
		if err != nil {
			log.Fatalf("prompts: invalid version %q: %v", args[2], err)
		}
		if err := store.AddVersion(ctx, args[1], version, args[3], true); err != nil {
			log.Fatalf("prompts: add-version: %v", err)
		}
		fmt.Printf("added version %d to prompt %q\n", version, args[1])

	case "get":
		if len(args) < 2 {
			log.Fatal("prompts: get requires a name")
		}
		content, err := store.Get(ctx, args[1], nil)
		if err != nil {
			log.Fatalf("prompts: get: %v", err)
		}
		fmt.Println(content)

	case "list":
		names, err := store.ListPrompts(ctx)
		if err != nil {
			log.Fatalf("prompts: list: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: prompts [-db path] <create|add-version|get|list> [args...]")
}
