// Command codegen runs the codegen agent as a standalone process. See
// cmd/preprocessor's doc comment for the broker-locality caveat.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/runtime"
	"github.com/agentpipeline/core/internal/agents/codegen"
	"github.com/agentpipeline/core/internal/agents/explainer"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/modelclient"
	"github.com/agentpipeline/core/internal/obslog"
	"github.com/agentpipeline/core/internal/registry"
)

func main() {
	guardrailsDSN := flag.String("guardrails-db", "file:guardrails.db?mode=ro", "path to the guardrails SQLite database")
	promptsDSN := flag.String("prompts-db", "file:prompts.db?mode=ro", "path to the prompts SQLite database")
	idleWait := flag.Duration("idle-wait", 50*time.Millisecond, "broker idle poll interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	guardStore, err := registry.OpenGuardrailStore(*guardrailsDSN, false)
	if err != nil {
		log.Fatalf("codegen: open guardrail store: %v", err)
	}
	defer guardStore.Close()

	guardrails, err := guardStore.GuardrailsFor(ctx, "code-execution")
	if err != nil {
		log.Fatalf("codegen: load guardrails: %v", err)
	}

	promptStore, err := registry.OpenPromptStore(*promptsDSN, false)
	if err != nil {
		log.Fatalf("codegen: open prompt store: %v", err)
	}
	defer promptStore.Close()

	provider := &modelclient.DeterministicProvider{}
	sink := obslog.NewSink(obslog.AgentLogsDir, obslog.ConversationLogsDir)

	def, err := codegen.Build(envelope.StreamNameFor(explainer.Name), provider, guardrails, promptStore, sink)
	if err != nil {
		log.Fatalf("codegen: build agent: %v", err)
	}

	br := broker.NewInMemoryBroker(*idleWait)
	rt := runtime.New(def, br, runtime.DefaultConfig(), sink, nil)

	log.Printf("codegen: listening on %s", def.InputStream)
	if err := rt.Run(ctx); err != nil {
		log.Fatalf("codegen: %v", err)
	}
}
