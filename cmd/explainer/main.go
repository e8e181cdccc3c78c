// Command explainer runs the explainer agent as a standalone process. See
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
	"github.com/agentpipeline/core/internal/agents/explainer"
	"github.com/agentpipeline/core/internal/agents/refiner"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/modelclient"
	"github.com/agentpipeline/core/internal/obslog"
	"github.com/agentpipeline/core/internal/registry"
)

func main() {
	promptsDSN := flag.String("prompts-db", "file:prompts.db?mode=ro", "path to the prompts SQLite database")
	idleWait := flag.Duration("idle-wait", 50*time.Millisecond, "broker idle poll interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promptStore, err := registry.OpenPromptStore(*promptsDSN, false)
	if err != nil {
		log.Fatalf("explainer: open prompt store: %v", err)
	}
	defer promptStore.Close()

	provider := &modelclient.DeterministicProvider{}
	sink := obslog.NewSink(obslog.AgentLogsDir, obslog.ConversationLogsDir)

	def, err := explainer.Build(envelope.StreamNameFor(refiner.Name), provider, promptStore, sink)
	if err != nil {
		log.Fatalf("explainer: build agent: %v", err)
	}

	br := broker.NewInMemoryBroker(*idleWait)
	rt := runtime.New(def, br, runtime.DefaultConfig(), sink, nil)

	log.Printf("explainer: listening on %s", def.InputStream)
	if err := rt.Run(ctx); err != nil {
		log.Fatalf("explainer: %v", err)
	}
}
