// Command preprocessor runs the preprocessor agent as a standalone process.
//
// The in-process broker (internal/broker) does not span OS processes, so
// this binary is independently buildable and runnable but cannot today
// interoperate with a codegen agent started as a separate process; see
// cmd/submit for the in-process four-agent demonstration. A future
// networked broker implementation would let this binary run unmodified
// against the other agents' processes.
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
	"github.com/agentpipeline/core/internal/agents/preprocessor"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/obslog"
)

func main() {
	idleWait := flag.Duration("idle-wait", 50*time.Millisecond, "broker idle poll interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	def, err := preprocessor.Build(envelope.StreamNameFor(codegen.Name))
	if err != nil {
		log.Fatalf("preprocessor: build agent: %v", err)
	}

	br := broker.NewInMemoryBroker(*idleWait)
	sink := obslog.NewSink(obslog.AgentLogsDir, obslog.ConversationLogsDir)
	rt := runtime.New(def, br, runtime.DefaultConfig(), sink, nil)

	log.Printf("preprocessor: listening on %s", def.InputStream)
	if err := rt.Run(ctx); err != nil {
		log.Fatalf("preprocessor: %v", err)
	}
}
