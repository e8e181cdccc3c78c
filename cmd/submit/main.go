// Command submit publishes one request envelope to the preprocessor agent
// and waits on the terminal agent's observability sink for a result.
//
// The broker implementation shipped with this module (internal/broker) is an
// in-process durable queue: durable only for the owning process's lifetime.
// Because of that, this binary also boots all four agent
// runtimes in-process against one shared broker, rather than assuming four
// independently started cmd/<agent> processes can see each other's
// messages — they cannot, today, since each would construct its own
// broker. The per-agent cmd/<agent> binaries remain independently
// buildable and runnable against a future networked broker implementation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agentpipeline/core/commbus"
	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/process"
	"github.com/agentpipeline/core/coreengine/runtime"
	"github.com/agentpipeline/core/coreengine/tools"
	"github.com/agentpipeline/core/internal/agents/codegen"
	"github.com/agentpipeline/core/internal/agents/explainer"
	"github.com/agentpipeline/core/internal/agents/preprocessor"
	"github.com/agentpipeline/core/internal/agents/refiner"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/modelclient"
	"github.com/agentpipeline/core/internal/obslog"
	"github.com/agentpipeline/core/internal/registry"
	coretools "github.com/agentpipeline/core/internal/tools"
)

func main() {
	request := flag.String("request", "", "the code generation request to submit")
	guardrailsDSN := flag.String("guardrails-db", "guardrails.db", "path to the guardrails SQLite database")
	promptsDSN := flag.String("prompts-db", "prompts.db", "path to the prompts SQLite database")
	waitTimeout := flag.Duration("wait", 30*time.Second, "how long to wait for a terminal result")
	flag.Parse()

	if *request == "" {
		log.Fatal("submit: -request is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conversationID := uuid.NewString()
	traceID := uuid.NewString()

	guardStore, err := registry.OpenGuardrailStore(*guardrailsDSN, true)
	if err != nil {
		log.Fatalf("submit: open guardrail store: %v", err)
	}
	defer guardStore.Close()
	if err := guardStore.SeedCodeExecutionPipeline(ctx); err != nil {
		log.Fatalf("submit: seed guardrails: %v", err)
	}
	guardrails, err := guardStore.GuardrailsFor(ctx, "code-execution")
	if err != nil {
		log.Fatalf("submit: load guardrails: %v", err)
	}

	promptStore, err := registry.OpenPromptStore(*promptsDSN, true)
	if err != nil {
		log.Fatalf("submit: open prompt store: %v", err)
	}
	defer promptStore.Close()

	provider := &modelclient.DeterministicProvider{}
	toolExecutor := tools.NewToolExecutor()
	if err := coretools.RegisterSubprocessTool(toolExecutor, refiner.SubprocessToolName); err != nil {
		log.Fatalf("submit: register subprocess tool: %v", err)
	}

	br := broker.NewInMemoryBroker(50 * time.Millisecond)
	sink := obslog.NewSink(obslog.AgentLogsDir, obslog.ConversationLogsDir)

	events := commbus.NewInMemoryCommBus(5 * time.Second)
	events.AddMiddleware(commbus.NewLoggingMiddleware("info"))
	events.Subscribe("AgentCompleted", func(ctx context.Context, msg commbus.Message) (any, error) {
		completed := msg.(*commbus.AgentCompleted)
		log.Printf("submit: agent %s finished conversation %s: %s (%dms)", completed.AgentName, completed.ConversationID, completed.Outcome, completed.DurationMS)
		return nil, nil
	})

	defs := buildAgents(provider, toolExecutor, guardrails, promptStore, sink)

	cfg := runtime.DefaultConfig()
	for _, def := range defs {
		rt := runtime.New(def, br, cfg, sink, events)
		go func(name string) {
			if err := rt.Run(ctx); err != nil {
				log.Printf("submit: agent %s stopped: %v", name, err)
			}
		}(def.Name)
	}

	// Give the runtimes a moment to declare their streams before publishing.
	time.Sleep(50 * time.Millisecond)

	env := envelope.NewNormal("submit", preprocessor.Name, traceID, conversationID, map[string]any{"request": *request})
	if err := br.Publish(ctx, envelope.StreamNameFor(preprocessor.Name), env); err != nil {
		log.Fatalf("submit: publish: %v", err)
	}

	fmt.Printf("submitted conversation %s, waiting up to %s for a result...\n", conversationID, *waitTimeout)
	waitForResult(ctx, conversationID, *waitTimeout)
}

func buildAgents(provider *modelclient.DeterministicProvider, toolExecutor *tools.ToolExecutor, guardrails []registry.Guardrail, prompts registry.PromptRegistry, recorder process.ModelCallRecorder) []*agentdef.AgentDefinition {
	pre, err := preprocessor.Build(envelope.StreamNameFor(codegen.Name))
	if err != nil {
		log.Fatalf("submit: build preprocessor: %v", err)
	}
	gen, err := codegen.Build(envelope.StreamNameFor(explainer.Name), provider, guardrails, prompts, recorder)
	if err != nil {
		log.Fatalf("submit: build codegen: %v", err)
	}
	exp, err := explainer.Build(envelope.StreamNameFor(refiner.Name), provider, prompts, recorder)
	if err != nil {
		log.Fatalf("submit: build explainer: %v", err)
	}
	ref, err := refiner.Build(provider, toolExecutor, prompts, recorder)
	if err != nil {
		log.Fatalf("submit: build refiner: %v", err)
	}
	return []*agentdef.AgentDefinition{pre, gen, exp, ref}
}

func waitForResult(ctx context.Context, conversationID string, timeout time.Duration) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("submit: interrupted before a result arrived")
			return
		case <-deadline:
			fmt.Println("submit: timed out waiting for a result")
			return
		case <-ticker.C:
			records, err := obslog.Conversation(obslog.ConversationLogsDir, conversationID)
			if err != nil && !os.IsNotExist(err) {
				continue
			}
			for _, rec := range records {
				if rec.Type == "terminal_result" {
					printResult(rec)
					return
				}
			}
		}
	}
}

func printResult(rec obslog.Record) {
	switch rec.Level {
	case obslog.LevelError:
		fmt.Println("=== FAILED/REJECTED ===")
	default:
		fmt.Println("=== SUCCESS ===")
	}
	fmt.Println(rec.Message)
}
