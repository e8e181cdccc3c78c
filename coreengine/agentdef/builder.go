// Package agentdef implements the fluent builder that assembles a composed
// pipeline, its stream bindings, and an optional guard stage into an
// immutable AgentDefinition. Go has no phantom types, so the builder
// validates at Build() time and returns (*AgentDefinition, error): collect
// every missing piece and report them together, not just the first.
package agentdef

import (
	"strings"

	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/stage"
)

// Decoder turns a decoded envelope's payload into the pipeline's input type.
// It receives the payload-type discriminator alongside the raw payload so it
// can react differently to a Normal input versus an upstream
// failure/rejection it is propagating.
type Decoder func(input envelope.DecodeInput) (any, error)

// Encoder turns the pipeline's output value into a wire payload.
type Encoder func(value any) (any, error)

// ConfigError enumerates every missing or invalid piece of configuration
// found at Build() time.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid agent configuration: " + strings.Join(e.Problems, "; ")
}

// AgentDefinition is the immutable result of a successful Build(). It owns
// no per-message state and lives for the process lifetime.
type AgentDefinition struct {
	Name         string
	InputStream  string
	OutputStream string // empty when Terminal
	Terminal     bool
	Decoder      Decoder
	Encoder      Encoder
	Pipeline     stage.Stage
}

// Builder assembles an AgentDefinition. Use New(name) and the With* setters,
// then call Build().
type Builder struct {
	name         string
	inputStream  string
	decoder      Decoder
	stages       []stage.Stage
	outputStream string
	encoder      Encoder
	terminal     bool
	outputSet    bool
	guard        *stage.Stage
	built        bool
}

// New starts a builder for an agent with the given stable name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// WithInput sets the exactly-one required input stream binding and decoder.
func (b *Builder) WithInput(streamName string, decoder Decoder) *Builder {
	b.inputStream = streamName
	b.decoder = decoder
	return b
}

// WithStages appends one or more composed stages to the pipeline.
func (b *Builder) WithStages(stages ...stage.Stage) *Builder {
	b.stages = append(b.stages, stages...)
	return b
}

// WithOutput sets the non-terminal output stream binding and encoder.
// Mutually exclusive with WithTerminal.
func (b *Builder) WithOutput(streamName string, encoder Encoder) *Builder {
	b.outputStream = streamName
	b.encoder = encoder
	b.terminal = false
	b.outputSet = true
	return b
}

// WithTerminal marks the agent as terminal: its encoder is used only for
// observability output, never for publishing downstream. Mutually exclusive
// with WithOutput.
func (b *Builder) WithTerminal(encoder Encoder) *Builder {
	b.encoder = encoder
	b.terminal = true
	b.outputSet = true
	return b
}

// WithGuard appends a guard stage after the pipeline: on pass it is
// transparent; on block it must replace the outcome with Rejected, which is
// the guard stage's own responsibility to encode (see process.Guard, the
// guardrail-backed guard stage constructor).
func (b *Builder) WithGuard(guard stage.Stage) *Builder {
	b.guard = &guard
	return b
}

// Build validates the accumulated configuration and produces an immutable
// AgentDefinition, or a ConfigError enumerating every problem found.
func (b *Builder) Build() (*AgentDefinition, error) {
	if b.built {
		return nil, &ConfigError{Problems: []string{"Build() already called on this builder"}}
	}

	var problems []string

	if b.name == "" {
		problems = append(problems, "agent name must not be empty")
	}
	if b.inputStream == "" {
		problems = append(problems, "exactly one input stream binding is required")
	}
	if b.decoder == nil {
		problems = append(problems, "input stream binding requires a decoder")
	}
	if len(b.stages) == 0 {
		problems = append(problems, "at least one stage is required")
	}
	if !b.outputSet {
		problems = append(problems, "exactly one of output stream binding or terminal marker is required")
	}
	if b.encoder == nil {
		problems = append(problems, "output binding requires an encoder")
	}
	if !b.terminal && b.outputStream == "" && b.outputSet {
		problems = append(problems, "non-terminal output binding requires a stream name")
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	pipeline := stage.Chain(b.stages...)
	if b.guard != nil {
		pipeline = stage.Then(pipeline, *b.guard)
	}

	b.built = true
	return &AgentDefinition{
		Name:         b.name,
		InputStream:  b.inputStream,
		OutputStream: b.outputStream,
		Terminal:     b.terminal,
		Decoder:      b.decoder,
		Encoder:      b.encoder,
		Pipeline:     pipeline,
	}, nil
}
